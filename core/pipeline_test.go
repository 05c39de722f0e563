package core

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privlayer/privlayer/tabular"
)

func pipelinePolicy() *Policy {
	emailRe := regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	return &Policy{
		Name:    "pipeline_test",
		Version: "1.0",
		Schema: Schema{
			RequiredColumns: []string{"customer_name", "customer_email", "date"},
			DateFormat:      "2006-01-02",
			StrictDates:     true,
		},
		PIIFields: map[string]Action{
			"customer_name":  ActionTokenize,
			"customer_email": ActionTokenize,
			"account_number": ActionMaskLast4,
		},
		RegexPII: map[string]*RegexRule{
			"email": {Pattern: emailRe.String(), Action: ActionTokenize, re: emailRe},
		},
	}
}

func inputTable() *tabular.Table {
	t := tabular.NewTable("customer_name", "customer_email", "account_number", "date")
	t.Append(tabular.Row{
		"customer_name":  tabular.String("John Doe"),
		"customer_email": tabular.String("a@b.com"),
		"account_number": tabular.String("4111111111111111"),
		"date":           tabular.String("2024-01-15"),
	})
	return t
}

func TestPipelineEndToEndNoLeak(t *testing.T) {
	p := NewPipeline(pipelinePolicy(), testSecret, Config{OutDir: t.TempDir()})

	result, err := p.Run(inputTable(), "memory")
	require.NoError(t, err)

	out := result.Output
	require.Equal(t, 1, out.Len())
	assert.Regexp(t, TokenPattern, out.Rows[0]["customer_name"].Text())
	assert.Regexp(t, TokenPattern, out.Rows[0]["customer_email"].Text())
	assert.Equal(t, "************1111", out.Rows[0]["account_number"].Text())

	pass, findings := Audit(out, result.Record, pipelinePolicy())
	assert.True(t, pass, "full-output leak scan finds nothing: %v", findings)
}

func TestPipelineNamedFieldWinsDualMatch(t *testing.T) {
	// customer_email matches both the email detector (tokenize) and the
	// named-field map. Flip the named action to masking to observe which
	// one lands.
	policy := pipelinePolicy()
	policy.PIIFields["customer_email"] = ActionMaskLast4

	p := NewPipeline(policy, testSecret, Config{OutDir: t.TempDir()})
	result, err := p.Run(inputTable(), "memory")
	require.NoError(t, err)

	assert.Equal(t, "****", result.Output.Rows[0]["customer_email"].Text(),
		"named-field action always wins over a pattern hit")
}

func TestPipelineQuarantineIsolation(t *testing.T) {
	dir := t.TempDir()

	input := inputTable()
	input.Append(tabular.Row{
		"customer_name":  tabular.String("Jane Roe"),
		"customer_email": tabular.String("jane@corp.example"),
		"account_number": tabular.String("5500005555555559"),
		"date":           tabular.String("not-a-date"),
	})

	p := NewPipeline(pipelinePolicy(), testSecret, Config{Strict: false, OutDir: dir})
	result, err := p.Run(input, "memory")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Output.Len(), "invalid row absent from clean output")
	assert.Equal(t, 1, result.Record.QuarantinedRows)
	assert.Equal(t, filepath.Join(dir, "quarantine_raw.csv"), result.Record.QuarantinePath)

	raw, err := tabular.ReadCSV(result.Record.QuarantinePath)
	require.NoError(t, err)
	require.Equal(t, 1, raw.Len())
	assert.Equal(t, "jane@corp.example", raw.Rows[0]["customer_email"].Text(),
		"raw quarantine keeps the original values for remediation")

	require.NotNil(t, result.MaskedQuarantine)
	require.Equal(t, 1, result.MaskedQuarantine.Len())
	masked := result.MaskedQuarantine.Rows[0]
	assert.Regexp(t, TokenPattern, masked["customer_email"].Text(), "masked copy is safe to inspect")
	assert.Equal(t, "************5559", masked["account_number"].Text())
	assert.Equal(t, "invalid_date_format", masked[QuarantineReasonColumn].Text())
}

func TestPipelineStrictModeAbortsOnBadDate(t *testing.T) {
	input := inputTable()
	input.Append(tabular.Row{
		"customer_name":  tabular.String("Jane Roe"),
		"customer_email": tabular.String("jane@corp.example"),
		"date":           tabular.String("15/01/2024"),
	})

	p := NewPipeline(pipelinePolicy(), testSecret, Config{Strict: true, OutDir: t.TempDir()})
	_, err := p.Run(input, "memory")

	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
}

func TestPipelineStrictModeMissingRequiredColumns(t *testing.T) {
	input := tabular.NewTable("unrelated")
	input.Append(tabular.Row{"unrelated": tabular.String("x")})

	p := NewPipeline(pipelinePolicy(), testSecret, Config{Strict: true, OutDir: t.TempDir()})
	_, err := p.Run(input, "memory")

	var sv *SchemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Contains(t, sv.Samples, "customer_name")
}

func TestPipelineNonStrictToleratesMissingColumns(t *testing.T) {
	input := tabular.NewTable("customer_email")
	input.Append(tabular.Row{"customer_email": tabular.String("a@b.com")})

	p := NewPipeline(pipelinePolicy(), testSecret, Config{Strict: false, OutDir: t.TempDir()})
	result, err := p.Run(input, "memory")
	require.NoError(t, err)

	assert.Regexp(t, TokenPattern, result.Output.Rows[0]["customer_email"].Text())
}

func TestPipelineActionTotals(t *testing.T) {
	p := NewPipeline(pipelinePolicy(), testSecret, Config{OutDir: t.TempDir()})

	result, err := p.Run(inputTable(), "memory")
	require.NoError(t, err)

	// One row: email detector hit + three named-field hits all apply.
	assert.Equal(t, 4, result.Record.Totals.Actions)
	assert.Equal(t, 1, result.Record.Totals.Rows)
}

func TestPipelineRecordMetadata(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(inputPath, []byte("a,b\n1,2\n"), 0644))

	p := NewPipeline(pipelinePolicy(), testSecret, Config{Strict: false, OutDir: dir})
	result, err := p.Run(inputTable(), inputPath)
	require.NoError(t, err)

	rec := result.Record
	assert.Equal(t, "pipeline_test", rec.Policy)
	assert.Equal(t, "1.0", rec.PolicyVersion)
	assert.Equal(t, inputPath, rec.Input)
	assert.Len(t, rec.InputSHA256, 64)
	assert.NotEmpty(t, rec.RunID)
	assert.False(t, rec.StrictMode)
	assert.Equal(t, []string{"account_number"}, rec.ExtraColumns)
}

func TestPipelineEmptySecretStillTokenizes(t *testing.T) {
	// An empty secret is a configuration smell, not a pipeline failure.
	p := NewPipeline(pipelinePolicy(), nil, Config{OutDir: t.TempDir()})
	result, err := p.Run(inputTable(), "memory")
	require.NoError(t, err)
	assert.Regexp(t, TokenPattern, result.Output.Rows[0]["customer_name"].Text())
}
