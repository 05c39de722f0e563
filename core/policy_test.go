package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validPolicyYAML = `
name: test_policy
version: "1.0"
schema:
  required_columns: [customer_name, date]
  dtypes:
    balance: float
  date_format: "2006-01-02"
  strict_dates: true
pii_fields:
  customer_name: tokenize
  account_number: mask_fpe_last4
regex_pii:
  email:
    pattern: '[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}'
    action: tokenize
`

func TestLoadPolicyYAML(t *testing.T) {
	path := writePolicy(t, "policy.yaml", validPolicyYAML)

	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, "test_policy", policy.Name)
	assert.Equal(t, "1.0", policy.Version)
	assert.Equal(t, []string{"customer_name", "date"}, policy.Schema.RequiredColumns)
	assert.True(t, policy.Schema.StrictDates)
	assert.Equal(t, ActionTokenize, policy.PIIFields["customer_name"])
	assert.Equal(t, ActionMaskLast4, policy.PIIFields["account_number"])
}

func TestLoadPolicyJSON(t *testing.T) {
	// JSON policies load through the same path; YAML is a superset.
	path := writePolicy(t, "policy.json", `{
		"name": "json_policy",
		"version": "2.0",
		"pii_fields": {"customer_email": "tokenize"},
		"regex_pii": {"pan": {"pattern": "\\d{13,19}", "action": "mask_fpe_last4"}}
	}`)

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "json_policy", policy.Name)
	assert.Equal(t, ActionMaskLast4, policy.RegexPII["pan"].Action)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var perr *PolicyLoadError
	assert.ErrorAs(t, err, &perr)
}

func TestLoadPolicyMalformed(t *testing.T) {
	path := writePolicy(t, "bad.yaml", "name: [unclosed")
	_, err := LoadPolicy(path)

	var perr *PolicyLoadError
	assert.ErrorAs(t, err, &perr)
}

func TestLoadPolicyUnknownAction(t *testing.T) {
	path := writePolicy(t, "bad.yaml", `
name: p
pii_fields:
  ssn: encrypt
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestLoadPolicyInvalidPattern(t *testing.T) {
	path := writePolicy(t, "bad.yaml", `
name: p
regex_pii:
  broken:
    pattern: '(['
    action: tokenize
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestLoadPolicyUnknownDtype(t *testing.T) {
	path := writePolicy(t, "bad.yaml", `
name: p
schema:
  dtypes:
    balance: decimal
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dtype")
}

func TestRegexCompiledOnce(t *testing.T) {
	path := writePolicy(t, "policy.yaml", validPolicyYAML)
	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	rule := policy.RegexPII["email"]
	require.NotNil(t, rule.Regexp())
	assert.Same(t, rule.Regexp(), rule.Regexp(), "one authoritative pattern instance per rule")
	assert.True(t, rule.Regexp().MatchString("a@b.com"))
}

func TestTokenizedColumns(t *testing.T) {
	path := writePolicy(t, "policy.yaml", validPolicyYAML)
	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"customer_name"}, policy.TokenizedColumns())
}
