package core

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/privlayer/privlayer/tabular"
)

// Config carries the run-level switches for a pipeline.
type Config struct {
	// Strict makes any structural or transform failure fatal. Non-strict
	// runs degrade failures to warnings and continue best-effort.
	Strict bool

	// OutDir hosts the quarantine stream and the governance record.
	OutDir string

	// Logger surfaces warnings to the operator. Defaults to a no-op.
	Logger *zap.Logger
}

// Pipeline runs policy-driven classification, transformation, and
// quarantine routing over an in-memory row set. The policy and its
// compiled detectors are read-only for the duration of a run.
type Pipeline struct {
	policy *Policy
	secret []byte
	cfg    Config
}

// NewPipeline builds a pipeline for one policy and secret. The secret is
// threaded explicitly rather than read from ambient process state so runs
// are deterministic and testable.
func NewPipeline(policy *Policy, secret []byte, cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{policy: policy, secret: secret, cfg: cfg}
}

// Result is the outcome of one pipeline run. Output rows are final and
// masked; persisting them is the caller's job. Record carries everything
// the run knows except the output file references, which the caller fills
// in before emission.
type Result struct {
	// Transformed clean rows, in input order
	Output *tabular.Table

	// Masked copy of the quarantined rows, nil when nothing was
	// quarantined
	MaskedQuarantine *tabular.Table

	// Quarantine disposition for the run
	Quarantine QuarantineInfo

	// Governance record, not yet written
	Record *GovernanceRecord

	// Degraded per-row failures accumulated during the run
	Warnings []Warning
}

// Run processes one input batch to completion: schema enforcement and
// quarantine routing, then per-row classification and transformation, then
// a masked pass over the quarantined rows, then the governance record.
// In strict mode the first failure aborts the run with its typed error.
func (p *Pipeline) Run(input *tabular.Table, inputRef string) (*Result, error) {
	log := p.cfg.Logger

	missing := p.missingRequired(input)
	if len(missing) > 0 {
		if p.cfg.Strict {
			return nil, &SchemaViolation{Reason: "missing required columns", Samples: missing}
		}
		log.Warn("missing required columns", zap.Strings("columns", missing))
	}

	store := NewQuarantineStore(p.cfg.OutDir)
	clean, qinfo, err := EnforceSchema(input, p.policy.Schema, p.cfg.Strict, store)
	if err != nil {
		if p.cfg.Strict {
			return nil, err
		}
		log.Warn("schema enforcement degraded", zap.Error(err))
		clean = input
	}
	if qinfo.Rows > 0 {
		log.Warn("rows quarantined",
			zap.Int("rows", qinfo.Rows),
			zap.String("reason", reasonInvalidDate),
			zap.String("path", qinfo.Path))
	}

	recorder := NewRecorder()
	if err := p.transformRows(clean, recorder, true); err != nil {
		return nil, err
	}

	result := &Result{
		Output:     clean,
		Quarantine: qinfo,
	}

	if store.Count() > 0 {
		masked, err := p.maskQuarantine(store.Path())
		if err != nil {
			// The raw quarantine is intact; a failed masked copy is a
			// warning, never fatal.
			log.Warn("failed to produce masked quarantine copy", zap.Error(err))
		} else {
			result.MaskedQuarantine = masked
		}
	}

	result.Warnings = recorder.Warnings()
	for _, w := range result.Warnings {
		log.Warn(w.Reason,
			zap.Int("row", w.Row),
			zap.String("field", w.Field),
			zap.String("action", string(w.Action)))
	}

	rec := GovernanceRecord{
		Policy:          p.policy.Name,
		PolicyVersion:   p.policy.Version,
		Input:           inputRef,
		Totals:          Totals{Rows: clean.Len()},
		StrictMode:      p.cfg.Strict,
		ExtraColumns:    p.extraColumns(clean),
		QuarantinedRows: store.Count(),
		QuarantinePath:  store.Path(),
	}
	if inputRef != "" {
		if _, err := os.Stat(inputRef); err == nil {
			if sum, err := HashFile(inputRef); err == nil {
				rec.InputSHA256 = sum
			}
		}
	}
	result.Record = recorder.Finalize(rec)

	return result, nil
}

// transformRows classifies every row and applies the resulting hits in
// emission order, last write wins per field. When record is false the
// actions are applied but not counted, which is how the masked quarantine
// copy is produced without inflating the run totals.
func (p *Pipeline) transformRows(t *tabular.Table, recorder *Recorder, record bool) error {
	for i, row := range t.Rows {
		if row == nil {
			err := &ClassificationError{Row: i, Err: fmt.Errorf("row is not a column mapping")}
			if p.cfg.Strict {
				return err
			}
			recorder.RecordWarning(Warning{Row: i, Reason: err.Error()})
			continue
		}

		hits := Classify(row, t.Columns, p.policy)
		for _, hit := range hits {
			if err := applyHit(row, hit, p.secret); err != nil {
				aerr := &TransformApplyError{Row: i, Field: hit.Field, Action: hit.Action, Err: err}
				if p.cfg.Strict {
					return aerr
				}
				recorder.RecordWarning(Warning{Row: i, Field: hit.Field, Action: hit.Action, Reason: aerr.Error()})
				continue
			}
			if record {
				recorder.RecordAction(i, hit.Field, hit.Action)
			}
		}
	}
	return nil
}

// applyHit mutates the destination cell in place. The hit carries the raw
// value captured at classification time, so duplicate hits on one field
// each transform the original value and the last one wins.
func applyHit(row tabular.Row, hit Hit, secret []byte) error {
	switch hit.Action {
	case ActionTokenize:
		row[hit.Field] = tabular.String(Tokenize(hit.Value, hit.Field, secret))
	case ActionMaskLast4:
		row[hit.Field] = tabular.String(MaskLast4(hit.Value))
	default:
		return fmt.Errorf("unknown action %q", hit.Action)
	}
	return nil
}

// maskQuarantine re-runs the classifier and transform path over the raw
// quarantined rows to produce a copy safe for inspection.
func (p *Pipeline) maskQuarantine(path string) (*tabular.Table, error) {
	qt, err := tabular.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	recorder := NewRecorder()
	if err := p.transformRows(qt, recorder, false); err != nil {
		return nil, err
	}
	for _, w := range recorder.Warnings() {
		p.cfg.Logger.Warn("quarantine masking degraded",
			zap.Int("row", w.Row),
			zap.String("field", w.Field),
			zap.String("reason", w.Reason))
	}
	return qt, nil
}

func (p *Pipeline) missingRequired(t *tabular.Table) []string {
	var missing []string
	for _, col := range p.policy.Schema.RequiredColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func (p *Pipeline) extraColumns(t *tabular.Table) []string {
	required := make(map[string]struct{}, len(p.policy.Schema.RequiredColumns))
	for _, col := range p.policy.Schema.RequiredColumns {
		required[col] = struct{}{}
	}
	extra := []string{}
	for _, col := range t.Columns {
		if _, ok := required[col]; !ok {
			extra = append(extra, col)
		}
	}
	return extra
}
