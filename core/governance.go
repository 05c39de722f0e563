package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GovernanceLogFile is the well-known record filename under the output
// directory.
const GovernanceLogFile = "governance_log.json"

// Totals summarizes row and action counts for a run.
type Totals struct {
	Rows    int `json:"rows"`
	Actions int `json:"actions"`
}

// GovernanceRecord is the audit artifact for one run: which policy was
// applied, to what input, with what disposition. Written exactly once at
// the end of the run and never mutated after emission. The leak verifier
// consumes it as advisory metadata.
type GovernanceRecord struct {
	RunID                string   `json:"run_id"`
	Policy               string   `json:"policy"`
	PolicyVersion        string   `json:"policy_version"`
	Input                string   `json:"input"`
	InputSHA256          string   `json:"input_sha256,omitempty"`
	OutputCSV            string   `json:"output_csv"`
	OutputParquet        string   `json:"output_parquet"`
	Totals               Totals   `json:"totals"`
	StrictMode           bool     `json:"strict_mode"`
	ExtraColumns         []string `json:"extra_columns"`
	QuarantinedRows      int      `json:"quarantined_rows"`
	QuarantinePath       string   `json:"quarantine_path"`
	QuarantineMaskedPath string   `json:"quarantine_masked_path"`
	Timestamp            int64    `json:"timestamp"`
}

// AppliedAction records one transform actually applied to a cell.
type AppliedAction struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Action Action `json:"action"`
}

// Warning records a degraded per-row failure: a hit that classified but
// did not apply, or a row skipped outright.
type Warning struct {
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Action Action `json:"action,omitempty"`
	Reason string `json:"reason"`
}

// Recorder accumulates applied actions and warnings over a run and
// produces the immutable governance record at the end. Only actions that
// actually applied are counted; failed applications land in warnings.
type Recorder struct {
	mu       sync.Mutex
	actions  []AppliedAction
	warnings []Warning
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordAction notes a transform that was applied.
func (r *Recorder) RecordAction(row int, field string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, AppliedAction{Row: row, Field: field, Action: action})
}

// RecordWarning notes a degraded failure.
func (r *Recorder) RecordWarning(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// ActionCount returns the number of applied actions so far.
func (r *Recorder) ActionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

// Actions returns a copy of the applied actions.
func (r *Recorder) Actions() []AppliedAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AppliedAction(nil), r.actions...)
}

// Warnings returns a copy of the accumulated warnings.
func (r *Recorder) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Warning(nil), r.warnings...)
}

// Finalize seals the run into a governance record, stamping a fresh run id
// and the emission timestamp.
func (r *Recorder) Finalize(rec GovernanceRecord) *GovernanceRecord {
	rec.RunID = uuid.NewString()
	rec.Totals.Actions = r.ActionCount()
	rec.Timestamp = time.Now().Unix()
	if rec.ExtraColumns == nil {
		rec.ExtraColumns = []string{}
	}
	return &rec
}

// WriteRecord writes the governance record to its well-known path under
// outDir and returns that path.
func WriteRecord(outDir string, rec *GovernanceRecord) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize governance record: %w", err)
	}
	path := filepath.Join(outDir, GovernanceLogFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write governance record: %w", err)
	}
	return path, nil
}

// ReadRecord loads a previously written governance record from outDir.
func ReadRecord(outDir string) (*GovernanceRecord, error) {
	data, err := os.ReadFile(filepath.Join(outDir, GovernanceLogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read governance record: %w", err)
	}
	var rec GovernanceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse governance record: %w", err)
	}
	return &rec, nil
}

// HashFile returns the hex SHA-256 of a file's contents, streamed.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
