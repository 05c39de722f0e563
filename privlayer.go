// Package privlayer masks and tokenizes sensitive fields in tabular data
// according to a declarative policy, quarantines rows that fail structural
// validation, and emits a governance record that an independent audit pass
// can verify.
package privlayer

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/privlayer/privlayer/core"
	"github.com/privlayer/privlayer/tabular"
)

// Well-known output filenames under the run's output directory.
const (
	MaskedCSVFile        = "dataset_masked.csv"
	QuarantineMaskedFile = "quarantine_masked.csv"
)

// ProcessResult reports where a run's artifacts were written.
type ProcessResult struct {
	OutputCSV            string
	QuarantinePath       string
	QuarantineMaskedPath string
	GovernancePath       string
	Record               *core.GovernanceRecord
	Warnings             []core.Warning
}

// Process runs the full pipeline over a CSV input: load policy, enforce
// schema, classify and transform, write the masked output, the quarantine
// artifacts, and the governance record. In strict mode any structural or
// transform failure aborts before any output is trusted as final.
func Process(inputPath, outDir, policyPath string, strict bool, secret []byte, logger *zap.Logger) (*ProcessResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	policy, err := core.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}

	input, err := tabular.ReadCSV(inputPath)
	if err != nil {
		return nil, err
	}

	pipeline := core.NewPipeline(policy, secret, core.Config{
		Strict: strict,
		OutDir: outDir,
		Logger: logger,
	})
	run, err := pipeline.Run(input, inputPath)
	if err != nil {
		return nil, err
	}

	maskedPath := filepath.Join(outDir, MaskedCSVFile)
	if err := tabular.WriteCSV(maskedPath, run.Output); err != nil {
		return nil, err
	}
	run.Record.OutputCSV = maskedPath

	if run.MaskedQuarantine != nil {
		qmPath := filepath.Join(outDir, QuarantineMaskedFile)
		if err := tabular.WriteCSV(qmPath, run.MaskedQuarantine); err != nil {
			logger.Warn("failed to write masked quarantine copy", zap.Error(err))
		} else {
			run.Record.QuarantineMaskedPath = qmPath
		}
	}

	govPath, err := core.WriteRecord(outDir, run.Record)
	if err != nil {
		return nil, err
	}

	logger.Info("run complete",
		zap.String("run_id", run.Record.RunID),
		zap.Int("rows", run.Record.Totals.Rows),
		zap.Int("actions", run.Record.Totals.Actions),
		zap.Int("quarantined", run.Record.QuarantinedRows))

	return &ProcessResult{
		OutputCSV:            maskedPath,
		QuarantinePath:       run.Record.QuarantinePath,
		QuarantineMaskedPath: run.Record.QuarantineMaskedPath,
		GovernancePath:       govPath,
		Record:               run.Record,
		Warnings:             run.Warnings,
	}, nil
}

// AuditResult is the outcome of the independent leak audit over a run's
// emitted outputs.
type AuditResult struct {
	Pass     bool
	Findings []core.Finding
	Rows     int
	Record   *core.GovernanceRecord
}

// Audit re-reads a run's masked output, governance record, and policy, and
// asserts that no sensitive value escaped untransformed. It consumes only
// the pipeline's output contract.
func Audit(outDir, policyPath string) (*AuditResult, error) {
	policy, err := core.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}

	rec, err := core.ReadRecord(outDir)
	if err != nil {
		return nil, err
	}

	output, err := tabular.ReadCSV(filepath.Join(outDir, MaskedCSVFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load masked output: %w", err)
	}

	pass, findings := core.Audit(output, rec, policy)
	return &AuditResult{
		Pass:     pass,
		Findings: findings,
		Rows:     output.Len(),
		Record:   rec,
	}, nil
}
