package core

import (
	"fmt"
	"strings"
)

// PolicyLoadError indicates the policy file is missing or unparseable.
// It is fatal in every run mode.
type PolicyLoadError struct {
	Path string
	Err  error
}

func (e *PolicyLoadError) Error() string {
	return fmt.Sprintf("failed to load policy %s: %v", e.Path, e.Err)
}

func (e *PolicyLoadError) Unwrap() error {
	return e.Err
}

// SchemaViolation indicates required columns are absent or, with
// strict_dates enabled, rows failed date validation. Fatal only in strict
// mode; otherwise it degrades to a warning or quarantine.
type SchemaViolation struct {
	Reason  string
	Samples []string
}

func (e *SchemaViolation) Error() string {
	if len(e.Samples) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (examples: %s)", e.Reason, strings.Join(e.Samples, ", "))
}

// ClassificationError indicates malformed row data prevented
// classification. Fatal only in strict mode; otherwise the row is skipped
// untransformed and a warning is recorded.
type ClassificationError struct {
	Row int
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed on row %d: %v", e.Row, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// TransformApplyError indicates a classified hit could not be applied to
// its destination cell. Fatal only in strict mode; otherwise the action is
// recorded as a warning, not as applied.
type TransformApplyError struct {
	Row    int
	Field  string
	Action Action
	Err    error
}

func (e *TransformApplyError) Error() string {
	return fmt.Sprintf("transform %s failed on row %d / field %s: %v", e.Action, e.Row, e.Field, e.Err)
}

func (e *TransformApplyError) Unwrap() error {
	return e.Err
}
