package core

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Action defines what the transform engine does to a classified value
type Action string

const (
	// ActionTokenize replaces the value with a deterministic keyed token
	ActionTokenize Action = "tokenize"

	// ActionMaskLast4 redacts all but the last four digits of the value
	ActionMaskLast4 Action = "mask_fpe_last4"
)

// ColumnType names a declared column type in the policy schema
type ColumnType string

const (
	TypeString ColumnType = "str"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
)

// Schema declares the structural expectations for input rows
type Schema struct {
	// Columns that must be present in the input
	RequiredColumns []string `yaml:"required_columns"`

	// Declared column types, coerced permissively during enforcement
	DTypes map[string]ColumnType `yaml:"dtypes"`

	// Canonical date layout in Go reference-time form (e.g. 2006-01-02)
	DateFormat string `yaml:"date_format"`

	// Whether rows with non-conforming dates are rejected rather than
	// normalized best-effort
	StrictDates bool `yaml:"strict_dates"`
}

// RegexRule is a named content detector scanning every textual column
type RegexRule struct {
	Pattern string `yaml:"pattern"`
	Action  Action `yaml:"action"`

	re *regexp.Regexp
}

// Regexp returns the rule's pattern, compiled once at policy load. A
// single authoritative instance is shared across all rows.
func (r *RegexRule) Regexp() *regexp.Regexp {
	return r.re
}

// Policy is the complete masking policy for a run. Loaded once, immutable
// thereafter.
type Policy struct {
	// Name of the policy
	Name string `yaml:"name"`

	// Version of the policy
	Version string `yaml:"version"`

	// Structural schema for input rows
	Schema Schema `yaml:"schema"`

	// Columns known to hold PII, mapped to the required action
	PIIFields map[string]Action `yaml:"pii_fields"`

	// Named content detectors for PII in unanticipated columns
	RegexPII map[string]*RegexRule `yaml:"regex_pii"`
}

// TokenizedColumns returns the columns the policy designates for
// tokenization, in no particular order.
func (p *Policy) TokenizedColumns() []string {
	var cols []string
	for field, action := range p.PIIFields {
		if action == ActionTokenize {
			cols = append(cols, field)
		}
	}
	return cols
}

// LoadPolicy reads a policy document and validates it. YAML is a superset
// of JSON, so both policy formats load through the same path. Unknown
// actions, malformed patterns, and unknown dtypes are rejected here rather
// than deep inside the transform dispatch.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PolicyLoadError{Path: path, Err: err}
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, &PolicyLoadError{Path: path, Err: fmt.Errorf("failed to parse policy: %w", err)}
	}

	if err := validatePolicy(&policy); err != nil {
		return nil, &PolicyLoadError{Path: path, Err: err}
	}

	return &policy, nil
}

func validatePolicy(policy *Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("policy has no name")
	}

	for field, action := range policy.PIIFields {
		if !validAction(action) {
			return fmt.Errorf("pii field %s has unknown action %q", field, action)
		}
	}

	for col, typ := range policy.Schema.DTypes {
		switch typ {
		case TypeString, TypeInt, TypeFloat:
		default:
			return fmt.Errorf("column %s has unknown dtype %q", col, typ)
		}
	}

	for name, rule := range policy.RegexPII {
		if rule == nil || rule.Pattern == "" {
			return fmt.Errorf("regex detector %s has no pattern", name)
		}
		if !validAction(rule.Action) {
			return fmt.Errorf("regex detector %s has unknown action %q", name, rule.Action)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("regex detector %s has invalid pattern: %w", name, err)
		}
		rule.re = re
	}

	return nil
}

func validAction(a Action) bool {
	switch a {
	case ActionTokenize, ActionMaskLast4:
		return true
	}
	return false
}
