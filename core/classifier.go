package core

import (
	"sort"
	"strings"

	"github.com/privlayer/privlayer/tabular"
)

// Hit is a single classification finding: a field that requires the given
// action on its raw value. Hits are transient; they are consumed by the
// transform applier and never persisted.
type Hit struct {
	Field  string
	Action Action
	Value  string
}

// Empty sentinels that never classify as PII, compared case-insensitively.
var emptyTokens = map[string]struct{}{
	"":     {},
	"none": {},
	"nan":  {},
}

func isEmptySentinel(v tabular.Value) bool {
	if v.IsNull() {
		return true
	}
	_, ok := emptyTokens[strings.ToLower(v.Text())]
	return ok
}

// Classify runs two passes over a row and concatenates the results: a
// pattern pass scanning every textual column with the policy's named regex
// detectors, then a named-field pass over the policy's explicit
// field-to-action map. A column can be hit by both; the applier resolves
// duplicates last-write-wins, so the named-field action always takes
// precedence.
//
// columns fixes the scan order; classification is deterministic and pure
// with respect to its inputs.
func Classify(row tabular.Row, columns []string, policy *Policy) []Hit {
	var hits []Hit

	// Pattern pass. Numeric values are skipped: regex detectors target
	// textual PII, and a detector may flag a column the policy did not
	// anticipate.
	names := make([]string, 0, len(policy.RegexPII))
	for name := range policy.RegexPII {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := policy.RegexPII[name]
		for _, col := range columns {
			v, present := row[col]
			if !present || v.IsNull() || v.IsNumeric() {
				continue
			}
			text := v.Text()
			if rule.Regexp().MatchString(text) {
				hits = append(hits, Hit{Field: col, Action: rule.Action, Value: text})
			}
		}
	}

	// Named-field pass. Registered last so a named-field action wins over
	// any pattern hit on the same column.
	fields := make([]string, 0, len(policy.PIIFields))
	for field := range policy.PIIFields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		v, present := row[field]
		if !present || isEmptySentinel(v) {
			continue
		}
		hits = append(hits, Hit{Field: field, Action: policy.PIIFields[field], Value: v.Text()})
	}

	return hits
}
