package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/privlayer/privlayer/tabular"
)

// FindingKind classifies a leak-verifier finding.
type FindingKind string

const (
	// FindingEmailPattern flags a raw email-like string in the output
	FindingEmailPattern FindingKind = "email_pattern"

	// FindingLongDigitSequence flags a 13-19 digit run shaped like an
	// account or card number
	FindingLongDigitSequence FindingKind = "long_digit_sequence"

	// FindingNonTokenValues flags non-token values in a column the policy
	// designates tokenize
	FindingNonTokenValues FindingKind = "non_token_values"

	// FindingMissingColumn flags a designated tokenized column absent
	// from the output entirely
	FindingMissingColumn FindingKind = "missing_column"
)

// Finding is one leak-verifier failure against a column.
type Finding struct {
	Column  string
	Kind    FindingKind
	Samples []string
}

func (f Finding) String() string {
	if len(f.Samples) == 0 {
		return fmt.Sprintf("%s: %s", f.Column, f.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Column, f.Kind, strings.Join(f.Samples, ", "))
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	panPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// Per-column row cap for the raw-PII scan. The verifier is a best-effort
// secondary check, not a full guarantee.
const auditScanRows = 2000

const offenderSampleCap = 5

// Audit independently re-scans produced output for residual raw PII and
// checks that every policy-designated tokenized column holds only values
// of the token grammar. It is read-only: the audited table is never
// mutated, and the governance record is advisory metadata for the report.
// The audit passes iff there are zero findings.
func Audit(t *tabular.Table, rec *GovernanceRecord, policy *Policy) (bool, []Finding) {
	findings := findRawPII(t)
	findings = append(findings, checkTokenColumns(t, policy)...)
	return len(findings) == 0, findings
}

// findRawPII scans a bounded sample of every textual column for email-like
// strings and long digit runs.
func findRawPII(t *tabular.Table) []Finding {
	var findings []Finding
	for _, col := range t.Columns {
		var sawEmail, sawDigits bool
		scanned := 0
		for _, row := range t.Rows {
			if scanned == auditScanRows {
				break
			}
			scanned++
			v := row[col]
			if v.IsNull() || v.IsNumeric() {
				continue
			}
			text := v.Text()
			if !sawEmail && emailPattern.MatchString(text) {
				sawEmail = true
			}
			if !sawDigits && panPattern.MatchString(text) {
				sawDigits = true
			}
			if sawEmail && sawDigits {
				break
			}
		}
		if sawEmail {
			findings = append(findings, Finding{Column: col, Kind: FindingEmailPattern})
		}
		if sawDigits {
			findings = append(findings, Finding{Column: col, Kind: FindingLongDigitSequence})
		}
	}
	return findings
}

// checkTokenColumns validates the token grammar over every column the
// policy designates tokenize. Empty values are permitted; any non-empty,
// non-matching value is an offender.
func checkTokenColumns(t *tabular.Table, policy *Policy) []Finding {
	cols := policy.TokenizedColumns()
	sort.Strings(cols)

	var findings []Finding
	for _, col := range cols {
		if !t.HasColumn(col) {
			findings = append(findings, Finding{Column: col, Kind: FindingMissingColumn})
			continue
		}
		var offenders []string
		for _, row := range t.Rows {
			v := row[col]
			if v.IsEmpty() {
				continue
			}
			if !TokenPattern.MatchString(v.Text()) && len(offenders) < offenderSampleCap {
				offenders = append(offenders, v.Text())
			}
		}
		if len(offenders) > 0 {
			findings = append(findings, Finding{Column: col, Kind: FindingNonTokenValues, Samples: offenders})
		}
	}
	return findings
}
