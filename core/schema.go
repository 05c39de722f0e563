package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/privlayer/privlayer/tabular"
)

// DateColumn is the column validated against the policy's date format.
const DateColumn = "date"

const quarantineRawFile = "quarantine_raw.csv"

// QuarantineReasonColumn tags quarantined rows with why they were routed
// out of the clean set.
const QuarantineReasonColumn = "quarantine_reason"

const reasonInvalidDate = "invalid_date_format"

// Layouts tried, in order, when normalizing a date that failed the
// declared format in non-strict-dates mode.
var lenientDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"Jan 2, 2006",
	"2 January 2006",
}

// QuarantineStore is the single shared destination for quarantined rows
// within a run. Appends are serialized; the header is written only on the
// first append so multiple enforcement calls accumulate into one file.
type QuarantineStore struct {
	mu    sync.Mutex
	path  string
	count int
	wrote bool
}

// NewQuarantineStore returns a store writing to quarantine_raw.csv under
// outDir.
func NewQuarantineStore(outDir string) *QuarantineStore {
	return &QuarantineStore{path: filepath.Join(outDir, quarantineRawFile)}
}

// Append writes the rows to the quarantine file and bumps the row count.
func (q *QuarantineStore) Append(t *tabular.Table) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	withHeader := !q.wrote
	if withHeader {
		if _, err := os.Stat(q.path); err == nil {
			// A leftover file from this run already has a header.
			withHeader = false
		}
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("failed to create quarantine directory: %w", err)
	}
	if err := tabular.AppendCSV(q.path, t, withHeader); err != nil {
		return err
	}
	q.wrote = true
	q.count += t.Len()
	return nil
}

// Count returns the number of rows quarantined so far.
func (q *QuarantineStore) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Path returns the quarantine file path, or empty if nothing was written.
func (q *QuarantineStore) Path() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.wrote {
		return ""
	}
	return q.path
}

// QuarantineInfo summarizes the disposition of one enforcement call.
type QuarantineInfo struct {
	// Rows routed to quarantine by this call
	Rows int

	// Destination file, empty if no rows were quarantined
	Path string
}

// EnforceSchema coerces declared column types, validates the date column,
// and routes structurally invalid rows to the quarantine store. Numeric
// coercion failures become nulls rather than errors. With strict_dates
// enabled, malformed dates abort the run in strict mode and quarantine the
// offending rows otherwise. Surviving dates are re-normalized to the
// declared format.
func EnforceSchema(t *tabular.Table, schema Schema, strict bool, store *QuarantineStore) (*tabular.Table, QuarantineInfo, error) {
	info := QuarantineInfo{}

	castColumns(t, schema.DTypes)

	if !t.HasColumn(DateColumn) {
		return t, info, nil
	}

	layout := schema.DateFormat
	if layout == "" {
		layout = "2006-01-02"
	}

	var bad []int
	for i, row := range t.Rows {
		v := row[DateColumn]
		if v.IsNull() {
			continue
		}
		if _, err := time.Parse(layout, v.Text()); err != nil {
			bad = append(bad, i)
		}
	}

	if schema.StrictDates && len(bad) > 0 {
		if strict {
			samples := make([]string, 0, 5)
			for _, i := range bad {
				if len(samples) == 5 {
					break
				}
				samples = append(samples, t.Rows[i][DateColumn].Text())
			}
			return nil, info, &SchemaViolation{
				Reason:  fmt.Sprintf("strict dates enabled: %d rows do not match %s", len(bad), layout),
				Samples: samples,
			}
		}

		if store != nil {
			qt := tabular.NewTable(t.Columns...)
			qt.AddColumn(QuarantineReasonColumn)
			for _, i := range bad {
				qr := t.Rows[i].Clone()
				qr[QuarantineReasonColumn] = tabular.String(reasonInvalidDate)
				qt.Append(qr)
			}
			if err := store.Append(qt); err != nil {
				return nil, info, fmt.Errorf("failed to write quarantine: %w", err)
			}
			info.Rows = qt.Len()
			info.Path = store.Path()
		}

		t = dropRows(t, bad)
	}

	normalizeDates(t, layout)
	return t, info, nil
}

// castColumns applies the declared dtypes in place. Failed numeric casts
// become nulls, permissively; the caller can surface the loss if it cares.
func castColumns(t *tabular.Table, dtypes map[string]ColumnType) {
	for col, typ := range dtypes {
		if !t.HasColumn(col) {
			continue
		}
		for _, row := range t.Rows {
			v := row[col]
			switch typ {
			case TypeFloat:
				cv, _ := tabular.CoerceNumeric(v, tabular.KindFloat)
				row[col] = cv
			case TypeInt:
				cv, _ := tabular.CoerceNumeric(v, tabular.KindInt)
				row[col] = cv
			case TypeString:
				if !v.IsNull() {
					row[col] = tabular.String(v.Text())
				}
			}
		}
	}
}

func dropRows(t *tabular.Table, drop []int) *tabular.Table {
	dropSet := make(map[int]struct{}, len(drop))
	for _, i := range drop {
		dropSet[i] = struct{}{}
	}
	out := tabular.NewTable(t.Columns...)
	for i, row := range t.Rows {
		if _, gone := dropSet[i]; !gone {
			out.Append(row)
		}
	}
	return out
}

// normalizeDates rewrites every surviving date to the canonical layout.
// Values no layout can parse become null.
func normalizeDates(t *tabular.Table, layout string) {
	for _, row := range t.Rows {
		v := row[DateColumn]
		if v.IsNull() {
			continue
		}
		parsed, ok := parseLenient(v.Text(), layout)
		if !ok {
			row[DateColumn] = tabular.Null()
			continue
		}
		row[DateColumn] = tabular.String(parsed.Format(layout))
	}
}

func parseLenient(s, layout string) (time.Time, bool) {
	if ts, err := time.Parse(layout, s); err == nil {
		return ts, true
	}
	for _, l := range lenientDateLayouts {
		if l == layout {
			continue
		}
		if ts, err := time.Parse(l, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
