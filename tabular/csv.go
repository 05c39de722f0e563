package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV loads a delimited file into a table. The first record is the
// header; every cell comes back string-kinded except empty cells, which
// load as null. Type assignment is the schema enforcer's job, not the
// codec's.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := NewTable(header...)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				row[col] = Null()
				continue
			}
			row[col] = String(rec[i])
		}
		t.Append(row)
	}
	return t, nil
}

// WriteCSV writes the table to path, truncating any existing file.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	return writeAll(f, t, true)
}

// AppendCSV appends the table's rows to path, creating the file if needed.
// The header is written only when withHeader is true; callers appending to
// an existing file pass false.
func AppendCSV(path string, t *Table, withHeader bool) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer f.Close()
	return writeAll(f, t, withHeader)
}

func writeAll(w io.Writer, t *Table, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(t.Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = row[col].Text()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
