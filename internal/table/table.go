package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Table is a wide CSV table held fully in memory: a fixed column order plus
// one string map per row. Cells absent from a row render as empty strings,
// never as a missing column.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// New creates an empty table with the given column order.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row. Keys outside the column set are ignored on save.
func (t *Table) Append(row map[string]string) {
	t.Rows = append(t.Rows, row)
}

// Get returns the cell value, or "" when the row has no such key.
func Get(row map[string]string, col string) string {
	return row[col]
}

// Load reads the whole CSV into memory. A missing or empty file yields an
// empty table, not an error.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Save rewrites the whole table atomically: temp file in the same directory,
// then rename. An empty column set writes nothing.
func (t *Table) Save(path string) error {
	if len(t.Columns) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush table %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Tickers collects the non-empty values of a key column, in row order.
func (t *Table) Tickers(col string) []string {
	var out []string
	for _, row := range t.Rows {
		if v := row[col]; v != "" {
			out = append(out, v)
		}
	}
	return out
}
