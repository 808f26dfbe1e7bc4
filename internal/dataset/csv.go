// Package dataset loads tabular claim datasets. A CSV file with a header
// row becomes one claim per data row; the orchestration layer maps well
// known columns (id, name, statement, expected) onto claim fields and
// exposes the rest as template variables.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row maps normalized column names to cell values for one data row.
type Row map[string]string

// LoadCSV reads a claim dataset. The first row is the header; column names
// are lowercased and trimmed so "Statement" and " statement " both address
// the same field.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset: %s is empty (no header row)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}

	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
		}

		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// LoadCSVRange reads the data rows in [start, end], 1-based and inclusive,
// where row 1 is the first row after the header. The end is clamped to the
// dataset; a start beyond it yields no rows.
func LoadCSVRange(path string, start, end int) ([]Row, error) {
	if start < 1 {
		return nil, fmt.Errorf("dataset: range start must be >= 1, got %d", start)
	}
	if end < start {
		return nil, fmt.Errorf("dataset: range end (%d) must be >= start (%d)", end, start)
	}

	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}

	if end > len(rows) {
		end = len(rows)
	}
	if start > len(rows) {
		return []Row{}, nil
	}

	return rows[start-1 : end], nil
}
