package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV parses delimited content into a table. When hasHeader is false,
// column names are generated and the first row is treated as data.
func ReadCSV(r io.Reader, delimiter rune, hasHeader bool) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading delimited content: %w", err)
	}
	if len(records) == 0 {
		return New(nil), nil
	}

	var table *Table
	var body [][]string
	if hasHeader {
		table = New(append([]string(nil), records[0]...))
		body = records[1:]
	} else {
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		table = New(GeneratedColumns(width))
		body = records
	}

	for _, rec := range body {
		row := make([]Cell, len(rec))
		for i, field := range rec {
			row[i] = ParseCell(field)
		}
		table.AppendRow(row)
	}
	return table, nil
}

// WriteCSV renders the table with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSVFile loads a payload file written by WriteCSVFile.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, ',', true)
}

// WriteCSVFile persists the table as a CSV payload file.
func WriteCSVFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating payload %s: %w", path, err)
	}
	defer f.Close()
	return WriteCSV(f, t)
}
