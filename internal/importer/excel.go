package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
	"github.com/xuri/excelize/v2"
)

// Excel imports xlsx workbooks. The first sheet is used unless Options
// names another one.
type Excel struct{}

func NewExcel() *Excel {
	return &Excel{}
}

func (e *Excel) Name() string { return "excel" }

func (e *Excel) CanImport(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

func (e *Excel) Import(path string, opts Options) (*tabular.Table, map[string]any, error) {
	excelFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening Excel file: %w", err)
	}
	defer excelFile.Close()

	sheets := excelFile.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	sheet := sheets[0]
	if opts.Sheet != "" {
		found := false
		for _, s := range sheets {
			if s == opts.Sheet {
				sheet = s
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("sheet %q not found in %s", opts.Sheet, path)
		}
	}

	rows, err := excelFile.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(rows) {
			rows = nil
		} else {
			rows = rows[opts.SkipRows:]
		}
	}

	var table *tabular.Table
	if len(rows) == 0 {
		table = tabular.New(nil)
	} else if opts.hasHeader(true) {
		table = tabular.New(append([]string(nil), rows[0]...))
		appendStringRows(table, rows[1:])
	} else {
		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}
		table = tabular.New(tabular.GeneratedColumns(width))
		appendStringRows(table, rows)
	}
	table = limitRows(table, opts.MaxRows)

	meta := map[string]any{
		"sheet_names":  sheets,
		"active_sheet": sheet,
		"has_header":   opts.hasHeader(true),
	}
	return table, meta, nil
}

func appendStringRows(table *tabular.Table, rows [][]string) {
	for _, rec := range rows {
		row := make([]tabular.Cell, len(rec))
		for i, field := range rec {
			row[i] = tabular.ParseCell(field)
		}
		table.AppendRow(row)
	}
}
