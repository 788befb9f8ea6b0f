package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

// JSON imports structured-record files: an array of flat objects, or an
// object mapping column names to equal-length value arrays.
type JSON struct{}

func NewJSON() *JSON {
	return &JSON{}
}

func (j *JSON) Name() string { return "json" }

func (j *JSON) CanImport(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func (j *JSON) Import(path string, opts Options) (*tabular.Table, map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil {
		table := tableFromRecords(records)
		return limitRows(table, opts.MaxRows), map[string]any{"json_shape": "records", "record_count": len(records)}, nil
	}

	var columns map[string][]any
	if err := json.Unmarshal(raw, &columns); err == nil {
		table, err := tableFromColumns(columns)
		if err != nil {
			return nil, nil, err
		}
		return limitRows(table, opts.MaxRows), map[string]any{"json_shape": "columns"}, nil
	}

	return nil, nil, fmt.Errorf("%s is neither a record array nor a column map", path)
}

func tableFromRecords(records []map[string]any) *tabular.Table {
	// union of keys, sorted for a stable column order
	keySet := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tabular.New(keys)
	for _, rec := range records {
		row := make([]tabular.Cell, len(keys))
		for i, k := range keys {
			row[i] = cellFromJSONValue(rec[k])
		}
		table.AppendRow(row)
	}
	return table
}

func tableFromColumns(columns map[string][]any) (*tabular.Table, error) {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	length := -1
	for _, k := range keys {
		if length == -1 {
			length = len(columns[k])
		} else if len(columns[k]) != length {
			return nil, fmt.Errorf("column %q length %d differs from %d", k, len(columns[k]), length)
		}
	}

	table := tabular.New(keys)
	for i := 0; i < length; i++ {
		row := make([]tabular.Cell, len(keys))
		for colIdx, k := range keys {
			row[colIdx] = cellFromJSONValue(columns[k][i])
		}
		table.AppendRow(row)
	}
	return table, nil
}

func cellFromJSONValue(v any) tabular.Cell {
	switch val := v.(type) {
	case nil:
		return tabular.NullCell()
	case float64:
		return tabular.NumberCell(val)
	case bool:
		if val {
			return tabular.TextCell("true")
		}
		return tabular.TextCell("false")
	case string:
		return tabular.ParseCell(val)
	default:
		raw, _ := json.Marshal(val)
		return tabular.TextCell(string(raw))
	}
}
