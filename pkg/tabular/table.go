// Package tabular holds the in-memory payload representation shared by
// importers and processors: a rectangular table of typed cells with named
// columns. Tables are treated as immutable once persisted; processors
// return new tables instead of mutating their input.
package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell is a single table value. A cell is either numeric, textual or null.
type Cell struct {
	text   string
	number float64
	isNum  bool
	isNull bool
}

func NumberCell(v float64) Cell {
	return Cell{number: v, isNum: true}
}

func TextCell(s string) Cell {
	return Cell{text: s}
}

func NullCell() Cell {
	return Cell{isNull: true}
}

// ParseCell sniffs the value type: empty strings become null, values that
// parse as float become numeric, everything else stays text.
func ParseCell(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return NullCell()
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NumberCell(v)
	}
	return Cell{text: s}
}

func (c Cell) IsNull() bool { return c.isNull }

func (c Cell) Number() (float64, bool) {
	if c.isNum {
		return c.number, true
	}
	return 0, false
}

func (c Cell) String() string {
	switch {
	case c.isNull:
		return ""
	case c.isNum:
		return strconv.FormatFloat(c.number, 'g', -1, 64)
	default:
		return c.text
	}
}

// Table is a rectangular payload: every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

func New(columns []string) *Table {
	return &Table{Columns: columns, Rows: [][]Cell{}}
}

func (t *Table) NumRows() int { return len(t.Rows) }
func (t *Table) NumCols() int { return len(t.Columns) }

func (t *Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

// AppendRow pads or truncates the row to the table width so the table
// stays rectangular even on ragged input.
func (t *Table) AppendRow(row []Cell) {
	switch {
	case len(row) < len(t.Columns):
		padded := make([]Cell, len(t.Columns))
		copy(padded, row)
		for i := len(row); i < len(t.Columns); i++ {
			padded[i] = NullCell()
		}
		t.Rows = append(t.Rows, padded)
	case len(row) > len(t.Columns):
		t.Rows = append(t.Rows, row[:len(t.Columns)])
	default:
		t.Rows = append(t.Rows, row)
	}
}

// ColumnIndex resolves a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy. Cells are values, so copying rows suffices.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]Cell, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell(nil), row...)
	}
	return out
}

// NumericColumn extracts a column as floats, NaN for nulls and text.
func (t *Table) NumericColumn(idx int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if v, ok := row[idx].Number(); ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// NumericColumns returns the indexes of columns whose non-null cells are
// predominantly numeric.
func (t *Table) NumericColumns() []int {
	var out []int
	for idx := range t.Columns {
		numeric, filled := 0, 0
		for _, row := range t.Rows {
			if row[idx].IsNull() {
				continue
			}
			filled++
			if _, ok := row[idx].Number(); ok {
				numeric++
			}
		}
		if filled > 0 && numeric*2 > filled {
			out = append(out, idx)
		}
	}
	return out
}

// NullCount returns the number of null cells in the whole table.
func (t *Table) NullCount() int {
	count := 0
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell.IsNull() {
				count++
			}
		}
	}
	return count
}

// GeneratedColumns produces placeholder names for headerless input.
func GeneratedColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("column_%d", i+1)
	}
	return cols
}
