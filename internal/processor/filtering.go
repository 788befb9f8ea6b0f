package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

type filteringParams struct {
	Column   string `json:"column" validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=eq ne lt le gt ge contains"`
	Value    string `json:"value" validate:"required"`
}

// Filtering retains rows whose cell in the declared column matches the
// predicate. Ordering comparators require a numeric threshold; eq/ne fall
// back to text comparison when either side is not numeric.
type Filtering struct{}

func NewFiltering() *Filtering {
	return &Filtering{}
}

func (f *Filtering) Name() string { return "filtering" }

func (f *Filtering) DefaultParameters() map[string]any {
	return defaultsAsMap(filteringParams{Operator: "gt"})
}

func (f *Filtering) Validate(params map[string]any) error {
	_, err := f.decode(params)
	return err
}

func (f *Filtering) decode(params map[string]any) (filteringParams, error) {
	var p filteringParams
	if err := decodeParams(params, &p); err != nil {
		return p, err
	}
	switch p.Operator {
	case "lt", "le", "gt", "ge":
		if _, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64); err != nil {
			return p, NewInvalidParametersError(fmt.Sprintf("operator %q needs a numeric value, got %q", p.Operator, p.Value))
		}
	}
	return p, nil
}

func (f *Filtering) Process(ctx context.Context, table *tabular.Table, params map[string]any, progress ProgressFunc) (*Result, error) {
	p, err := f.decode(params)
	if err != nil {
		return nil, err
	}
	progress(0)

	idx, ok := table.ColumnIndex(p.Column)
	if !ok {
		return nil, &UnknownColumnError{Column: p.Column}
	}

	threshold, _ := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
	out := tabular.New(table.Columns)
	for _, row := range table.Rows {
		if matches(row[idx], p.Operator, p.Value, threshold) {
			out.AppendRow(row)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(1)

	return &Result{
		Table:   out,
		Summary: fmt.Sprintf("kept %d of %d rows where %s %s %s", out.NumRows(), table.NumRows(), p.Column, p.Operator, p.Value),
	}, nil
}

func matches(cell tabular.Cell, operator, value string, threshold float64) bool {
	if cell.IsNull() {
		return false
	}
	num, isNum := cell.Number()
	switch operator {
	case "lt":
		return isNum && num < threshold
	case "le":
		return isNum && num <= threshold
	case "gt":
		return isNum && num > threshold
	case "ge":
		return isNum && num >= threshold
	case "eq":
		if isNum {
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				return num == v
			}
		}
		return cell.String() == value
	case "ne":
		if isNum {
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				return num != v
			}
		}
		return cell.String() != value
	case "contains":
		return strings.Contains(cell.String(), value)
	}
	return false
}
