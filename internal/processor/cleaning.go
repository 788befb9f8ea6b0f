package processor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

const (
	StrategyDrop         = "drop"
	StrategyFillMean     = "fill-mean"
	StrategyFillMedian   = "fill-median"
	StrategyFillConstant = "fill-constant"
)

type cleaningParams struct {
	Strategy         string   `json:"strategy" validate:"required,oneof=drop fill-mean fill-median fill-constant"`
	FillValue        float64  `json:"fill_value"`
	DropDuplicates   bool     `json:"drop_duplicates"`
	OutlierThreshold float64  `json:"outlier_threshold" validate:"gte=0"`
	Columns          []string `json:"columns,omitempty"`
}

// Cleaning removes or imputes missing values and duplicate rows. A
// non-zero outlier threshold first nulls numeric cells further than
// threshold standard deviations from their column mean, then the missing
// value strategy applies to them like any other gap.
type Cleaning struct{}

func NewCleaning() *Cleaning {
	return &Cleaning{}
}

func (c *Cleaning) Name() string { return "cleaning" }

func (c *Cleaning) DefaultParameters() map[string]any {
	return defaultsAsMap(cleaningParams{
		Strategy:         StrategyDrop,
		DropDuplicates:   true,
		OutlierThreshold: 0,
	})
}

func (c *Cleaning) Validate(params map[string]any) error {
	var p cleaningParams
	return decodeParams(params, &p)
}

func (c *Cleaning) Process(ctx context.Context, table *tabular.Table, params map[string]any, progress ProgressFunc) (*Result, error) {
	var p cleaningParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	progress(0)

	numericCols, err := resolveNumericColumns(table, p.Columns)
	if err != nil {
		return nil, err
	}

	out := table.Clone()

	if p.OutlierThreshold > 0 {
		nullOutliers(out, numericCols, p.OutlierThreshold)
	}
	progress(0.25)

	switch p.Strategy {
	case StrategyDrop:
		out = dropRowsWithNulls(out)
	case StrategyFillMean, StrategyFillMedian:
		fillFromColumnStatistic(out, numericCols, p.Strategy)
	case StrategyFillConstant:
		fillConstant(out, numericCols, p.FillValue)
	}
	progress(0.75)

	dropped := 0
	if p.DropDuplicates {
		before := out.NumRows()
		out = dropDuplicateRows(out)
		dropped = before - out.NumRows()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(1)

	return &Result{
		Table:   out,
		Summary: fmt.Sprintf("cleaned with strategy %s: %d rows in, %d rows out, %d duplicates removed", p.Strategy, table.NumRows(), out.NumRows(), dropped),
	}, nil
}

// resolveNumericColumns maps requested column names (or, when empty, all
// predominantly numeric columns) to indexes.
func resolveNumericColumns(table *tabular.Table, requested []string) ([]int, error) {
	if len(requested) == 0 {
		return table.NumericColumns(), nil
	}
	out := make([]int, 0, len(requested))
	for _, name := range requested {
		idx, ok := table.ColumnIndex(name)
		if !ok {
			return nil, &UnknownColumnError{Column: name}
		}
		out = append(out, idx)
	}
	return out, nil
}

func nullOutliers(t *tabular.Table, cols []int, threshold float64) {
	for _, idx := range cols {
		mean, std := meanStddev(t.NumericColumn(idx))
		if std == 0 || math.IsNaN(std) {
			continue
		}
		for _, row := range t.Rows {
			if v, ok := row[idx].Number(); ok && math.Abs(v-mean) > threshold*std {
				row[idx] = tabular.NullCell()
			}
		}
	}
}

func dropRowsWithNulls(t *tabular.Table) *tabular.Table {
	out := tabular.New(t.Columns)
	for _, row := range t.Rows {
		hasNull := false
		for _, cell := range row {
			if cell.IsNull() {
				hasNull = true
				break
			}
		}
		if !hasNull {
			out.AppendRow(row)
		}
	}
	return out
}

func fillFromColumnStatistic(t *tabular.Table, cols []int, strategy string) {
	for _, idx := range cols {
		values := collectNumbers(t, idx)
		if len(values) == 0 {
			continue
		}
		var fill float64
		if strategy == StrategyFillMean {
			fill, _ = meanStddev(values)
		} else {
			fill = median(values)
		}
		for _, row := range t.Rows {
			if row[idx].IsNull() {
				row[idx] = tabular.NumberCell(fill)
			}
		}
	}
}

func fillConstant(t *tabular.Table, cols []int, value float64) {
	for _, idx := range cols {
		for _, row := range t.Rows {
			if row[idx].IsNull() {
				row[idx] = tabular.NumberCell(value)
			}
		}
	}
}

func dropDuplicateRows(t *tabular.Table) *tabular.Table {
	seen := make(map[string]struct{}, len(t.Rows))
	out := tabular.New(t.Columns)
	var key strings.Builder
	for _, row := range t.Rows {
		key.Reset()
		for _, cell := range row {
			key.WriteString(cell.String())
			key.WriteByte('\x1f')
		}
		k := key.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.AppendRow(row)
	}
	return out
}

func collectNumbers(t *tabular.Table, idx int) []float64 {
	var out []float64
	for _, row := range t.Rows {
		if v, ok := row[idx].Number(); ok {
			out = append(out, v)
		}
	}
	return out
}

func meanStddev(values []float64) (mean, std float64) {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		mean += v
		n++
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean /= float64(n)

	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(n))
	return mean, std
}

func median(values []float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 0 {
		return (clean[mid-1] + clean[mid]) / 2
	}
	return clean[mid]
}
