package processor

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

type statisticsParams struct {
	Columns     []string  `json:"columns,omitempty"`
	Quantiles   []float64 `json:"quantiles,omitempty" validate:"dive,gte=0,lte=1"`
	Correlation bool      `json:"correlation"`
}

// Statistics computes descriptive statistics over the declared columns.
// Unlike the transform families it produces no derived table; its output
// is persisted as an AnalysisResult.
type Statistics struct{}

func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) Name() string { return "statistics" }

func (s *Statistics) DefaultParameters() map[string]any {
	return defaultsAsMap(statisticsParams{
		Quantiles:   []float64{0.25, 0.5, 0.75},
		Correlation: false,
	})
}

func (s *Statistics) Validate(params map[string]any) error {
	var p statisticsParams
	return decodeParams(params, &p)
}

func (s *Statistics) Process(ctx context.Context, table *tabular.Table, params map[string]any, progress ProgressFunc) (*Result, error) {
	var p statisticsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Quantiles) == 0 {
		p.Quantiles = []float64{0.25, 0.5, 0.75}
	}
	progress(0)

	cols, err := resolveNumericColumns(table, p.Columns)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{}
	for i, idx := range cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := collectNumbers(table, idx)
		colStats := describeColumn(values, p.Quantiles)
		stats[table.Columns[idx]] = colStats
		progress(float64(i+1) / float64(len(cols)+1))
	}

	if p.Correlation && len(cols) > 1 {
		corr := map[string]any{}
		for i := 0; i < len(cols); i++ {
			for j := i + 1; j < len(cols); j++ {
				key := fmt.Sprintf("%s:%s", table.Columns[cols[i]], table.Columns[cols[j]])
				// constant columns and <2 overlapping pairs have no
				// correlation; null keeps the result JSON-encodable
				if r, ok := pearson(table.NumericColumn(cols[i]), table.NumericColumn(cols[j])); ok {
					corr[key] = r
				} else {
					corr[key] = nil
				}
			}
		}
		stats["correlation"] = corr
	}
	progress(1)

	return &Result{
		Statistics: stats,
		Summary:    fmt.Sprintf("described %d columns over %d rows", len(cols), table.NumRows()),
	}, nil
}

func describeColumn(values []float64, quantiles []float64) map[string]any {
	out := map[string]any{"count": len(values)}
	if len(values) == 0 {
		return out
	}

	mean, std := meanStddev(values)
	out["mean"] = mean
	out["stddev"] = std
	out["variance"] = std * std

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out["min"] = sorted[0]
	out["max"] = sorted[len(sorted)-1]

	qmap := map[string]float64{}
	for _, q := range quantiles {
		qmap[fmt.Sprintf("q%g", q)] = quantile(sorted, q)
	}
	out["quantiles"] = qmap
	return out
}

// quantile interpolates linearly between closest ranks; input is sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// pearson computes the correlation over row pairs where both columns are
// numeric. The second return is false when the correlation is undefined:
// fewer than two overlapping pairs, or a constant column.
func pearson(xs, ys []float64) (float64, bool) {
	var px, py []float64
	for i := range xs {
		if !math.IsNaN(xs[i]) && !math.IsNaN(ys[i]) {
			px = append(px, xs[i])
			py = append(py, ys[i])
		}
	}
	if len(px) < 2 {
		return 0, false
	}

	meanX, stdX := meanStddev(px)
	meanY, stdY := meanStddev(py)
	if stdX == 0 || stdY == 0 {
		return 0, false
	}

	cov := 0.0
	for i := range px {
		cov += (px[i] - meanX) * (py[i] - meanY)
	}
	cov /= float64(len(px))
	return cov / (stdX * stdY), true
}
