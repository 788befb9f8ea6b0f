package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/tabwerk/datapipe/pkg/tabular"
)

const (
	MethodMovingAverage = "moving-average"
	MethodSavitzkyGolay = "savitzky-golay"
	MethodExponential   = "exponential"
)

type smoothingParams struct {
	Method  string   `json:"method" validate:"required,oneof=moving-average savitzky-golay exponential"`
	Window  int      `json:"window" validate:"required,gt=0"`
	Order   int      `json:"order" validate:"oneof=0 2 3"`
	Alpha   float64  `json:"alpha" validate:"gte=0,lte=1"`
	Columns []string `json:"columns,omitempty"`
}

// Smoothing applies a windowed filter to numeric columns. The window must
// be a positive odd integer no larger than the row count; the odd check is
// static, the row-count check happens against the payload.
type Smoothing struct{}

func NewSmoothing() *Smoothing {
	return &Smoothing{}
}

func (s *Smoothing) Name() string { return "smoothing" }

func (s *Smoothing) DefaultParameters() map[string]any {
	return defaultsAsMap(smoothingParams{
		Method: MethodMovingAverage,
		Window: 5,
		Order:  2,
		Alpha:  0.5,
	})
}

func (s *Smoothing) Validate(params map[string]any) error {
	_, err := s.decode(params)
	return err
}

func (s *Smoothing) decode(params map[string]any) (smoothingParams, error) {
	var p smoothingParams
	if err := decodeParams(params, &p); err != nil {
		return p, err
	}
	if p.Window%2 == 0 {
		return p, NewInvalidParametersError(fmt.Sprintf("window must be odd, got %d", p.Window))
	}
	if p.Method == MethodExponential && p.Alpha == 0 {
		return p, NewInvalidParametersError("alpha must be in (0,1] for exponential smoothing")
	}
	if p.Method == MethodSavitzkyGolay && p.Order == 0 {
		return p, NewInvalidParametersError("order must be 2 or 3 for savitzky-golay smoothing")
	}
	return p, nil
}

func (s *Smoothing) Process(ctx context.Context, table *tabular.Table, params map[string]any, progress ProgressFunc) (*Result, error) {
	p, err := s.decode(params)
	if err != nil {
		return nil, err
	}
	if p.Window > table.NumRows() {
		return nil, NewInvalidParametersError(fmt.Sprintf("window %d exceeds row count %d", p.Window, table.NumRows()))
	}
	progress(0)

	cols, err := resolveNumericColumns(table, p.Columns)
	if err != nil {
		return nil, err
	}

	out := table.Clone()
	for i, idx := range cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := out.NumericColumn(idx)
		var smoothed []float64
		switch p.Method {
		case MethodMovingAverage:
			smoothed = movingAverage(values, p.Window)
		case MethodSavitzkyGolay:
			smoothed = savitzkyGolay(values, p.Window)
		case MethodExponential:
			smoothed = exponential(values, p.Alpha)
		}
		for rowIdx, v := range smoothed {
			if !math.IsNaN(v) {
				out.Rows[rowIdx][idx] = tabular.NumberCell(v)
			}
		}
		progress(float64(i+1) / float64(len(cols)))
	}
	progress(1)

	return &Result{
		Table:   out,
		Summary: fmt.Sprintf("smoothed %d columns with %s (window %d)", len(cols), p.Method, p.Window),
	}, nil
}

// movingAverage averages over a centered window, shrinking the window at
// the edges so the output length matches the input.
func movingAverage(values []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-half)
		hi := min(len(values)-1, i+half)
		sum, n := 0.0, 0
		for j := lo; j <= hi; j++ {
			if !math.IsNaN(values[j]) {
				sum += values[j]
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// savitzkyGolay applies the closed-form quadratic/cubic least-squares
// smoothing weights for a centered window of size m=2k+1. The weights are
// proportional to 3m^2-7-20i^2 for offset i in [-k,k] and are normalized
// to sum to one.
func savitzkyGolay(values []float64, window int) []float64 {
	half := window / 2
	m := float64(window)
	coeffs := make([]float64, window)
	sum := 0.0
	for i := -half; i <= half; i++ {
		c := 3*m*m - 7 - 20*float64(i)*float64(i)
		coeffs[i+half] = c
		sum += c
	}
	for i := range coeffs {
		coeffs[i] /= sum
	}

	out := make([]float64, len(values))
	for i := range values {
		if i < half || i >= len(values)-half {
			out[i] = values[i] // edges keep the raw value
			continue
		}
		acc := 0.0
		valid := true
		for j := -half; j <= half; j++ {
			v := values[i+j]
			if math.IsNaN(v) {
				valid = false
				break
			}
			acc += coeffs[j+half] * v
		}
		if valid {
			out[i] = acc
		} else {
			out[i] = values[i]
		}
	}
	return out
}

func exponential(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case math.IsNaN(prev):
			out[i] = v
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}
