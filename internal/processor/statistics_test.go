package processor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsDescribe(t *testing.T) {
	table := numericTable([]string{"x"}, [][]float64{{1}, {2}, {3}, {4}, {5}})

	result, err := NewStatistics().Process(context.Background(), table, nil, noProgress)
	require.NoError(t, err)
	require.Nil(t, result.Table)
	require.NotNil(t, result.Statistics)

	colStats, ok := result.Statistics["x"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5, colStats["count"])
	assert.InDelta(t, 3.0, colStats["mean"].(float64), 1e-9)
	assert.InDelta(t, 1.0, colStats["min"].(float64), 1e-9)
	assert.InDelta(t, 5.0, colStats["max"].(float64), 1e-9)

	quantiles, ok := colStats["quantiles"].(map[string]float64)
	require.True(t, ok)
	assert.InDelta(t, 3.0, quantiles["q0.5"], 1e-9)
	assert.InDelta(t, 2.0, quantiles["q0.25"], 1e-9)
}

func TestStatisticsCorrelation(t *testing.T) {
	table := numericTable([]string{"a", "b"}, [][]float64{
		{1, 2}, {2, 4}, {3, 6}, {4, 8},
	})

	result, err := NewStatistics().Process(context.Background(), table,
		map[string]any{"correlation": true}, noProgress)
	require.NoError(t, err)

	corr, ok := result.Statistics["correlation"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1.0, corr["a:b"].(float64), 1e-9)
}

func TestStatisticsValidateQuantiles(t *testing.T) {
	s := NewStatistics()
	var invalidErr *InvalidParametersError

	err := s.Validate(map[string]any{"quantiles": []float64{0.5, 1.5}})
	require.ErrorAs(t, err, &invalidErr)

	assert.NoError(t, s.Validate(map[string]any{"quantiles": []float64{0.1, 0.9}}))
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 4.0, quantile(sorted, 1), 1e-9)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-9)
}

func TestPearsonDegenerate(t *testing.T) {
	_, ok := pearson([]float64{1}, []float64{2})
	assert.False(t, ok)
	_, ok = pearson([]float64{1, 1, 1}, []float64{2, 3, 4})
	assert.False(t, ok)
}

func TestStatisticsCorrelationConstantColumn(t *testing.T) {
	table := numericTable([]string{"a", "b"}, [][]float64{
		{7, 1}, {7, 2}, {7, 3},
	})

	result, err := NewStatistics().Process(context.Background(), table,
		map[string]any{"correlation": true}, noProgress)
	require.NoError(t, err)

	corr, ok := result.Statistics["correlation"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, corr, "a:b")
	assert.Nil(t, corr["a:b"])

	// everything persisted must survive JSON encoding
	_, err = json.Marshal(result.Statistics)
	assert.NoError(t, err)
}
