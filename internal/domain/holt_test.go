package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noisySeries = []float64{31.2, 32.9, 32.1, 34.8, 35.0, 36.9, 36.2, 38.8, 39.1, 40.7, 40.2, 42.9}

func TestFitHolt_LinearSeriesExtrapolatesExactly(t *testing.T) {
	model, err := FitHolt([]float64{10, 12, 14, 16})
	require.NoError(t, err)

	assert.InDelta(t, 0, model.SSE, 1e-12)
	assert.InDelta(t, 16, model.Level, 1e-9)
	assert.InDelta(t, 2, model.Trend, 1e-9)

	fc := model.Forecast(3)
	require.Len(t, fc, 3)
	assert.InDelta(t, 18, fc[0], 1e-9)
	assert.InDelta(t, 20, fc[1], 1e-9)
	assert.InDelta(t, 22, fc[2], 1e-9)
}

func TestFitHolt_TwoObservations(t *testing.T) {
	model, err := FitHolt([]float64{5, 8})
	require.NoError(t, err)
	assert.Equal(t, 2, model.Observations)

	fc := model.Forecast(2)
	assert.InDelta(t, 11, fc[0], 1e-9)
	assert.InDelta(t, 14, fc[1], 1e-9)
}

func TestFitHolt_InsufficientData(t *testing.T) {
	for _, values := range [][]float64{nil, {42}} {
		_, err := FitHolt(values)
		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, len(values), insufficient.Got)
		assert.Equal(t, 2, insufficient.Need)
	}
}

func TestFitHolt_OptimizedWeights(t *testing.T) {
	model, err := FitHolt(noisySeries)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, model.Alpha, 0.0)
	assert.LessOrEqual(t, model.Alpha, 1.0)
	assert.GreaterOrEqual(t, model.Beta, 0.0)
	assert.LessOrEqual(t, model.Beta, 1.0)

	// The reported error is the error of the reported weights.
	assert.InDelta(t, holtSSE(noisySeries, model.Alpha, model.Beta), model.SSE, 1e-9)

	// No grid point does better than the optimum.
	for _, a := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
		for _, b := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1} {
			assert.LessOrEqual(t, model.SSE, holtSSE(noisySeries, a, b)+1e-12, "alpha=%g beta=%g", a, b)
		}
	}
}

func TestFitHolt_Deterministic(t *testing.T) {
	first, err := FitHolt(noisySeries)
	require.NoError(t, err)
	for range 5 {
		again, err := FitHolt(noisySeries)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHoltModel_ForecastNonPositiveHorizon(t *testing.T) {
	model, err := FitHolt([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Empty(t, model.Forecast(0))
	assert.Empty(t, model.Forecast(-3))
}

func TestHoltModel_Fitted(t *testing.T) {
	t.Run("linear series is fitted exactly", func(t *testing.T) {
		values := []float64{3, 5, 7, 9, 11}
		model, err := FitHolt(values)
		require.NoError(t, err)
		fitted := model.Fitted(values)
		require.Len(t, fitted, len(values))
		for i := range values {
			assert.InDelta(t, values[i], fitted[i], 1e-9)
		}
	})

	t.Run("residuals reproduce the error", func(t *testing.T) {
		model, err := FitHolt(noisySeries)
		require.NoError(t, err)
		fitted := model.Fitted(noisySeries)

		var sse float64
		for i := 1; i < len(noisySeries); i++ {
			e := noisySeries[i] - fitted[i]
			sse += e * e
		}
		assert.InDelta(t, model.SSE, sse, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, HoltModel{}.Fitted(nil))
	})
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(-0.3))
	assert.Equal(t, 1.0, clampUnit(1.7))
	assert.Equal(t, 0.4, clampUnit(0.4))
}
