package domain

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// minHoltObservations is the shortest series a linear trend can be fitted to.
const minHoltObservations = 2

// gridStep is the resolution of the initial smoothing-weight scan.
const gridStep = 0.05

// HoltModel is a fitted Holt linear-trend model. Level and Trend are the final
// smoothed state after the last observation.
type HoltModel struct {
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	InitialLevel float64 `json:"initial_level"`
	InitialTrend float64 `json:"initial_trend"`
	Level        float64 `json:"level"`
	Trend        float64 `json:"trend"`
	SSE          float64 `json:"sse"`
	Observations int     `json:"observations"`
}

// FitHolt fits Holt's linear method to values. The initial level is the first
// observation and the initial trend the first difference. Alpha and beta are
// chosen in [0,1] to minimize the one-step-ahead squared error: a fixed grid
// scan picks the starting point and Nelder-Mead refines it. The procedure has
// no random component, so identical input yields identical weights.
func FitHolt(values []float64) (HoltModel, error) {
	if len(values) < minHoltObservations {
		return HoltModel{}, &InsufficientDataError{Got: len(values), Need: minHoltObservations}
	}

	alpha, beta, sse := scanWeights(values)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return holtSSE(values, clampUnit(x[0]), clampUnit(x[1]))
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 50,
		},
		MajorIterations: 1000,
		FuncEvaluations: 5000,
	}
	res, err := optimize.Minimize(problem, []float64{alpha, beta}, settings, &optimize.NelderMead{SimplexSize: gridStep})
	if err == nil && res != nil && !math.IsNaN(res.F) && res.F < sse {
		alpha, beta, sse = clampUnit(res.X[0]), clampUnit(res.X[1]), res.F
	}

	return newHoltModel(values, alpha, beta, sse), nil
}

// Forecast extrapolates h steps ahead: level + k*trend for k = 1..h.
func (m HoltModel) Forecast(h int) []float64 {
	if h <= 0 {
		return nil
	}
	out := make([]float64, h)
	for k := 1; k <= h; k++ {
		out[k-1] = m.Level + float64(k)*m.Trend
	}
	return out
}

// Fitted returns the one-step-ahead predictions of the model over values.
// The first element is the initial level, which has no prior prediction.
func (m HoltModel) Fitted(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	fitted := make([]float64, len(values))
	fitted[0] = values[0]
	if len(values) < minHoltObservations {
		return fitted
	}
	level, trend := values[0], values[1]-values[0]
	for t := 1; t < len(values); t++ {
		fitted[t] = level + trend
		level, trend = holtStep(values[t], level, trend, m.Alpha, m.Beta)
	}
	return fitted
}

func newHoltModel(values []float64, alpha, beta, sse float64) HoltModel {
	m := HoltModel{
		Alpha:        alpha,
		Beta:         beta,
		InitialLevel: values[0],
		InitialTrend: values[1] - values[0],
		SSE:          sse,
		Observations: len(values),
	}
	m.Level, m.Trend = m.InitialLevel, m.InitialTrend
	for t := 1; t < len(values); t++ {
		m.Level, m.Trend = holtStep(values[t], m.Level, m.Trend, alpha, beta)
	}
	return m
}

// scanWeights evaluates the error on a regular grid over [0,1]^2 and returns the
// first minimum in scan order.
func scanWeights(values []float64) (alpha, beta, sse float64) {
	sse = math.Inf(1)
	steps := int(math.Round(1 / gridStep))
	for i := 0; i <= steps; i++ {
		a := float64(i) * gridStep
		for j := 0; j <= steps; j++ {
			b := float64(j) * gridStep
			if e := holtSSE(values, a, b); e < sse {
				alpha, beta, sse = a, b, e
			}
		}
	}
	return alpha, beta, sse
}

func holtSSE(values []float64, alpha, beta float64) float64 {
	level, trend := values[0], values[1]-values[0]
	var sse float64
	for t := 1; t < len(values); t++ {
		e := values[t] - (level + trend)
		sse += e * e
		level, trend = holtStep(values[t], level, trend, alpha, beta)
	}
	return sse
}

func holtStep(y, level, trend, alpha, beta float64) (float64, float64) {
	next := alpha*y + (1-alpha)*(level+trend)
	return next, beta*(next-level) + (1-beta)*trend
}

func clampUnit(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
