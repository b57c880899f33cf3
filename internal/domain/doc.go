// Package domain models the annual water-consumption records of a utility
// service area and the forecast pipeline built on top of them.
//
// # Data Source
//
// Historical records come from a single workbook or CSV maintained by the
// utility: one row per calendar year with the resident population and the total
// volume of water billed that year. The original workbook carries French
// headers ("Année", "Populations", "Consommation en eau m3/an"), sometimes with
// stray trailing spaces. Headers are trimmed and then resolved through a
// [HeaderMapping]; matching is otherwise exact.
//
// # Derived Metrics
//
// Per-capita consumption (CUG, "consommation unitaire globale") is
//
//	per_capita_consumption = total_consumption / population
//
// computed once per row at load time. A row with population <= 0 is rejected
// before any model is fitted.
//
// # Trend Models
//
// Both population and per-capita consumption are extrapolated with Holt's
// linear trend method:
//
//	level_t = alpha*y_t + (1-alpha)*(level_{t-1} + trend_{t-1})
//	trend_t = beta*(level_t - level_{t-1}) + (1-beta)*trend_{t-1}
//	yhat_{T+k} = level_T + k*trend_T
//
// The initial level is the first observation and the initial trend is the first
// difference. alpha and beta are chosen in [0,1] to minimize the in-sample
// one-step-ahead squared error (see [FitHolt]).
//
// Training windows differ on purpose:
//
//	Population:  years <= PopulationCutoffYear (2018), the last year the
//	             census-based figures are considered reliable.
//	Per-capita:  every year >= PerCapitaStartYear (1996), i.e. the full series.
//
// The per-capita forecast is truncated to the population horizon before the two
// are merged by year; unequal horizons produce a [HorizonMismatchWarning].
//
// # Rounding
//
// Rounding follows half-to-even ("banker's") semantics:
//
//	population forecast      -> integer
//	per-capita forecast      -> 2 decimals
//	total consumption        -> round(population * per_capita), integer
//
// # Output
//
// [UnifiedSeries] concatenates historical records from DisplayStartYear (1997)
// with the forecast rows. No smoothing is applied across the boundary; a slope
// change between the last observed year and the first forecast year is expected.
package domain
