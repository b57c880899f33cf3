package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Params are the adjustable constants of the forecast pipeline.
type Params struct {
	Headers              HeaderMapping
	PopulationCutoffYear int // last year used to fit the population trend
	PerCapitaStartYear   int // first year used to fit the per-capita trend
	ForecastEndYear      int // last forecast year, inclusive
	DisplayStartYear     int // first historical year kept in the unified series
}

// DefaultParams returns the reference scenario: population trained through
// 2018, per-capita trained from 1996, forecasts through 2030, history shown
// from 1997.
func DefaultParams() Params {
	return Params{
		Headers:              DefaultHeaderMapping(),
		PopulationCutoffYear: 2018,
		PerCapitaStartYear:   1996,
		ForecastEndYear:      2030,
		DisplayStartYear:     1997,
	}
}

// Validate checks the relationships between the configured years.
func (p Params) Validate() error {
	if len(p.Headers) == 0 {
		return errors.New("header mapping is empty")
	}
	if p.ForecastEndYear <= p.PopulationCutoffYear {
		return fmt.Errorf("forecast end year %d must be after population cutoff year %d",
			p.ForecastEndYear, p.PopulationCutoffYear)
	}
	if p.PerCapitaStartYear > p.PopulationCutoffYear {
		return fmt.Errorf("per-capita start year %d must not be after population cutoff year %d",
			p.PerCapitaStartYear, p.PopulationCutoffYear)
	}
	if p.DisplayStartYear > p.ForecastEndYear {
		return fmt.Errorf("display start year %d must not be after forecast end year %d",
			p.DisplayStartYear, p.ForecastEndYear)
	}
	return nil
}

// Run executes the full pipeline: normalize, fit both trend models, merge the
// forecasts and append them to the filtered history. It has no side effects.
func Run(table RawTable, params Params) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid parameters: %w", err)
	}

	historical, err := Normalize(table, params.Headers)
	if err != nil {
		return Result{}, err
	}

	popForecast, popModel, err := ForecastPopulation(historical, params)
	if err != nil {
		return Result{}, err
	}

	pccForecast, pccModel, err := ForecastPerCapita(historical, params)
	if err != nil {
		return Result{}, err
	}

	forecasts, warnings, err := MergeForecasts(popForecast, pccForecast)
	if err != nil {
		return Result{}, err
	}

	series, err := Concatenate(historical, forecasts, params.DisplayStartYear)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Fingerprint:     Fingerprint(table),
		Historical:      historical,
		Forecasts:       forecasts,
		Series:          series,
		PopulationModel: popModel,
		PerCapitaModel:  pccModel,
		Warnings:        warnings,
	}, nil
}

// ForecastPopulation fits the population trend on years up to the cutoff and
// projects it through the forecast end year, rounded to whole people.
func ForecastPopulation(records []HistoricalRecord, params Params) ([]YearValue, HoltModel, error) {
	train := selectYears(records, func(y int) bool { return y <= params.PopulationCutoffYear },
		func(r HistoricalRecord) float64 { return r.Population })
	return fitAndProject(SeriesPopulation, train, params.ForecastEndYear, RoundCount)
}

// ForecastPerCapita fits the per-capita trend on the full series from the
// configured start year and projects it through the forecast end year,
// rounded to 2 decimals.
func ForecastPerCapita(records []HistoricalRecord, params Params) ([]YearValue, HoltModel, error) {
	train := selectYears(records, func(y int) bool { return y >= params.PerCapitaStartYear },
		func(r HistoricalRecord) float64 { return r.PerCapitaConsumption })
	return fitAndProject(SeriesPerCapita, train, params.ForecastEndYear, RoundIntensity)
}

func selectYears(records []HistoricalRecord, keep func(int) bool, value func(HistoricalRecord) float64) []YearValue {
	out := make([]YearValue, 0, len(records))
	for _, r := range records {
		if keep(r.Year) {
			out = append(out, YearValue{Year: r.Year, Value: value(r)})
		}
	}
	return out
}

func fitAndProject(series string, train []YearValue, endYear int, round func(float64) float64) ([]YearValue, HoltModel, error) {
	if len(train) < minHoltObservations {
		return nil, HoltModel{}, &InsufficientDataError{Series: series, Got: len(train), Need: minHoltObservations}
	}
	if err := checkAnnual(series, train); err != nil {
		return nil, HoltModel{}, err
	}

	values := make([]float64, len(train))
	for i, p := range train {
		values[i] = p.Value
	}
	model, err := FitHolt(values)
	if err != nil {
		return nil, HoltModel{}, fmt.Errorf("fit %s trend: %w", series, err)
	}

	last := train[len(train)-1].Year
	projected := model.Forecast(endYear - last)
	out := make([]YearValue, len(projected))
	for k, v := range projected {
		out[k] = YearValue{Year: last + k + 1, Value: round(v)}
	}
	return out, model, nil
}

func checkAnnual(series string, points []YearValue) error {
	for i := 1; i < len(points); i++ {
		if points[i].Year != points[i-1].Year+1 {
			return &IrregularSeriesError{Series: series, Previous: points[i-1].Year, Year: points[i].Year}
		}
	}
	return nil
}

// MergeForecasts joins the population and per-capita forecasts by year. The
// longer sequence is truncated to the length of the shorter one (keeping the
// earliest years) and a HorizonMismatchWarning is returned when that happens.
// Years must then match one-to-one.
func MergeForecasts(population, perCapita []YearValue) ([]ForecastRecord, []HorizonMismatchWarning, error) {
	var warnings []HorizonMismatchWarning
	if len(population) != len(perCapita) {
		warnings = append(warnings, HorizonMismatchWarning{Population: len(population), PerCapita: len(perCapita)})
		n := min(len(population), len(perCapita))
		population, perCapita = population[:n], perCapita[:n]
	}

	out := make([]ForecastRecord, len(population))
	for i := range population {
		if population[i].Year != perCapita[i].Year {
			return nil, warnings, &MergeMismatchError{
				Index:          i,
				PopulationYear: population[i].Year,
				PerCapitaYear:  perCapita[i].Year,
			}
		}
		pop := int64(population[i].Value)
		pcc := perCapita[i].Value
		out[i] = ForecastRecord{
			Year:                 population[i].Year,
			Population:           pop,
			PerCapitaConsumption: pcc,
			TotalConsumption:     TotalConsumption(pop, pcc),
		}
	}
	return out, warnings, nil
}

// Concatenate keeps historical records from displayStart onwards and appends
// the forecasts. The last historical year must immediately precede the first
// forecast year, and displayStart must not be after it. Historical counts and
// per-capita values are rounded like the forecasts; the exact values stay in
// the historical records.
func Concatenate(historical []HistoricalRecord, forecasts []ForecastRecord, displayStart int) (UnifiedSeries, error) {
	if n := len(historical); n > 0 && displayStart > historical[n-1].Year {
		return nil, &DisplayWindowError{DisplayStart: displayStart, LastHistorical: historical[n-1].Year}
	}
	series := make(UnifiedSeries, 0, len(historical)+len(forecasts))
	for _, h := range historical {
		if h.Year < displayStart {
			continue
		}
		series = append(series, SeriesRecord{
			Year:                 h.Year,
			Population:           int64(RoundCount(h.Population)),
			PerCapitaConsumption: RoundIntensity(h.PerCapitaConsumption),
			TotalConsumption:     int64(RoundCount(h.TotalConsumption)),
			Origin:               OriginHistorical,
		})
	}
	for _, f := range forecasts {
		series = append(series, SeriesRecord{
			Year:                 f.Year,
			Population:           f.Population,
			PerCapitaConsumption: f.PerCapitaConsumption,
			TotalConsumption:     f.TotalConsumption,
			Origin:               OriginForecast,
		})
	}

	for i := 1; i < len(series); i++ {
		if series[i].Year != series[i-1].Year+1 {
			return nil, &IrregularSeriesError{Series: SeriesUnified, Previous: series[i-1].Year, Year: series[i].Year}
		}
	}
	return series, nil
}

// TotalConsumption derives the forecast total volume from its components.
func TotalConsumption(population int64, perCapita float64) int64 {
	return int64(RoundCount(float64(population) * perCapita))
}

// RoundCount rounds half to even to a whole number.
func RoundCount(v float64) float64 {
	return math.RoundToEven(v)
}

// RoundIntensity rounds half to even to 2 decimals.
func RoundIntensity(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}
