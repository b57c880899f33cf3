// Command validate runs the forecast pipeline on a historical dataset and
// checks the output end to end: input normalization, model fit, forecast
// records, the unified series and run-to-run determinism. When -expect is
// given, the series is also compared cell by cell with a previously exported
// CSV or XLSX file.
//
// Usage:
//
//	go run ./cmd/validate -data data/mock/historique_1996_2018.csv
//	go run ./cmd/validate \
//	  -data data/mock/historique_1996_2018.xlsx -sheet Feuil1 \
//	  -expect out/forecast.csv -end 2030
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/google/go-cmp/cmp"
)

// Relative tolerance for recomputed floating point quantities.
const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	defaults := domain.DefaultParams()

	dataPath := flag.String("data", "", "historical dataset (.csv or .xlsx)")
	sheet := flag.String("sheet", "", "sheet name for .xlsx input (default: first sheet)")
	expectPath := flag.String("expect", "", "optional exported series to compare against")
	cutoff := flag.Int("cutoff", defaults.PopulationCutoffYear, "last year used to fit population")
	pccStart := flag.Int("pcc-start", defaults.PerCapitaStartYear, "first year used to fit per-capita consumption")
	end := flag.Int("end", defaults.ForecastEndYear, "last forecast year")
	displayStart := flag.Int("display-start", defaults.DisplayStartYear, "first historical year in the unified series")
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	params := defaults
	params.PopulationCutoffYear = *cutoff
	params.PerCapitaStartYear = *pccStart
	params.ForecastEndYear = *end
	params.DisplayStartYear = *displayStart

	if code := run(*dataPath, *sheet, *expectPath, params); code != 0 {
		os.Exit(code)
	}
}

func run(dataPath, sheet, expectPath string, params domain.Params) int {
	fmt.Println("=== Water Forecast Integrity Validation ===")
	fmt.Println()

	raw, err := table.ReadFile(dataPath, sheet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	result, err := domain.Run(raw, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: forecast (%s): %v\n", domain.ErrorKind(err), err)
		return 1
	}
	for _, w := range result.Warnings {
		fmt.Printf("WARNING: %v\n", w)
	}

	phases := []*phase{
		validateNormalization(raw, result),
		validateModels(result, params),
		validateForecasts(result, params),
		validateSeries(result, params),
		validateDeterminism(raw, params, result),
	}
	if expectPath != "" {
		expected, err := table.ReadFile(expectPath, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load expected series: %v\n", err)
			return 1
		}
		phases = append(phases, validateExport(expected, result.Series))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d input rows, %d historical, %d forecast, %d in series\n",
		len(raw.Rows), len(result.Historical), len(result.Forecasts), len(result.Series))
	fmt.Printf("Population model:  alpha=%.4f beta=%.4f sse=%.4g\n",
		result.PopulationModel.Alpha, result.PopulationModel.Beta, result.PopulationModel.SSE)
	fmt.Printf("Per-capita model:  alpha=%.4f beta=%.4f sse=%.4g\n",
		result.PerCapitaModel.Alpha, result.PerCapitaModel.Beta, result.PerCapitaModel.SSE)
	fmt.Printf("Fingerprint: %s\n", result.Fingerprint)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: input normalization ──

func validateNormalization(raw domain.RawTable, result domain.Result) *phase {
	p := &phase{name: "Input normalization"}

	if len(result.Historical) == 0 {
		p.errorf("no historical records")
		return p
	}
	if len(result.Historical) > len(raw.Rows) {
		p.errorf("%d records from %d rows", len(result.Historical), len(raw.Rows))
	}

	for i, r := range result.Historical {
		if i > 0 && r.Year <= result.Historical[i-1].Year {
			p.errorf("year %d after %d: records not strictly ascending", r.Year, result.Historical[i-1].Year)
		}
		if r.Population <= 0 {
			p.errorf("year %d: population %v not positive", r.Year, r.Population)
			continue
		}
		if !approxEqual(r.PerCapitaConsumption, r.TotalConsumption/r.Population) {
			p.errorf("year %d: per-capita %v != total/population %v",
				r.Year, r.PerCapitaConsumption, r.TotalConsumption/r.Population)
		}
	}
	return p
}

// ── Phase 2: model fit ──

func validateModels(result domain.Result, params domain.Params) *phase {
	p := &phase{name: "Holt model fit"}

	var pop, pcc []float64
	for _, r := range result.Historical {
		if r.Year <= params.PopulationCutoffYear {
			pop = append(pop, r.Population)
		}
		if r.Year >= params.PerCapitaStartYear {
			pcc = append(pcc, r.PerCapitaConsumption)
		}
	}

	checkModel(p, domain.SeriesPopulation, result.PopulationModel, pop)
	checkModel(p, domain.SeriesPerCapita, result.PerCapitaModel, pcc)
	return p
}

func checkModel(p *phase, series string, m domain.HoltModel, values []float64) {
	if m.Alpha < 0 || m.Alpha > 1 {
		p.errorf("%s: alpha %v outside [0,1]", series, m.Alpha)
	}
	if m.Beta < 0 || m.Beta > 1 {
		p.errorf("%s: beta %v outside [0,1]", series, m.Beta)
	}
	if m.Observations != len(values) {
		p.errorf("%s: fitted on %d observations, expected %d", series, m.Observations, len(values))
		return
	}
	if len(values) < 2 {
		return
	}
	if m.InitialLevel != values[0] || m.InitialTrend != values[1]-values[0] {
		p.errorf("%s: initial state (%v, %v) does not match first observations", series, m.InitialLevel, m.InitialTrend)
	}

	fitted := m.Fitted(values)
	var sse float64
	for t := 1; t < len(values); t++ {
		e := values[t] - fitted[t]
		sse += e * e
	}
	if !approxEqual(sse, m.SSE) {
		p.errorf("%s: reported SSE %v, recomputed %v", series, m.SSE, sse)
	}
}

// ── Phase 3: forecast records ──

func validateForecasts(result domain.Result, params domain.Params) *phase {
	p := &phase{name: "Forecast records"}

	for i, f := range result.Forecasts {
		if i > 0 && f.Year != result.Forecasts[i-1].Year+1 {
			p.errorf("forecast year %d follows %d", f.Year, result.Forecasts[i-1].Year)
		}
		if f.Year > params.ForecastEndYear {
			p.errorf("forecast year %d after end year %d", f.Year, params.ForecastEndYear)
		}
		if f.Population < 0 {
			p.errorf("year %d: negative population %d", f.Year, f.Population)
		}
		if rounded := domain.RoundIntensity(f.PerCapitaConsumption); rounded != f.PerCapitaConsumption {
			p.errorf("year %d: per-capita %v not rounded to 2 decimals", f.Year, f.PerCapitaConsumption)
		}
		if want := domain.TotalConsumption(f.Population, f.PerCapitaConsumption); want != f.TotalConsumption {
			p.errorf("year %d: total %d, population x per-capita gives %d", f.Year, f.TotalConsumption, want)
		}
	}

	if n := len(result.Forecasts); n > 0 && len(result.Warnings) == 0 && result.Forecasts[n-1].Year != params.ForecastEndYear {
		p.errorf("last forecast year %d, expected %d", result.Forecasts[n-1].Year, params.ForecastEndYear)
	}
	return p
}

// ── Phase 4: unified series ──

func validateSeries(result domain.Result, params domain.Params) *phase {
	p := &phase{name: "Unified series"}

	series := result.Series
	if len(series) == 0 {
		p.errorf("series is empty")
		return p
	}

	for i := 1; i < len(series); i++ {
		if series[i].Year != series[i-1].Year+1 {
			p.errorf("year %d follows %d", series[i].Year, series[i-1].Year)
		}
		if series[i-1].Origin == domain.OriginForecast && series[i].Origin == domain.OriginHistorical {
			p.errorf("historical year %d after a forecast year", series[i].Year)
		}
	}

	if series[0].Year < params.DisplayStartYear {
		p.errorf("series starts at %d, before display start %d", series[0].Year, params.DisplayStartYear)
	}

	historical := make(map[int]domain.HistoricalRecord, len(result.Historical))
	for _, h := range result.Historical {
		historical[h.Year] = h
	}
	var nForecast int
	for _, rec := range series {
		if rec.Origin == domain.OriginForecast {
			nForecast++
			continue
		}
		h, ok := historical[rec.Year]
		if !ok {
			p.errorf("historical year %d not in input", rec.Year)
			continue
		}
		if rec.Population != int64(domain.RoundCount(h.Population)) {
			p.errorf("year %d: population %d, input %v", rec.Year, rec.Population, h.Population)
		}
		if rec.TotalConsumption != int64(domain.RoundCount(h.TotalConsumption)) {
			p.errorf("year %d: total %d, input %v", rec.Year, rec.TotalConsumption, h.TotalConsumption)
		}
		if rec.PerCapitaConsumption != domain.RoundIntensity(h.PerCapitaConsumption) {
			p.errorf("year %d: per-capita %v, input %v", rec.Year, rec.PerCapitaConsumption, h.PerCapitaConsumption)
		}
	}
	if nForecast != len(result.Forecasts) {
		p.errorf("series holds %d forecast years, pipeline produced %d", nForecast, len(result.Forecasts))
	}
	return p
}

// ── Phase 5: determinism ──

func validateDeterminism(raw domain.RawTable, params domain.Params, first domain.Result) *phase {
	p := &phase{name: "Determinism"}

	second, err := domain.Run(raw, params)
	if err != nil {
		p.errorf("second run failed: %v", err)
		return p
	}
	if diff := cmp.Diff(first, second); diff != "" {
		p.errorf("results differ between runs (-first +second):\n%s", diff)
	}
	return p
}

// ── Phase 6: export comparison ──

func validateExport(expected domain.RawTable, series domain.UnifiedSeries) *phase {
	p := &phase{name: "Export comparison"}

	got := table.SeriesTable(series)
	if diff := cmp.Diff(expected.Header, got.Header); diff != "" {
		p.errorf("header mismatch (-expected +got):\n%s", diff)
	}
	if len(expected.Rows) != len(got.Rows) {
		p.errorf("%d rows expected, got %d", len(expected.Rows), len(got.Rows))
	}
	for i := 0; i < len(expected.Rows) && i < len(got.Rows); i++ {
		if diff := cmp.Diff(expected.Rows[i], got.Rows[i]); diff != "" {
			p.errorf("row %d (-expected +got):\n%s", i+2, diff)
		}
	}
	return p
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tolerance*scale
}
