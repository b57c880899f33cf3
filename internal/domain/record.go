package domain

// Canonical column names shared by every output format.
const (
	ColumnYear                 = "year"
	ColumnPopulation           = "population"
	ColumnPerCapitaConsumption = "per_capita_consumption"
	ColumnTotalConsumption     = "total_consumption"
)

// SeriesColumns is the header row of exported series, in order.
var SeriesColumns = []string{
	ColumnYear,
	ColumnPopulation,
	ColumnPerCapitaConsumption,
	ColumnTotalConsumption,
}

// RawTable is a format-neutral tabular dataset as read from a file.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// HistoricalRecord is one observed year. PerCapitaConsumption is derived at load time.
type HistoricalRecord struct {
	Year                 int     `json:"year"`
	Population           float64 `json:"population"`
	TotalConsumption     float64 `json:"total_consumption"`
	PerCapitaConsumption float64 `json:"per_capita_consumption"`
}

// ForecastRecord is one projected year.
type ForecastRecord struct {
	Year                 int     `json:"year"`
	Population           int64   `json:"population"`
	PerCapitaConsumption float64 `json:"per_capita_consumption"`
	TotalConsumption     int64   `json:"total_consumption"`
}

// YearValue is a single point of a univariate annual series.
type YearValue struct {
	Year  int
	Value float64
}

// Origin tells whether a series record was observed or projected.
type Origin string

const (
	OriginHistorical Origin = "historical"
	OriginForecast   Origin = "forecast"
)

// SeriesRecord is the shared shape of historical and forecast rows.
type SeriesRecord struct {
	Year                 int     `json:"year"`
	Population           int64   `json:"population"`
	PerCapitaConsumption float64 `json:"per_capita_consumption"`
	TotalConsumption     int64   `json:"total_consumption"`
	Origin               Origin  `json:"origin"`
}

// UnifiedSeries is the pipeline output, ordered by year ascending.
type UnifiedSeries []SeriesRecord

// Years returns the year of every record in order.
func (s UnifiedSeries) Years() []int {
	years := make([]int, len(s))
	for i := range s {
		years[i] = s[i].Year
	}
	return years
}

// ByYear returns the record for the given year. Records are contiguous, so the
// lookup is positional.
func (s UnifiedSeries) ByYear(year int) (SeriesRecord, bool) {
	if len(s) == 0 {
		return SeriesRecord{}, false
	}
	i := year - s[0].Year
	if i < 0 || i >= len(s) || s[i].Year != year {
		return SeriesRecord{}, false
	}
	return s[i], true
}

// Result bundles everything a single pipeline invocation produced.
type Result struct {
	Fingerprint     string // of the input table, see Fingerprint
	Historical      []HistoricalRecord
	Forecasts       []ForecastRecord
	Series          UnifiedSeries
	PopulationModel HoltModel
	PerCapitaModel  HoltModel
	Warnings        []HorizonMismatchWarning
}
