package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Series names used in error messages and metrics labels.
const (
	SeriesPopulation = "population"
	SeriesPerCapita  = "per_capita_consumption"
	SeriesUnified    = "unified"
)

// MissingColumnError reports a required field that no header resolved to.
type MissingColumnError struct {
	Field  Field
	Header []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q (headers: %s)", e.Field, strings.Join(e.Header, ", "))
}

// InvalidPopulationError reports a row whose population would make the
// per-capita ratio undefined.
type InvalidPopulationError struct {
	Year       int
	Population float64
}

func (e *InvalidPopulationError) Error() string {
	return fmt.Sprintf("invalid population %g for year %d: must be > 0", e.Population, e.Year)
}

// InvalidValueError reports a cell that could not be parsed.
type InvalidValueError struct {
	Row    int // 1-based data row, header excluded
	Column string
	Value  string
	Err    error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("row %d column %q: invalid value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// DuplicateYearError reports a year that appears on more than one row.
type DuplicateYearError struct {
	Year int
}

func (e *DuplicateYearError) Error() string {
	return fmt.Sprintf("duplicate year %d", e.Year)
}

// EmptyTableError reports a dataset with a header but no data rows.
type EmptyTableError struct{}

func (e *EmptyTableError) Error() string { return "dataset has no data rows" }

// IrregularSeriesError reports a gap or overlap in an annual series.
type IrregularSeriesError struct {
	Series   string
	Previous int
	Year     int
}

func (e *IrregularSeriesError) Error() string {
	return fmt.Sprintf("%s series is not annual: year %d follows %d", e.Series, e.Year, e.Previous)
}

// InsufficientDataError reports a training series too short to fit a trend.
type InsufficientDataError struct {
	Series string
	Got    int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s series has %d observations, need at least %d", e.Series, e.Got, e.Need)
}

// DisplayWindowError reports a display start year after the last historical
// year, which would leave no history in the unified series.
type DisplayWindowError struct {
	DisplayStart   int
	LastHistorical int
}

func (e *DisplayWindowError) Error() string {
	return fmt.Sprintf("display start year %d is after the last historical year %d", e.DisplayStart, e.LastHistorical)
}

// MergeMismatchError reports forecast year sets that do not align.
type MergeMismatchError struct {
	Index          int
	PopulationYear int
	PerCapitaYear  int
}

func (e *MergeMismatchError) Error() string {
	return fmt.Sprintf("forecast years do not align at position %d: population %d, per-capita %d",
		e.Index, e.PopulationYear, e.PerCapitaYear)
}

// HorizonMismatchWarning is non-fatal: the two trend models produced forecasts
// of different length and the longer one was truncated.
type HorizonMismatchWarning struct {
	Population int
	PerCapita  int
}

func (w HorizonMismatchWarning) Error() string {
	return fmt.Sprintf("forecast horizons differ: population %d, per-capita %d; truncated to %d",
		w.Population, w.PerCapita, min(w.Population, w.PerCapita))
}

// IsInputError reports whether err was caused by the dataset rather than by
// the service.
func IsInputError(err error) bool {
	var (
		missing      *MissingColumnError
		population   *InvalidPopulationError
		value        *InvalidValueError
		duplicate    *DuplicateYearError
		empty        *EmptyTableError
		irregular    *IrregularSeriesError
		insufficient *InsufficientDataError
		window       *DisplayWindowError
	)
	return errors.As(err, &missing) ||
		errors.As(err, &population) ||
		errors.As(err, &value) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &empty) ||
		errors.As(err, &irregular) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &window)
}

// ErrorKind returns a short stable label for err, used for metrics and API responses.
func ErrorKind(err error) string {
	var (
		missing      *MissingColumnError
		population   *InvalidPopulationError
		value        *InvalidValueError
		duplicate    *DuplicateYearError
		empty        *EmptyTableError
		irregular    *IrregularSeriesError
		insufficient *InsufficientDataError
		window       *DisplayWindowError
		merge        *MergeMismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return "missing_column"
	case errors.As(err, &population):
		return "invalid_population"
	case errors.As(err, &value):
		return "invalid_value"
	case errors.As(err, &duplicate):
		return "duplicate_year"
	case errors.As(err, &empty):
		return "empty_table"
	case errors.As(err, &irregular):
		return "irregular_series"
	case errors.As(err, &insufficient):
		return "insufficient_data"
	case errors.As(err, &window):
		return "display_window"
	case errors.As(err, &merge):
		return "merge_mismatch"
	default:
		return "internal"
	}
}
