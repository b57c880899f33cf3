package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Field is one of the semantic input columns.
type Field int

const (
	FieldYear Field = iota
	FieldPopulation
	FieldTotalConsumption
)

var requiredFields = []Field{FieldYear, FieldPopulation, FieldTotalConsumption}

func (f Field) String() string {
	switch f {
	case FieldYear:
		return ColumnYear
	case FieldPopulation:
		return ColumnPopulation
	case FieldTotalConsumption:
		return ColumnTotalConsumption
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// ParseField maps a canonical field name to its Field.
func ParseField(name string) (Field, error) {
	switch strings.TrimSpace(name) {
	case ColumnYear:
		return FieldYear, nil
	case ColumnPopulation:
		return FieldPopulation, nil
	case ColumnTotalConsumption:
		return FieldTotalConsumption, nil
	default:
		return 0, fmt.Errorf("unknown field %q", name)
	}
}

// HeaderMapping maps recognized header text (already trimmed) to a field.
type HeaderMapping map[string]Field

// DefaultHeaderMapping recognizes the canonical names, common English variants
// and the headers of the original French workbook.
func DefaultHeaderMapping() HeaderMapping {
	return HeaderMapping{
		ColumnYear: FieldYear,
		"Year":     FieldYear,
		"Année":    FieldYear,
		"année":    FieldYear,

		ColumnPopulation: FieldPopulation,
		"Population":     FieldPopulation,
		"Populations":    FieldPopulation,

		ColumnTotalConsumption:      FieldTotalConsumption,
		"Total consumption":         FieldTotalConsumption,
		"consommation_totale_m3":    FieldTotalConsumption,
		"Consommation en eau m3/an": FieldTotalConsumption,
	}
}

// Merge returns a copy of m overlaid with other.
func (m HeaderMapping) Merge(other HeaderMapping) HeaderMapping {
	out := make(HeaderMapping, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// resolve returns the column index of every required field.
func (m HeaderMapping) resolve(header []string) (map[Field]int, error) {
	idx := make(map[Field]int, len(requiredFields))
	for i, h := range header {
		f, ok := m[strings.TrimSpace(h)]
		if !ok {
			continue
		}
		if _, seen := idx[f]; !seen {
			idx[f] = i
		}
	}
	for _, f := range requiredFields {
		if _, ok := idx[f]; !ok {
			return nil, &MissingColumnError{Field: f, Header: header}
		}
	}
	return idx, nil
}

// Normalize resolves the table columns, parses every row and derives the
// per-capita consumption. Records are returned sorted by year.
func Normalize(table RawTable, headers HeaderMapping) ([]HistoricalRecord, error) {
	idx, err := headers.resolve(table.Header)
	if err != nil {
		return nil, err
	}

	records := make([]HistoricalRecord, 0, len(table.Rows))
	seen := make(map[int]bool, len(table.Rows))
	for i, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		rec, err := parseRow(i+1, row, idx, table.Header)
		if err != nil {
			return nil, err
		}
		if seen[rec.Year] {
			return nil, &DuplicateYearError{Year: rec.Year}
		}
		seen[rec.Year] = true
		if rec.Population <= 0 {
			return nil, &InvalidPopulationError{Year: rec.Year, Population: rec.Population}
		}
		rec.PerCapitaConsumption = rec.TotalConsumption / rec.Population
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, &EmptyTableError{}
	}

	sort.Slice(records, func(a, b int) bool { return records[a].Year < records[b].Year })
	return records, nil
}

func parseRow(rowNum int, row []string, idx map[Field]int, header []string) (HistoricalRecord, error) {
	cell := func(f Field) (string, string) {
		col := idx[f]
		name := strings.TrimSpace(header[col])
		if col >= len(row) {
			return "", name
		}
		return row[col], name
	}

	raw, name := cell(FieldYear)
	year, err := parseYear(raw)
	if err != nil {
		return HistoricalRecord{}, &InvalidValueError{Row: rowNum, Column: name, Value: raw, Err: err}
	}

	raw, name = cell(FieldPopulation)
	population, err := parseNumber(raw)
	if err != nil {
		return HistoricalRecord{}, &InvalidValueError{Row: rowNum, Column: name, Value: raw, Err: err}
	}

	raw, name = cell(FieldTotalConsumption)
	total, err := parseNumber(raw)
	if err != nil {
		return HistoricalRecord{}, &InvalidValueError{Row: rowNum, Column: name, Value: raw, Err: err}
	}
	if total < 0 {
		return HistoricalRecord{}, &InvalidValueError{Row: rowNum, Column: name, Value: raw, Err: errNegative}
	}

	return HistoricalRecord{Year: year, Population: population, TotalConsumption: total}, nil
}

var (
	errNegative  = errors.New("must not be negative")
	errAmbiguous = errors.New("ambiguous separator: a single comma before three digits may be a thousands or a decimal separator")
)

// ambiguousComma matches "123,456": thousands-grouped in English, a
// three-decimal number in French.
var ambiguousComma = regexp.MustCompile(`^[+-]?\d{1,3},\d{3}$`)

// parseYear accepts "1996" as well as spreadsheet renderings such as "1996.0".
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, errors.New("year is not an integer")
	}
	return int(f), nil
}

// parseNumber parses a float, tolerating thousands separators (space, no-break
// space, narrow no-break space) and a decimal comma. A lone comma followed by
// exactly three digits is rejected as ambiguous.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if ambiguousComma.MatchString(s) {
		return 0, errAmbiguous
	}
	if !strings.Contains(s, ".") {
		switch strings.Count(s, ",") {
		case 0:
		case 1:
			s = strings.Replace(s, ",", ".", 1)
		default:
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
