package domain

import (
	"math"
	"strconv"
	"testing"
)

// referenceHeader mirrors the utility workbook, including the trailing space
// after "Populations".
var referenceHeader = []string{"Année", "Populations ", " Consommation en eau m3/an"}

func referencePopulation(year int) float64 {
	i := float64(year - 1996)
	return math.Round(9_500_000 + 230_000*i + 1_500*i*i)
}

func referenceTotal(year int) float64 {
	i := float64(year - 1996)
	return math.Round(referencePopulation(year) * (28.5 + 0.35*i + 0.4*math.Sin(i)))
}

// referenceTable builds a contiguous annual table for [from, to].
func referenceTable(t *testing.T, from, to int) RawTable {
	t.Helper()
	table := RawTable{Header: append([]string(nil), referenceHeader...)}
	for y := from; y <= to; y++ {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(y),
			strconv.FormatFloat(referencePopulation(y), 'f', 0, 64),
			strconv.FormatFloat(referenceTotal(y), 'f', 0, 64),
		})
	}
	return table
}

func withoutYear(table RawTable, year int) RawTable {
	out := RawTable{Header: table.Header}
	for _, row := range table.Rows {
		if row[0] == strconv.Itoa(year) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
