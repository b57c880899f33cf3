// Command genmock writes a deterministic synthetic history of population and
// total water consumption in the layout of the utility workbook: French
// headers, including the trailing space after "Populations".
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/historique_1996_2018.csv
//	go run ./cmd/genmock -out data/mock/historique_1996_2018.xlsx -sheet Feuil1
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
)

var header = []string{"Année", "Populations ", "Consommation en eau m3/an"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path (.csv or .xlsx)")
	from := flag.Int("from", 1996, "first year")
	to := flag.Int("to", 2018, "last year")
	sheet := flag.String("sheet", "", "sheet name for .xlsx output")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if *to < *from+1 {
		return fmt.Errorf("need at least two years, got %d..%d", *from, *to)
	}

	format, err := table.FormatFromName(*out)
	if err != nil {
		return err
	}

	raw := generate(*from, *to)

	// Sanity check: the fixture must be accepted by the pipeline.
	records, err := domain.Normalize(raw, domain.DefaultHeaderMapping())
	if err != nil {
		return fmt.Errorf("generated dataset is invalid: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := table.Write(f, raw, format, *sheet); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	first, last := records[0], records[len(records)-1]
	log.Printf("wrote %d years to %s", len(records), *out)
	log.Printf("%d: population %.0f, per-capita %.2f m3", first.Year, first.Population, first.PerCapitaConsumption)
	log.Printf("%d: population %.0f, per-capita %.2f m3", last.Year, last.Population, last.PerCapitaConsumption)
	return nil
}

// generate produces quadratic population growth and a per-capita consumption
// with a linear trend plus a small periodic component.
func generate(from, to int) domain.RawTable {
	t := domain.RawTable{Header: append([]string(nil), header...)}
	for y := from; y <= to; y++ {
		i := float64(y - 1996)
		pop := math.Round(9_500_000 + 230_000*i + 1_500*i*i)
		total := math.Round(pop * (28.5 + 0.35*i + 0.4*math.Sin(i)))
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(y),
			strconv.FormatFloat(pop, 'f', 0, 64),
			strconv.FormatFloat(total, 'f', 0, 64),
		})
	}
	return t
}
