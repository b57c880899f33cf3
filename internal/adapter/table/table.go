// Package table reads historical datasets from CSV or Excel workbooks and
// writes forecast series back out in the same formats.
package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is a supported tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Content types served and accepted for each format.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SeriesSheet is the sheet name used for exported series.
const SeriesSheet = "forecast"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFormat accepts "csv" or "xlsx" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX, "xls", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatFromName infers the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(name))
	}
}

// FormatFromContentType infers the format from a MIME type.
func FormatFromContentType(ct string) (Format, error) {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", fmt.Errorf("parse content type: %w", err)
	}
	switch mediaType {
	case ContentTypeCSV, "text/plain", "application/csv":
		return FormatCSV, nil
	case ContentTypeXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV + "; charset=utf-8"
}

// Read parses a whole dataset. sheet selects the workbook sheet for XLSX input;
// empty means the first sheet.
func Read(r io.Reader, format Format, sheet string) (domain.RawTable, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatXLSX:
		return readXLSX(r, sheet)
	default:
		return domain.RawTable{}, fmt.Errorf("unsupported format %q", format)
	}
}

// ReadFile opens, fully reads and closes the dataset at path.
func ReadFile(path, sheet string) (domain.RawTable, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return domain.RawTable{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := Read(f, format, sheet)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// FileSource reads the dataset from a fixed path on every extraction.
type FileSource struct {
	Path  string
	Sheet string
}

// Extract implements pipeline.Extractor.
func (s FileSource) Extract(_ context.Context) (domain.RawTable, error) {
	return ReadFile(s.Path, s.Sheet)
}

func readCSV(r io.Reader) (domain.RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("parse csv: %w", err)
	}
	return toTable(records)
}

// detectDelimiter picks ';' when the header line has more semicolons than
// commas, which is how European spreadsheet exports come out.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader, sheet string) (domain.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.RawTable{}, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return toTable(rows)
}

func toTable(records [][]string) (domain.RawTable, error) {
	if len(records) == 0 {
		return domain.RawTable{}, errors.New("dataset is empty")
	}
	return domain.RawTable{Header: records[0], Rows: records[1:]}, nil
}

// SeriesTable renders a series with the canonical header. Per-capita
// consumption is printed with 2 decimals.
func SeriesTable(series domain.UnifiedSeries) domain.RawTable {
	t := domain.RawTable{Header: append([]string(nil), domain.SeriesColumns...)}
	t.Rows = make([][]string, len(series))
	for i, rec := range series {
		t.Rows[i] = []string{
			strconv.Itoa(rec.Year),
			strconv.FormatInt(rec.Population, 10),
			strconv.FormatFloat(domain.RoundIntensity(rec.PerCapitaConsumption), 'f', 2, 64),
			strconv.FormatInt(rec.TotalConsumption, 10),
		}
	}
	return t
}

// WriteSeries writes a series in the given format.
func WriteSeries(w io.Writer, series domain.UnifiedSeries, format Format) error {
	sheet := ""
	if format == FormatXLSX {
		sheet = SeriesSheet
	}
	return Write(w, SeriesTable(series), format, sheet)
}

// WriteCSV writes a series as CSV.
func WriteCSV(w io.Writer, series domain.UnifiedSeries) error {
	return WriteSeries(w, series, FormatCSV)
}

// WriteXLSX writes a series as a single-sheet workbook.
func WriteXLSX(w io.Writer, series domain.UnifiedSeries) error {
	return WriteSeries(w, series, FormatXLSX)
}

// Write writes a raw table. For XLSX, numeric cells are stored as numbers and
// sheet names the single sheet (default "Sheet1").
func Write(w io.Writer, t domain.RawTable, format Format, sheet string) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t, sheet)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeCSV(w io.Writer, t domain.RawTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, t domain.RawTable, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	if err := setRow(f, sheet, 1, t.Header, false); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := setRow(f, sheet, i+2, row, true); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, cells []string, numeric bool) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
		if !numeric {
			continue
		}
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			values[i] = v
		}
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
