package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
)

// Error kinds that do not come from the forecast itself.
const (
	kindBadRequest  = "bad_request"
	kindUnreadable  = "unreadable_dataset"
	kindTooLarge    = "too_large"
	kindUnsupported = "unsupported_media_type"
	kindNoDataset   = "no_dataset"
	kindInternal    = "internal"
)

const (
	formatJSON        = "json"
	uploadFormField   = "file"
	attachmentCSVName = "forecast.csv"
	attachmentXLSName = "forecast.xlsx"
)

type modelResponse struct {
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	Level        float64 `json:"level"`
	Trend        float64 `json:"trend"`
	SSE          float64 `json:"sse"`
	Observations int     `json:"observations"`
}

type forecastResponse struct {
	Fingerprint string                   `json:"fingerprint"`
	Series      domain.UnifiedSeries     `json:"series"`
	Models      map[string]modelResponse `json:"models"`
	Warnings    []string                 `json:"warnings"`
}

func newModelResponse(m domain.HoltModel) modelResponse {
	return modelResponse{
		Alpha:        m.Alpha,
		Beta:         m.Beta,
		Level:        m.Level,
		Trend:        m.Trend,
		SSE:          m.SSE,
		Observations: m.Observations,
	}
}

// handleForecastSource forecasts the configured dataset.
func (s *Server) handleForecastSource(w http.ResponseWriter, r *http.Request) {
	format, ok := outputFormat(w, r)
	if !ok {
		return
	}
	if s.source == nil {
		writeError(w, http.StatusNotFound, kindNoDataset, "no dataset configured; POST one to this endpoint")
		return
	}

	raw, err := s.source.Extract(r.Context())
	if err != nil {
		s.logger.Error("read configured dataset failed", "error", err)
		writeError(w, http.StatusInternalServerError, kindInternal, "configured dataset could not be read")
		return
	}
	s.forecastAndRespond(w, r, raw, format)
}

// handleForecastUpload forecasts a dataset sent in the request body, either raw
// (CSV or XLSX by Content-Type or ?input=) or as the "file" field of a
// multipart form.
func (s *Server) handleForecastUpload(w http.ResponseWriter, r *http.Request) {
	format, ok := outputFormat(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	body, inFormat, status, err := s.readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, kindTooLarge,
				fmt.Sprintf("dataset exceeds %d bytes", s.maxUpload))
		case status == http.StatusUnsupportedMediaType:
			writeError(w, status, kindUnsupported, err.Error())
		default:
			writeError(w, status, kindBadRequest, err.Error())
		}
		return
	}

	raw, err := table.Read(bytes.NewReader(body), inFormat, r.URL.Query().Get("sheet"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, kindUnreadable, err.Error())
		return
	}
	s.forecastAndRespond(w, r, raw, format)
}

func (s *Server) readUpload(r *http.Request) ([]byte, table.Format, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, header, err := r.FormFile(uploadFormField)
		if err != nil {
			return nil, "", http.StatusBadRequest, fmt.Errorf("read form field %q: %w", uploadFormField, err)
		}
		defer f.Close()
		format, err := table.FormatFromName(header.Filename)
		if err != nil {
			return nil, "", http.StatusUnsupportedMediaType, err
		}
		body, err := io.ReadAll(f)
		if err != nil {
			return nil, "", http.StatusBadRequest, err
		}
		return body, format, 0, nil
	}

	format, err := inputFormat(r)
	if err != nil {
		return nil, "", http.StatusUnsupportedMediaType, err
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", http.StatusBadRequest, err
	}
	return body, format, 0, nil
}

func inputFormat(r *http.Request) (table.Format, error) {
	if in := r.URL.Query().Get("input"); in != "" {
		return table.ParseFormat(in)
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return table.FormatCSV, nil
	}
	return table.FormatFromContentType(ct)
}

// outputFormat reads ?format=json|csv|xlsx, defaulting to json.
func outputFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	f := r.URL.Query().Get("format")
	if f == "" || f == formatJSON {
		return formatJSON, true
	}
	parsed, err := table.ParseFormat(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
		return "", false
	}
	return string(parsed), true
}

func (s *Server) forecastAndRespond(w http.ResponseWriter, r *http.Request, raw domain.RawTable, format string) {
	result, err := s.forecaster.Forecast(r.Context(), raw)
	if err != nil {
		if domain.IsInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, domain.ErrorKind(err), err.Error())
			return
		}
		s.logger.Error("forecast request failed", "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorKind(err), err.Error())
		return
	}

	w.Header().Set("ETag", `"`+result.Fingerprint+`"`)
	switch format {
	case string(table.FormatCSV):
		w.Header().Set("Content-Type", table.FormatCSV.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+attachmentCSVName+`"`)
		if err := table.WriteCSV(w, result.Series); err != nil {
			s.logger.Warn("write csv response failed", "error", err)
		}
	case string(table.FormatXLSX):
		var buf bytes.Buffer
		if err := table.WriteXLSX(&buf, result.Series); err != nil {
			s.logger.Error("build workbook failed", "error", err)
			writeError(w, http.StatusInternalServerError, kindInternal, "could not build workbook")
			return
		}
		w.Header().Set("Content-Type", table.FormatXLSX.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+attachmentXLSName+`"`)
		w.Write(buf.Bytes()) //nolint:errcheck // client went away
	default:
		resp := forecastResponse{
			Fingerprint: result.Fingerprint,
			Series:      result.Series,
			Models: map[string]modelResponse{
				domain.SeriesPopulation: newModelResponse(result.PopulationModel),
				domain.SeriesPerCapita:  newModelResponse(result.PerCapitaModel),
			},
			Warnings: make([]string, 0, len(result.Warnings)),
		}
		for _, warn := range result.Warnings {
			resp.Warnings = append(resp.Warnings, warn.Error())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
