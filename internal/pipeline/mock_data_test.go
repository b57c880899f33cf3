package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockDataset = "historique_1996_2018.csv"

func mockDatasetPath() string {
	return filepath.Join("..", "..", "data", "mock", mockDataset)
}

func mockSource() table.FileSource {
	return table.FileSource{Path: mockDatasetPath()}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_WithMockDataset(t *testing.T) {
	ldr := &recordingLoader{}
	p := pipeline.New(domain.DefaultParams(), []pipeline.Loader{ldr}, discardLogger(), newTestMetrics())

	result, err := p.Run(context.Background(), mockSource())
	require.NoError(t, err)

	require.Len(t, result.Historical, 23)
	require.Len(t, result.Forecasts, 12)
	require.Len(t, result.Series, 34)
	assert.Equal(t, 1997, result.Series[0].Year)
	assert.Equal(t, 2030, result.Series[33].Year)

	for _, f := range result.Forecasts {
		assert.Equal(t, domain.TotalConsumption(f.Population, f.PerCapitaConsumption), f.TotalConsumption, "year %d", f.Year)
	}

	loaded := ldr.results()
	require.Len(t, loaded, 1)
	assert.Equal(t, result.Series, loaded[0].Series)
}

func TestPipeline_MockDatasetMatchesDirectRun(t *testing.T) {
	raw, err := mockSource().Extract(context.Background())
	require.NoError(t, err)

	want, err := domain.Run(raw, domain.DefaultParams())
	require.NoError(t, err)

	p := pipeline.New(domain.DefaultParams(), nil, discardLogger(), newTestMetrics())
	got, err := p.Forecast(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
