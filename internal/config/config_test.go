package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.DataFile)
	assert.Empty(t, cfg.DataSheet)
	assert.Equal(t, 2018, cfg.PopulationCutoffYear)
	assert.Equal(t, 1996, cfg.PerCapitaStartYear)
	assert.Equal(t, 2030, cfg.ForecastEndYear)
	assert.Equal(t, 1997, cfg.DisplayStartYear)
	assert.Empty(t, cfg.HeaderAliases)
	assert.Equal(t, 32, cfg.CacheSize)
	assert.Zero(t, cfg.CacheTTL)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxBytes)
	assert.InDelta(t, 5.0, cfg.RateLimitRPS, 0)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "water-forecast", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_FILE", "/data/historique.xlsx")
	t.Setenv("DATA_SHEET", "Feuil1")
	t.Setenv("POPULATION_CUTOFF_YEAR", "2020")
	t.Setenv("PER_CAPITA_START_YEAR", "2000")
	t.Setenv("FORECAST_END_YEAR", "2040")
	t.Setenv("DISPLAY_START_YEAR", "2005")
	t.Setenv("HEADER_ALIASES", "population=Habitants|Pop; total_consumption=Volume")
	t.Setenv("CACHE_SIZE", "8")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/data/historique.xlsx", cfg.DataFile)
	assert.Equal(t, "Feuil1", cfg.DataSheet)
	assert.Equal(t, 2020, cfg.PopulationCutoffYear)
	assert.Equal(t, 2000, cfg.PerCapitaStartYear)
	assert.Equal(t, 2040, cfg.ForecastEndYear)
	assert.Equal(t, 2005, cfg.DisplayStartYear)
	assert.Equal(t, domain.HeaderMapping{
		"Habitants": domain.FieldPopulation,
		"Pop":       domain.FieldPopulation,
		"Volume":    domain.FieldTotalConsumption,
	}, cfg.HeaderAliases)
	assert.Equal(t, 8, cfg.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(1024), cfg.UploadMaxBytes)
	assert.InDelta(t, 0.5, cfg.RateLimitRPS, 0)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"SHUTDOWN_TIMEOUT":       "not-a-duration",
		"POPULATION_CUTOFF_YEAR": "twenty",
		"PER_CAPITA_START_YEAR":  "-5",
		"FORECAST_END_YEAR":      "2030.5",
		"DISPLAY_START_YEAR":     "x",
		"HEADER_ALIASES":         "people=Habitants",
		"CACHE_SIZE":             "-1",
		"CACHE_TTL":              "soon",
		"UPLOAD_MAX_BYTES":       "0",
		"RATE_LIMIT_RPS":         "fast",
		"KAFKA_ENABLED":          "maybe",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_EndYearNotAfterCutoff(t *testing.T) {
	t.Setenv("FORECAST_END_YEAR", "2018")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORECAST_END_YEAR")
}

func TestLoad_PerCapitaStartAfterCutoff(t *testing.T) {
	t.Setenv("PER_CAPITA_START_YEAR", "2019")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PER_CAPITA_START_YEAR")
}

func TestLoad_DisplayStartAfterEnd(t *testing.T) {
	t.Setenv("DISPLAY_START_YEAR", "2031")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISPLAY_START_YEAR")
}

func TestConfig_Params(t *testing.T) {
	t.Setenv("POPULATION_CUTOFF_YEAR", "2015")
	t.Setenv("FORECAST_END_YEAR", "2025")
	t.Setenv("HEADER_ALIASES", "year=An")

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Params()
	require.NoError(t, p.Validate())
	assert.Equal(t, 2015, p.PopulationCutoffYear)
	assert.Equal(t, 2025, p.ForecastEndYear)
	assert.Equal(t, domain.FieldYear, p.Headers["An"])
	assert.Equal(t, domain.FieldYear, p.Headers["Année"], "defaults are kept")
}

func TestParseHeaderAliases(t *testing.T) {
	got, err := ParseHeaderAliases("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseHeaderAliases(" year = Jahr | Ano ;;")
	require.NoError(t, err)
	assert.Equal(t, domain.HeaderMapping{"Jahr": domain.FieldYear, "Ano": domain.FieldYear}, got)

	_, err = ParseHeaderAliases("year")
	assert.ErrorContains(t, err, "missing '='")

	_, err = ParseHeaderAliases("per_capita_consumption=CUG")
	assert.ErrorContains(t, err, "unknown field")
}
