package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset served by GET /api/v1/forecast. Empty disables the endpoint.
	DataFile  string
	DataSheet string

	PopulationCutoffYear int
	PerCapitaStartYear   int
	ForecastEndYear      int
	DisplayStartYear     int
	HeaderAliases        domain.HeaderMapping

	CacheSize      int
	CacheTTL       time.Duration
	UploadMaxBytes int64
	RateLimitRPS   float64

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	defaults := domain.DefaultParams()
	cutoff, err := parseYear("POPULATION_CUTOFF_YEAR", defaults.PopulationCutoffYear)
	if err != nil {
		return nil, err
	}
	pccStart, err := parseYear("PER_CAPITA_START_YEAR", defaults.PerCapitaStartYear)
	if err != nil {
		return nil, err
	}
	endYear, err := parseYear("FORECAST_END_YEAR", defaults.ForecastEndYear)
	if err != nil {
		return nil, err
	}
	displayStart, err := parseYear("DISPLAY_START_YEAR", defaults.DisplayStartYear)
	if err != nil {
		return nil, err
	}

	aliases, err := ParseHeaderAliases(os.Getenv("HEADER_ALIASES"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEADER_ALIASES: %w", err)
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("CACHE_SIZE", "32"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid CACHE_SIZE")
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("CACHE_TTL", "0s"))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid CACHE_TTL")
	}

	uploadMax, err := strconv.ParseInt(sharedcfg.EnvOrDefault("UPLOAD_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || uploadMax <= 0 {
		return nil, errors.New("invalid UPLOAD_MAX_BYTES")
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps < 0 {
		return nil, errors.New("invalid RATE_LIMIT_RPS")
	}

	kafkaEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false"))
	if err != nil {
		return nil, errors.New("invalid KAFKA_ENABLED")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataFile:  os.Getenv("DATA_FILE"),
		DataSheet: os.Getenv("DATA_SHEET"),

		PopulationCutoffYear: cutoff,
		PerCapitaStartYear:   pccStart,
		ForecastEndYear:      endYear,
		DisplayStartYear:     displayStart,
		HeaderAliases:        aliases,

		CacheSize:      cacheSize,
		CacheTTL:       cacheTTL,
		UploadMaxBytes: uploadMax,
		RateLimitRPS:   rps,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "water-forecast"),
	}

	if cfg.ForecastEndYear <= cfg.PopulationCutoffYear {
		return nil, errors.New("FORECAST_END_YEAR must be after POPULATION_CUTOFF_YEAR")
	}
	if cfg.PerCapitaStartYear > cfg.PopulationCutoffYear {
		return nil, errors.New("PER_CAPITA_START_YEAR must not be after POPULATION_CUTOFF_YEAR")
	}
	if cfg.DisplayStartYear > cfg.ForecastEndYear {
		return nil, errors.New("DISPLAY_START_YEAR must not be after FORECAST_END_YEAR")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// Params builds the forecast parameters, with the configured header aliases
// layered on top of the defaults.
func (c *Config) Params() domain.Params {
	p := domain.DefaultParams()
	p.Headers = p.Headers.Merge(c.HeaderAliases)
	p.PopulationCutoffYear = c.PopulationCutoffYear
	p.PerCapitaStartYear = c.PerCapitaStartYear
	p.ForecastEndYear = c.ForecastEndYear
	p.DisplayStartYear = c.DisplayStartYear
	return p
}

// ParseHeaderAliases parses "field=Variant|Variant;field=Variant" where field is
// a canonical column name (year, population, total_consumption).
func ParseHeaderAliases(s string) (domain.HeaderMapping, error) {
	out := domain.HeaderMapping{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, variants, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: missing '='", entry)
		}
		field, err := domain.ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		for _, v := range strings.Split(variants, "|") {
			if v = strings.TrimSpace(v); v != "" {
				out[v] = field
			}
		}
	}
	return out, nil
}

func parseYear(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return y, nil
}
