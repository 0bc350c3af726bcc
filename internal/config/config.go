package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// MET Norway rejects requests without an identifying User-Agent.
const defaultUserAgent = "hazard-forecast-service/1.0 github.com/couchcryptid/hazard-forecast-service"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka request pipeline. Disabled unless KAFKA_ENABLED=true.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration

	// Upstream providers.
	ProviderTimeout    time.Duration
	ProviderRetryDelay time.Duration
	ProviderRPS        float64
	ProviderBurst      int
	ProviderTablePath  string
	OpenMeteoBaseURL   string
	MetNoBaseURL       string
	MetNoUserAgent     string

	// Forecast assembly.
	BatchConcurrency int
	MaxHorizonHours  int

	// Provider response cache.
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	providerTimeout, err := parsePositiveDuration("PROVIDER_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("PROVIDER_RETRY_DELAY", "250ms")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PROVIDER_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid PROVIDER_RPS")
	}
	burst, err := parsePositiveInt("PROVIDER_BURST", 5)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("BATCH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	maxHorizon, err := parsePositiveInt("MAX_HORIZON_HOURS", 168)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "forecast-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "forecast-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "hazard-forecast"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ProviderTimeout:    providerTimeout,
		ProviderRetryDelay: retryDelay,
		ProviderRPS:        rps,
		ProviderBurst:      burst,
		ProviderTablePath:  os.Getenv("PROVIDER_TABLE_PATH"),
		OpenMeteoBaseURL:   sharedcfg.EnvOrDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		MetNoBaseURL:       sharedcfg.EnvOrDefault("METNO_BASE_URL", "https://api.met.no/weatherapi/locationforecast/2.0/complete"),
		MetNoUserAgent:     sharedcfg.EnvOrDefault("METNO_USER_AGENT", defaultUserAgent),
		BatchConcurrency:   concurrency,
		MaxHorizonHours:    maxHorizon,
		CacheEnabled:       sharedcfg.EnvOrDefault("CACHE_ENABLED", "true") == "true",
		CacheSize:          cacheSize,
		CacheTTL:           cacheTTL,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
