package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/hazard-forecast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-forecast-service/internal/adapter/metno"
	"github.com/couchcryptid/hazard-forecast-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/hazard-forecast-service/internal/adapter/provider"
	"github.com/couchcryptid/hazard-forecast-service/internal/config"
	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/forecast"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
	"github.com/couchcryptid/hazard-forecast-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	table, err := loadProviderTable(cfg.ProviderTablePath)
	if err != nil {
		logger.Error("failed to load provider table", "error", err)
		os.Exit(1)
	}
	logger.Info("provider table loaded", "version", table.Version(), "providers", len(table.Descriptors()))

	upstream, err := buildProvider(cfg, table, logger, metrics)
	if err != nil {
		logger.Error("failed to wire providers", "error", err)
		os.Exit(1)
	}

	svc := forecast.NewService(table, upstream, forecast.Options{
		MaxHorizonHours:  cfg.MaxHorizonHours,
		BatchConcurrency: cfg.BatchConcurrency,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without the request pipeline the HTTP API is ready as soon as it listens.
	var ready httpReadiness
	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready.pipeline = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("kafka request pipeline enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
	} else {
		logger.Info("kafka request pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadProviderTable reads the descriptor table from path, or returns the
// embedded table when path is empty.
func loadProviderTable(path string) (*domain.ProviderTable, error) {
	if path == "" {
		return domain.DefaultProviderTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider table: %w", err)
	}
	return domain.ParseProviderTable(data)
}

// buildProvider assembles the upstream chain: each adapter is rate limited
// and retried, the registry dispatches on descriptor kind, and the optional
// cache sits in front of everything.
func buildProvider(cfg *config.Config, table *domain.ProviderTable, logger *slog.Logger, metrics *observability.Metrics) (domain.Provider, error) {
	clock := clockwork.NewRealClock()
	wrap := func(p domain.Provider) domain.Provider {
		limited := provider.NewRateLimited(p, cfg.ProviderRPS, cfg.ProviderBurst)
		return provider.NewRetrying(limited, cfg.ProviderTimeout, cfg.ProviderRetryDelay, clock, logger, metrics)
	}

	registry := provider.NewRegistry()
	registry.Register(openmeteo.Kind, wrap(openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.ProviderTimeout, logger, metrics)))
	registry.Register(metno.Kind, wrap(metno.NewClient(cfg.MetNoBaseURL, cfg.MetNoUserAgent, cfg.ProviderTimeout, logger, metrics)))
	if err := registry.Validate(table); err != nil {
		return nil, err
	}

	if !cfg.CacheEnabled {
		metrics.CacheEnabled.Set(0)
		logger.Info("provider cache disabled")
		return registry, nil
	}
	metrics.CacheEnabled.Set(1)
	logger.Info("provider cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return provider.NewCached(registry, cfg.CacheSize, cfg.CacheTTL, clock, metrics), nil
}

// httpReadiness is ready when no pipeline runs, otherwise it defers to it.
type httpReadiness struct {
	pipeline *pipeline.Pipeline
}

func (r httpReadiness) CheckReadiness(ctx context.Context) error {
	if r.pipeline == nil {
		return nil
	}
	return r.pipeline.CheckReadiness(ctx)
}
