package di

import (
	"context"
	"fmt"
	"time"

	"MT5Pull/internal/delta"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/internal/handler/api"
	internalrepo "MT5Pull/internal/repository"
	"MT5Pull/internal/session"
	"MT5Pull/internal/terminal"
	"MT5Pull/internal/usecase"
	"MT5Pull/pkg/cache"
	pkgch "MT5Pull/pkg/clickhouse"
	"MT5Pull/pkg/config"
	xhttp "MT5Pull/pkg/http"
	pkgkafka "MT5Pull/pkg/kafka"
	applogger "MT5Pull/pkg/logger"
	"MT5Pull/pkg/metrics"
	"MT5Pull/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClock supplies the UTC wall clock.
func ProvideClock() repository.Clock {
	return repository.UTCClock{}
}

// ProvideSessionProvider creates the terminal bridge client.
func ProvideSessionProvider(cfg *config.Config) repository.SessionProvider {
	return terminal.New(
		cfg.Terminal.BridgeURL,
		cfg.Terminal.ConnectTimeout,
		cfg.Terminal.CallTimeout,
	)
}

// ProvideSessionManager creates the session manager around the provider.
func ProvideSessionManager(
	provider repository.SessionProvider,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *session.Manager {
	return session.NewManager(provider, m, logger, cfg.Terminal.BusyTimeout)
}

// ProvideEstimator creates the delta estimator.
func ProvideEstimator(
	sessions *session.Manager,
	clock repository.Clock,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *delta.Estimator {
	return delta.NewEstimator(sessions, clock, m, logger, cfg.Delta.ReferenceSymbol)
}

// ProvideRefresher creates the background delta refresher.
func ProvideRefresher(
	estimator *delta.Estimator,
	sessions *session.Manager,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *delta.Refresher {
	return delta.NewRefresher(estimator, sessions, m, logger, cfg.Delta.RefreshInterval)
}

// ProvideCache creates the response cache, or nil when disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

// clickhouseArchiver owns the connection pool alongside the archiver so
// Close tears both down.
type clickhouseArchiver struct {
	repository.Archiver
	client *pkgch.Client
}

func (a *clickhouseArchiver) Close() error {
	return a.client.Close()
}

// ProvideArchiver creates the configured archive backend, or nil for "none".
func ProvideArchiver(cfg *config.Config) (repository.Archiver, error) {
	switch cfg.Archive.Backend {
	case "kafka":
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(cfg.Archive.Kafka.Brokers),
			pkgkafka.WithCompression(cfg.Archive.Kafka.Compression),
			pkgkafka.WithRequiredAcks(cfg.Archive.Kafka.RequiredAcks),
			pkgkafka.WithBatchSize(cfg.Archive.Kafka.BatchSize),
			pkgkafka.WithBatchTimeout(cfg.Archive.Kafka.Linger),
			pkgkafka.WithTimeouts(cfg.Archive.Kafka.WriteTimeout, cfg.Archive.Kafka.ReadTimeout),
			pkgkafka.WithMaxAttempts(cfg.Archive.Kafka.MaxAttempts),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return internalrepo.NewKafkaArchiver(producer, cfg.Archive.Kafka.Topic), nil

	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.Archive.ClickHouse.Host),
			pkgch.WithPort(cfg.Archive.ClickHouse.Port),
			pkgch.WithDatabase(cfg.Archive.ClickHouse.Database),
			pkgch.WithCredentials(cfg.Archive.ClickHouse.User, cfg.Archive.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithTimeouts(cfg.Archive.ClickHouse.DialTimeout, cfg.Archive.ClickHouse.ReadTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}

		table := cfg.Archive.ClickHouse.Database + "." + cfg.Archive.ClickHouse.Table
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return &clickhouseArchiver{
			Archiver: internalrepo.NewClickHouseArchiver(client.DB(), table),
			client:   client,
		}, nil

	default:
		return nil, nil
	}
}

// ProvideCandleService creates the candle query service with optional cache
// and archive wiring.
func ProvideCandleService(
	sessions *session.Manager,
	estimator *delta.Estimator,
	m repository.Metrics,
	logger *applogger.Logger,
	cacheSvc cache.Service,
	archiver repository.Archiver,
	cfg *config.Config,
) *usecase.CandleQueryService {
	svc := usecase.NewCandleQueryService(sessions, estimator, m, logger)
	if cacheSvc != nil {
		svc.SetCache(cacheSvc, cfg.Cache.TTL)
	}
	if archiver != nil {
		svc.SetArchiver(archiver)
	}
	return svc
}

// ProvideStatusReporter creates the status reporter.
func ProvideStatusReporter(sessions *session.Manager, estimator *delta.Estimator) *usecase.StatusReporter {
	return usecase.NewStatusReporter(sessions, estimator)
}

// ProvideFrontend creates the in-process call facade.
func ProvideFrontend(
	candles *usecase.CandleQueryService,
	sessions *session.Manager,
	estimator *delta.Estimator,
	status *usecase.StatusReporter,
) *usecase.Frontend {
	return usecase.NewFrontend(candles, sessions, estimator, status)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	logger *applogger.Logger,
	candles *usecase.CandleQueryService,
	status *usecase.StatusReporter,
	sessions *session.Manager,
	estimator *delta.Estimator,
) xhttp.Handler {
	return api.NewCandlesEchoHandler(logger, candles, status, sessions, estimator)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	sessions *session.Manager,
	estimator *delta.Estimator,
	refresher *delta.Refresher,
	frontend *usecase.Frontend,
	cacheSvc cache.Service,
	archiver repository.Archiver,
) *server.App {
	return server.New(cfg, logger, handler, sessions, estimator, refresher, frontend, cacheSvc, archiver)
}
