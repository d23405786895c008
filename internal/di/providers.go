package di

import (
	"fmt"
	"time"

	"AlphaRadar/internal/domain/repository"
	"AlphaRadar/internal/handler/api"
	mid "AlphaRadar/internal/middleware"
	internalrepo "AlphaRadar/internal/repository"
	"AlphaRadar/internal/service/ratelimit"
	"AlphaRadar/internal/service/signal"
	"AlphaRadar/internal/usecase"
	"AlphaRadar/pkg/cache"
	pkgch "AlphaRadar/pkg/clickhouse"
	"AlphaRadar/pkg/config"
	pkgkafka "AlphaRadar/pkg/kafka"
	applogger "AlphaRadar/pkg/logger"
	"AlphaRadar/pkg/metrics"
	"AlphaRadar/pkg/server"

	"github.com/benbjohnson/clock"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClock returns the wall clock.
func ProvideClock() clock.Clock {
	return clock.New()
}

// ProvideCache creates the cache backend used for history persistence and
// poll coordination. File storage still gets an in-memory cache for locks.
func ProvideCache(cfg *config.Config) (cache.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageRedis, config.StorageLayered:
		r, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			cache.WithRedisAuth(cfg.Storage.Redis.Password, cfg.Storage.Redis.DB),
			cache.WithRedisPool(cfg.Storage.Redis.PoolSize, 2, 30*time.Second),
			cache.WithRedisPrefix(cfg.Storage.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		if cfg.Storage.Type == config.StorageLayered {
			return cache.NewLayeredCache(r,
				cache.WithLayeredMemorySize(cfg.Storage.Memory.MaxSize),
			), nil
		}
		return r, nil
	default:
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Storage.Memory.MaxSize)), nil
	}
}

// ProvideCoordinator exposes the cache as the poll coordinator.
func ProvideCoordinator(store cache.Store) repository.Coordinator {
	return store
}

// ProvideBlobStore selects where the history blob lives.
func ProvideBlobStore(cfg *config.Config, store cache.Store) repository.BlobStore {
	if cfg.Storage.Type == config.StorageFile {
		return internalrepo.NewFileBlobStore(cfg.Storage.File.Path)
	}
	return internalrepo.NewCacheBlobStore(store, cfg.History.StorageKey)
}

// ProvideHistoryStore creates the scan history.
func ProvideHistoryStore(
	cfg *config.Config,
	blob repository.BlobStore,
	m repository.Metrics,
	l *applogger.Logger,
	clk clock.Clock,
) *usecase.HistoryStore {
	return usecase.NewHistoryStore(blob, m, l.With(applogger.String("component", "history")),
		usecase.WithHistoryClock(clk),
		usecase.WithRetention(cfg.History.Retention),
		usecase.WithMaxRecords(cfg.History.MaxRecords),
	)
}

// ProvideSignalSource creates the HTTP signal source client.
func ProvideSignalSource(cfg *config.Config, l *applogger.Logger) repository.SignalSource {
	return signal.New(cfg.Source.URL,
		signal.WithAPIKey(cfg.Source.APIKeyHeader, cfg.Source.APIKey),
		signal.WithTimeout(cfg.Source.Timeout),
		signal.WithRetry(cfg.Source.Attempts, time.Second),
		signal.WithLogger(l.With(applogger.String("component", "source"))),
	)
}

// ProvideClickHouseClient creates a ClickHouse client when the archive
// backend is clickhouse, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Archive.Backend != config.ArchiveClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCreateDatabase(true),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the archive backend is
// kafka, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Archive.Backend != config.ArchiveKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideScanArchiver creates the archiver for the configured backend, or
// nil when archiving is disabled.
func ProvideScanArchiver(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	m repository.Metrics,
) (*usecase.ScanArchiver, error) {
	switch cfg.Archive.Backend {
	case config.ArchiveKafka:
		pub := internalrepo.NewKafkaScanPublisher(producer, cfg.Kafka.Topic)
		return usecase.NewScanArchiver(pub, nil, m, usecase.BackendKafka), nil
	case config.ArchiveClickHouse:
		table, err := chClient.Table(cfg.ClickHouse.Table)
		if err != nil {
			return nil, fmt.Errorf("clickhouse archive: %w", err)
		}
		store := internalrepo.NewClickHouseScanStorage(chClient.DB(), table)
		return usecase.NewScanArchiver(nil, store, m, usecase.BackendClickHouse), nil
	default:
		return nil, nil
	}
}

// ProvideArchivePipeline puts a retry buffer in front of the archiver.
func ProvideArchivePipeline(
	cfg *config.Config,
	archiver *usecase.ScanArchiver,
	m repository.Metrics,
	l *applogger.Logger,
) *mid.ArchivePipeline {
	if archiver == nil {
		return nil
	}
	return mid.NewArchivePipeline(archiver, m,
		mid.WithBufferSize(cfg.Archive.BufferSize),
		mid.WithLogger(l.With(applogger.String("component", "archive"))),
	)
}

// ProvideFeedHub creates the live snapshot hub.
func ProvideFeedHub(l *applogger.Logger) *api.FeedHub {
	return api.NewFeedHub(nil, l.With(applogger.String("component", "feed")))
}

// ProvideScheduler creates the poll scheduler and connects it to the feed.
func ProvideScheduler(
	cfg *config.Config,
	source repository.SignalSource,
	history *usecase.HistoryStore,
	coord repository.Coordinator,
	m repository.Metrics,
	l *applogger.Logger,
	clk clock.Clock,
	pipeline *mid.ArchivePipeline,
	hub *api.FeedHub,
) *usecase.ScanScheduler {
	opts := []usecase.SchedulerOption{
		usecase.WithInterval(cfg.Scanner.Interval),
		usecase.WithFetchTimeout(cfg.Scanner.FetchTimeout),
		usecase.WithSchedulerClock(clk),
		usecase.WithListener(hub.Broadcast),
	}
	if pipeline != nil {
		opts = append(opts, usecase.WithArchiver(pipeline))
	}
	s := usecase.NewScanScheduler(source, history, coord, m,
		l.With(applogger.String("component", "scheduler")), opts...)
	hub.SetCurrent(s.Snapshot)
	return s
}

// ProvideStatsService creates the windowed report service.
func ProvideStatsService(history *usecase.HistoryStore, clk clock.Clock) *usecase.StatsService {
	return usecase.NewStatsService(history, clk)
}

// ProvideLimiter creates the manual scan rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Scanner.ManualBurst, cfg.Scanner.ManualRefill)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	scheduler *usecase.ScanScheduler,
	history *usecase.HistoryStore,
	stats *usecase.StatsService,
	limiter *ratelimit.Limiter,
	hub *api.FeedHub,
	l *applogger.Logger,
) *api.ScanHandler {
	return api.NewScanHandler(scheduler, history, stats, limiter, hub, l.With(applogger.String("component", "api")))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store cache.Store,
	history *usecase.HistoryStore,
	scheduler *usecase.ScanScheduler,
	archiver *usecase.ScanArchiver,
	pipeline *mid.ArchivePipeline,
	chClient *pkgch.Client,
	hub *api.FeedHub,
	handler *api.ScanHandler,
) *server.App {
	return server.New(cfg, l, server.Components{
		Cache:     store,
		History:   history,
		Scheduler: scheduler,
		Archiver:  archiver,
		Pipeline:  pipeline,
		CHClient:  chClient,
		Feed:      hub,
		Handler:   handler,
	})
}
