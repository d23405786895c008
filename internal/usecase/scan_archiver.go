package usecase

import (
	"context"
	"fmt"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// ScanArchiver routes scan records to the configured archive backend.
type ScanArchiver struct {
	pub     drepo.ArchivePublisher
	store   drepo.ArchiveStorage
	metrics drepo.Metrics
	backend string
}

// NewScanArchiver creates an archiver. Only the dependency matching backend
// needs to be non-nil.
func NewScanArchiver(
	pub drepo.ArchivePublisher,
	store drepo.ArchiveStorage,
	metrics drepo.Metrics,
	backend string,
) *ScanArchiver {
	return &ScanArchiver{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Init prepares the backend (table creation for ClickHouse).
func (a *ScanArchiver) Init(ctx context.Context) error {
	if a.backend == BackendClickHouse && a.store != nil {
		if err := a.store.Init(ctx); err != nil {
			return fmt.Errorf("init archive storage: %w", err)
		}
	}
	return nil
}

// Process sends one record to the backend.
func (a *ScanArchiver) Process(ctx context.Context, rec models.ScanRecord) error {
	start := time.Now()
	var err error

	switch a.backend {
	case BackendKafka:
		if a.pub == nil {
			return fmt.Errorf("kafka publisher not configured")
		}
		err = a.pub.Publish(ctx, rec)
	case BackendClickHouse:
		if a.store == nil {
			return fmt.Errorf("clickhouse storage not configured")
		}
		err = a.store.Store(ctx, rec)
	default:
		err = fmt.Errorf("unknown backend: %s", a.backend)
	}

	if err != nil {
		a.metrics.RecordError("archive")
		return fmt.Errorf("archive scan %d: %w", rec.Timestamp, err)
	}

	a.metrics.RecordLatency("archive_"+a.backend, time.Since(start).Seconds())
	return nil
}

// Backend returns the configured backend name.
func (a *ScanArchiver) Backend() string {
	return a.backend
}

// Close closes underlying resources if available.
func (a *ScanArchiver) Close() {
	if a.pub != nil {
		_ = a.pub.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
