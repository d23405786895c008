package repository

import (
	"context"
	"time"

	"AlphaRadar/internal/domain/models"
)

// SignalSource fetches the current alpha list from the upstream provider.
type SignalSource interface {
	Fetch(ctx context.Context) (models.FetchResult, error)
}

// BlobStore persists one opaque blob under a fixed key. ok is false when
// nothing has been stored yet.
type BlobStore interface {
	Load(ctx context.Context) (blob []byte, ok bool, err error)
	Save(ctx context.Context, blob []byte) error
}

// Coordinator guards polls against overlap and keeps durable counters.
// Every cache backend in pkg/cache satisfies it.
type Coordinator interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
	Increment(ctx context.Context, key string) (int64, error)
}

// ArchivePublisher ships scan records to a message broker.
type ArchivePublisher interface {
	Publish(ctx context.Context, rec models.ScanRecord) error
	Close() error
}

// ArchiveStorage writes scan records to long-term analytical storage.
type ArchiveStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, rec models.ScanRecord) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordScan(trigger, result string)
	RecordError(kind string)
	RecordHistorySize(n int)
	RecordAppearances(symbols []string)
	RecordLatency(op string, seconds float64)
}
