package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"
	applogger "AlphaRadar/pkg/logger"

	"github.com/benbjohnson/clock"
)

const (
	DefaultRetention  = 7 * 24 * time.Hour
	DefaultMaxRecords = 5000
)

// HistoryOption configures HistoryStore.
type HistoryOption func(*HistoryStore)

// WithHistoryClock sets the clock used for retention.
func WithHistoryClock(c clock.Clock) HistoryOption {
	return func(h *HistoryStore) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithRetention sets how long records are kept, at most DefaultRetention.
func WithRetention(d time.Duration) HistoryOption {
	return func(h *HistoryStore) {
		if d > 0 && d <= DefaultRetention {
			h.retention = d
		}
	}
}

// WithMaxRecords caps the number of retained records, at most DefaultMaxRecords.
func WithMaxRecords(n int) HistoryOption {
	return func(h *HistoryStore) {
		if n > 0 && n <= DefaultMaxRecords {
			h.maxRecords = n
		}
	}
}

// HistoryStore is the newest-first scan log. Every mutation applies
// retention and the size cap, then persists the whole log. Persistence
// failures never fail the caller; they are logged, counted and exposed
// through Status.
type HistoryStore struct {
	store      drepo.BlobStore
	metrics    drepo.Metrics
	log        *applogger.Logger
	clock      clock.Clock
	retention  time.Duration
	maxRecords int

	mu      sync.RWMutex
	records []models.ScanRecord
	status  models.PersistStatus
}

// NewHistoryStore creates an empty store. Call Initialize to load persisted history.
func NewHistoryStore(store drepo.BlobStore, metrics drepo.Metrics, log *applogger.Logger, opts ...HistoryOption) *HistoryStore {
	h := &HistoryStore{
		store:      store,
		metrics:    metrics,
		log:        log,
		clock:      clock.New(),
		retention:  DefaultRetention,
		maxRecords: DefaultMaxRecords,
		records:    []models.ScanRecord{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Initialize loads the persisted log, drops stale and excess records and
// writes the cleaned log back. A missing or malformed blob yields an empty log.
func (h *HistoryStore) Initialize(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records := h.load(ctx)
	h.records = h.trim(records, h.clock.Now())
	h.persistLocked(ctx)

	h.metrics.RecordHistorySize(len(h.records))
	h.log.Info("scan history loaded",
		applogger.Int("records", len(h.records)),
		applogger.Int("loaded", len(records)),
	)
}

func (h *HistoryStore) load(ctx context.Context) []models.ScanRecord {
	blob, ok, err := h.store.Load(ctx)
	if err != nil {
		h.status.LoadFailures++
		h.status.LastError = err.Error()
		h.metrics.RecordError("persist_load")
		h.log.Warn("scan history load failed, starting empty", applogger.Error(err))
		return nil
	}
	if !ok || len(blob) == 0 {
		return nil
	}

	var records []models.ScanRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		h.status.LoadFailures++
		h.status.LastError = err.Error()
		h.metrics.RecordError("persist_load")
		h.log.Warn("scan history blob malformed, discarding", applogger.Error(err))
		return nil
	}
	return records
}

// Record prepends a scan of symbols taken at ts (epoch millis). It reports
// whether the record is in the log afterwards: an empty symbol list is
// ignored and a record already past retention is dropped by the trim.
func (h *HistoryStore) Record(ctx context.Context, symbols []string, ts int64) bool {
	if len(symbols) == 0 {
		return false
	}

	rec := models.ScanRecord{
		Timestamp: ts,
		Symbols:   append([]string(nil), symbols...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]models.ScanRecord, 0, len(h.records)+1)
	next = append(next, rec)
	next = append(next, h.records...)
	h.records = h.trim(next, h.clock.Now())
	kept := len(h.records) > 0 && h.records[0].Timestamp == ts
	h.persistLocked(ctx)

	h.metrics.RecordHistorySize(len(h.records))
	if !kept {
		h.log.Debug("scan record already past retention, not kept", applogger.Int64("timestamp", ts))
		return false
	}
	h.metrics.RecordAppearances(rec.Symbols)
	return true
}

// GetAll returns a copy of the newest-first log.
func (h *HistoryStore) GetAll() []models.ScanRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.ScanRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of retained records.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Status reports the outcome of persistence so far.
func (h *HistoryStore) Status() models.PersistStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// trim drops records at or before now-retention and cuts the tail beyond maxRecords.
// records must be newest first.
func (h *HistoryStore) trim(records []models.ScanRecord, now time.Time) []models.ScanRecord {
	cutoff := now.Add(-h.retention).UnixMilli()
	out := make([]models.ScanRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp > cutoff {
			out = append(out, r)
		}
	}
	if len(out) > h.maxRecords {
		out = out[:h.maxRecords]
	}
	return out
}

func (h *HistoryStore) persistLocked(ctx context.Context) {
	start := h.clock.Now()
	blob, err := json.Marshal(h.records)
	if err == nil {
		err = h.store.Save(ctx, blob)
	}
	if err != nil {
		h.status.SaveFailures++
		h.status.LastError = err.Error()
		h.metrics.RecordError("persist_save")
		h.log.Error("scan history save failed", applogger.Error(err), applogger.Int("records", len(h.records)))
		return
	}
	h.status.LastSaveAt = h.clock.Now().UnixMilli()
	h.metrics.RecordLatency("history_persist", h.clock.Since(start).Seconds())
}
