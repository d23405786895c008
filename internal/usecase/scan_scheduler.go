package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"AlphaRadar/internal/domain/models"
	drepo "AlphaRadar/internal/domain/repository"
	applogger "AlphaRadar/pkg/logger"
	"AlphaRadar/pkg/util"

	"github.com/benbjohnson/clock"
)

// Trigger tells whether a poll was requested by a user or by the ticker.
type Trigger int

const (
	TriggerAuto Trigger = iota
	TriggerManual
)

func (t Trigger) String() string {
	if t == TriggerManual {
		return "manual"
	}
	return "auto"
}

const (
	DefaultInterval     = 5 * time.Minute
	DefaultFetchTimeout = 90 * time.Second

	// DefaultFailureMessage is shown when a manual poll fails without a message.
	DefaultFailureMessage = "analysis engine busy, please refresh later"

	pollLockKey  = "scan:lock"
	scanCountKey = "scan:count"
	lockSlack    = 30 * time.Second
)

// ErrPollInProgress is returned by a manual poll that overlaps another poll.
var ErrPollInProgress = errors.New("scan already in progress")

// HistoryRecorder is the write side of HistoryStore.
type HistoryRecorder interface {
	Record(ctx context.Context, symbols []string, ts int64) bool
}

// Archiver receives every record added to the history.
type Archiver interface {
	Archive(ctx context.Context, rec models.ScanRecord) error
}

// SnapshotListener is called after every snapshot change.
type SnapshotListener func(models.Snapshot)

// SchedulerOption configures ScanScheduler.
type SchedulerOption func(*ScanScheduler)

// WithInterval sets the auto poll period.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *ScanScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFetchTimeout bounds a single source call.
func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *ScanScheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithSchedulerClock sets the clock driving the ticker and timestamps.
func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *ScanScheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithArchiver forwards recorded scans to a.
func WithArchiver(a Archiver) SchedulerOption {
	return func(s *ScanScheduler) {
		s.archiver = a
	}
}

// WithListener registers fn for snapshot updates.
func WithListener(fn SnapshotListener) SchedulerOption {
	return func(s *ScanScheduler) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// ScanScheduler polls the signal source once on Start and then every
// interval, keeps the latest snapshot and appends non-empty results to the
// history. Polls never overlap: the in-process flag covers one instance and
// the coordinator lock covers replicas sharing a cache backend.
type ScanScheduler struct {
	source       drepo.SignalSource
	history      HistoryRecorder
	coord        drepo.Coordinator
	metrics      drepo.Metrics
	log          *applogger.Logger
	clock        clock.Clock
	interval     time.Duration
	fetchTimeout time.Duration
	archiver     Archiver
	listeners    []SnapshotListener

	mu       sync.RWMutex
	snapshot models.Snapshot

	polling atomic.Bool
	scans   atomic.Int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanScheduler creates a scheduler. coord may be nil, in which case
// only the in-process guard is used.
func NewScanScheduler(
	source drepo.SignalSource,
	history HistoryRecorder,
	coord drepo.Coordinator,
	metrics drepo.Metrics,
	log *applogger.Logger,
	opts ...SchedulerOption,
) *ScanScheduler {
	s := &ScanScheduler{
		source:       source,
		history:      history,
		coord:        coord,
		metrics:      metrics,
		log:          log,
		clock:        clock.New(),
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		snapshot:     models.Snapshot{Data: []models.Asset{}, Sources: []models.Source{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start polls once immediately and then on every tick until Stop or ctx is done.
// Calling Start on a running scheduler does nothing.
func (s *ScanScheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	ticker := s.clock.Ticker(s.interval)

	s.wg.Add(1)
	go s.run(runCtx, ticker)

	s.log.Info("scan scheduler started", applogger.Duration("interval_ms", s.interval))
}

func (s *ScanScheduler) run(ctx context.Context, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	s.poll(ctx, TriggerManual)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, TriggerAuto)
		}
	}
}

// poll runs detached from ctx cancellation so a poll that has started is
// applied even when Stop is called meanwhile.
func (s *ScanScheduler) poll(ctx context.Context, trigger Trigger) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.PollOnce(context.WithoutCancel(ctx), trigger)
	if errors.Is(err, ErrPollInProgress) {
		s.log.Debug("scan skipped, previous poll still running", applogger.String("trigger", trigger.String()))
	}
}

// Stop halts future polls and waits for the run loop to exit.
func (s *ScanScheduler) Stop() {
	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("scan scheduler stopped")
}

// PollOnce performs one poll. It returns the resulting snapshot and the
// source error, if any. A poll that overlaps another returns the current
// snapshot and ErrPollInProgress without changing anything.
func (s *ScanScheduler) PollOnce(ctx context.Context, trigger Trigger) (models.Snapshot, error) {
	if !s.polling.CompareAndSwap(false, true) {
		return s.Snapshot(), ErrPollInProgress
	}
	defer s.polling.Store(false)

	release, ok := s.acquire(ctx)
	if !ok {
		s.metrics.RecordScan(trigger.String(), "skipped")
		return s.Snapshot(), ErrPollInProgress
	}
	defer release()

	started := s.clock.Now()
	if trigger == TriggerManual {
		s.update(func(snap *models.Snapshot) {
			snap.Loading = true
			snap.Error = ""
		})
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	result, err := s.source.Fetch(fctx)
	cancel()
	s.metrics.RecordLatency("source_fetch", s.clock.Since(started).Seconds())

	if err != nil {
		return s.fail(trigger, err)
	}
	return s.apply(ctx, trigger, started, result), nil
}

func (s *ScanScheduler) apply(ctx context.Context, trigger Trigger, started time.Time, result models.FetchResult) models.Snapshot {
	now := s.clock.Now()
	data := result.Data
	if data == nil {
		data = []models.Asset{}
	}
	sources := result.Sources
	if sources == nil {
		sources = []models.Source{}
	}

	snap := s.update(func(snap *models.Snapshot) {
		*snap = models.Snapshot{
			Data:          data,
			Sources:       sources,
			LastUpdated:   util.ClockTime(now),
			LastUpdatedAt: &now,
		}
	})

	symbols := result.Symbols()
	if len(symbols) > 0 {
		ts := started.UnixMilli()
		if s.history.Record(ctx, symbols, ts) && s.archiver != nil {
			rec := models.ScanRecord{Timestamp: ts, Symbols: symbols}
			if err := s.archiver.Archive(ctx, rec); err != nil {
				s.log.Warn("scan archive failed", applogger.Error(err), applogger.Int64("timestamp", ts))
			}
		}
	}

	s.countScan(ctx)
	s.metrics.RecordScan(trigger.String(), "success")
	s.log.Info("scan completed",
		applogger.String("trigger", trigger.String()),
		applogger.Int("assets", len(data)),
		applogger.Strings("symbols", symbols),
		applogger.Duration("duration_ms", s.clock.Since(started)),
	)
	return snap
}

func (s *ScanScheduler) fail(trigger Trigger, err error) (models.Snapshot, error) {
	s.metrics.RecordScan(trigger.String(), "failure")
	s.metrics.RecordError("source_fetch")

	if trigger != TriggerManual {
		s.log.Debug("auto scan failed", applogger.Error(err))
		return s.Snapshot(), err
	}

	msg := err.Error()
	if msg == "" {
		msg = DefaultFailureMessage
	}
	s.log.Warn("manual scan failed", applogger.Error(err))
	snap := s.update(func(snap *models.Snapshot) {
		snap.Loading = false
		snap.Error = msg
	})
	return snap, fmt.Errorf("scan: %w", err)
}

func (s *ScanScheduler) acquire(ctx context.Context) (func(), bool) {
	if s.coord == nil {
		return func() {}, true
	}
	token, ok, err := s.coord.TryLock(ctx, pollLockKey, s.fetchTimeout+lockSlack)
	if err != nil {
		// Coordinator down: the in-process guard still prevents local overlap.
		s.metrics.RecordError("poll_lock")
		s.log.Warn("poll lock unavailable, continuing unguarded", applogger.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.coord.Unlock(ctx, pollLockKey, token); err != nil {
			s.log.Warn("poll unlock failed", applogger.Error(err))
		}
	}, true
}

func (s *ScanScheduler) countScan(ctx context.Context) {
	if s.coord != nil {
		if n, err := s.coord.Increment(ctx, scanCountKey); err == nil {
			s.scans.Store(n)
			return
		}
		s.metrics.RecordError("scan_counter")
	}
	s.scans.Add(1)
}

// update applies fn to the snapshot, then notifies listeners with a copy.
func (s *ScanScheduler) update(fn func(*models.Snapshot)) models.Snapshot {
	s.mu.Lock()
	fn(&s.snapshot)
	snap := s.snapshot.Clone()
	s.mu.Unlock()

	for _, l := range s.listeners {
		l(snap.Clone())
	}
	return snap
}

// Snapshot returns a copy of the current state.
func (s *ScanScheduler) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Scanning reports whether a poll is in flight.
func (s *ScanScheduler) Scanning() bool {
	return s.polling.Load()
}

// ScansTotal returns the number of successful polls, shared across replicas
// when the coordinator is a shared cache.
func (s *ScanScheduler) ScansTotal() int64 {
	return s.scans.Load()
}
