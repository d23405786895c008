package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlphaRadar/internal/domain/models"
	"AlphaRadar/pkg/cache"
	applogger "AlphaRadar/pkg/logger"
	"AlphaRadar/pkg/util"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	clk     *clock.Mock
	source  *fakeSource
	history *HistoryStore
	store   *memBlobStore
	coord   *cache.MemoryCache
	metrics *fakeMetrics
	sched   *ScanScheduler

	mu    sync.Mutex
	snaps []models.Snapshot
}

func newSchedulerFixture(t *testing.T, source *fakeSource, opts ...SchedulerOption) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		clk:     newMockClock(),
		source:  source,
		store:   &memBlobStore{},
		coord:   cache.NewMemoryCache(),
		metrics: newFakeMetrics(),
	}
	t.Cleanup(func() { _ = f.coord.Close() })

	f.history = NewHistoryStore(f.store, f.metrics, applogger.Nop(), WithHistoryClock(f.clk))
	opts = append([]SchedulerOption{
		WithSchedulerClock(f.clk),
		WithInterval(time.Minute),
		WithListener(func(s models.Snapshot) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.snaps = append(f.snaps, s)
		}),
	}, opts...)
	f.sched = NewScanScheduler(source, f.history, f.coord, f.metrics, applogger.Nop(), opts...)
	return f
}

func (f *schedulerFixture) notifications() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func TestScanScheduler_ManualPollSuccess(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{results: []models.FetchResult{assets("BTC", "ETH")}})
	started := f.clk.Now()

	snap, err := f.sched.PollOnce(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Data, 2)
	assert.Equal(t, util.ClockTime(started), snap.LastUpdated)
	require.NotNil(t, snap.LastUpdatedAt)
	assert.Equal(t, snap, f.sched.Snapshot())

	all := f.history.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, started.UnixMilli(), all[0].Timestamp)
	assert.Equal(t, []string{"BTC", "ETH"}, all[0].Symbols)

	assert.EqualValues(t, 1, f.sched.ScansTotal())
	assert.Equal(t, 1, f.metrics.scanCount("manual/success"))
	// loading=true then the result
	assert.Equal(t, 2, f.notifications())
}

func TestScanScheduler_EmptyResultReplacesSnapshotWithoutRecording(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{results: []models.FetchResult{assets("BTC"), {}}})
	ctx := context.Background()

	_, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)
	snap, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)

	assert.NotNil(t, snap.Data)
	assert.Empty(t, snap.Data)
	assert.Equal(t, 1, f.history.Len())
	assert.EqualValues(t, 2, f.sched.ScansTotal())
}

// Manual failure shows the message; a following failed auto poll leaves
// both the error and the last good data untouched.
func TestScanScheduler_FailureHandling(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{
		results: []models.FetchResult{assets("BTC")},
		errs:    []error{nil, errors.New("X"), errors.New("Y")},
	})
	ctx := context.Background()

	good, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)

	failed, err := f.sched.PollOnce(ctx, TriggerManual)
	require.Error(t, err)
	assert.Equal(t, "X", failed.Error)
	assert.False(t, failed.Loading)
	assert.Equal(t, good.Data, failed.Data)

	after, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.Error(t, err)
	assert.Equal(t, failed, after)
	assert.Equal(t, failed, f.sched.Snapshot())
	assert.Equal(t, 1, f.history.Len())
	assert.Equal(t, 1, f.metrics.scanCount("auto/failure"))
}

func TestScanScheduler_ManualFailureDefaultMessage(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{errs: []error{errors.New("")}})

	snap, err := f.sched.PollOnce(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, DefaultFailureMessage, snap.Error)
}

func TestScanScheduler_SuccessClearsError(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{
		results: []models.FetchResult{assets("BTC")},
		errs:    []error{errors.New("X")},
	})
	ctx := context.Background()

	_, _ = f.sched.PollOnce(ctx, TriggerManual)
	snap, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)
	assert.Empty(t, snap.Error)
}

func TestScanScheduler_ManualOverlapRejected(t *testing.T) {
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}, block: make(chan struct{})}
	f := newSchedulerFixture(t, src)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.sched.PollOnce(ctx, TriggerManual)
		done <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.sched.Scanning())

	inFlight := f.sched.Snapshot()
	assert.True(t, inFlight.Loading)

	snap, err := f.sched.PollOnce(ctx, TriggerManual)
	assert.ErrorIs(t, err, ErrPollInProgress)
	assert.Equal(t, inFlight, snap)
	assert.Equal(t, 1, src.callCount())

	close(src.block)
	require.NoError(t, <-done)
	assert.False(t, f.sched.Scanning())
	assert.Equal(t, 1, f.history.Len())
}

func TestScanScheduler_SharedLockHeldElsewhere(t *testing.T) {
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}}
	f := newSchedulerFixture(t, src)
	ctx := context.Background()

	token, ok, err := f.coord.TryLock(ctx, pollLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.sched.PollOnce(ctx, TriggerAuto)
	assert.ErrorIs(t, err, ErrPollInProgress)
	assert.Zero(t, src.callCount())

	require.NoError(t, f.coord.Unlock(ctx, pollLockKey, token))
	_, err = f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)

	// lock is released after each poll
	_, ok, err = f.coord.TryLock(ctx, pollLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

type recordingArchiver struct {
	mu   sync.Mutex
	recs []models.ScanRecord
	err  error
}

func (a *recordingArchiver) Archive(_ context.Context, rec models.ScanRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return a.err
}

func TestScanScheduler_ArchivesRecordedScans(t *testing.T) {
	arch := &recordingArchiver{err: errors.New("broker down")}
	f := newSchedulerFixture(t, &fakeSource{results: []models.FetchResult{assets("BTC"), {}}}, WithArchiver(arch))
	ctx := context.Background()

	_, err := f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err, "archive failures do not fail the poll")
	_, err = f.sched.PollOnce(ctx, TriggerAuto)
	require.NoError(t, err)

	require.Len(t, arch.recs, 1)
	assert.Equal(t, []string{"BTC"}, arch.recs[0].Symbols)
	assert.Equal(t, f.history.GetAll()[0], arch.recs[0])
}

// rejectingHistory keeps nothing, as when a record is already past retention.
type rejectingHistory struct{}

func (rejectingHistory) Record(context.Context, []string, int64) bool { return false }

func TestScanScheduler_DoesNotArchiveDroppedRecords(t *testing.T) {
	arch := &recordingArchiver{}
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}}
	s := NewScanScheduler(src, rejectingHistory{}, nil, newFakeMetrics(), applogger.Nop(), WithArchiver(arch))

	snap, err := s.PollOnce(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Len(t, snap.Data, 1)
	assert.Empty(t, arch.recs)
}

func TestScanScheduler_StartPollsImmediatelyThenOnInterval(t *testing.T) {
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}}
	f := newSchedulerFixture(t, src)

	f.sched.Start(context.Background())
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	f.clk.Add(time.Minute)
	require.Eventually(t, func() bool { return src.callCount() == 2 }, time.Second, time.Millisecond)

	f.clk.Add(time.Minute)
	require.Eventually(t, func() bool { return src.callCount() == 3 }, time.Second, time.Millisecond)

	f.sched.Stop()
	f.clk.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, src.callCount())
	assert.False(t, f.sched.Scanning())
}

func TestScanScheduler_KeepsPollingAfterFailures(t *testing.T) {
	src := &fakeSource{
		results: []models.FetchResult{assets("BTC")},
		errs:    []error{errors.New("down"), errors.New("down")},
	}
	f := newSchedulerFixture(t, src)

	f.sched.Start(context.Background())
	defer f.sched.Stop()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	f.clk.Add(time.Minute)
	require.Eventually(t, func() bool { return src.callCount() == 2 }, time.Second, time.Millisecond)
	f.clk.Add(time.Minute)
	require.Eventually(t, func() bool { return f.history.Len() == 1 }, time.Second, time.Millisecond)
}

func TestScanScheduler_StopCompletesInFlightPoll(t *testing.T) {
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}, block: make(chan struct{})}
	f := newSchedulerFixture(t, src)

	f.sched.Start(context.Background())
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		f.sched.Stop()
		close(stopped)
	}()
	close(src.block)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 1, f.history.Len())
}

func TestScanScheduler_StartTwiceAndStopIdempotent(t *testing.T) {
	src := &fakeSource{results: []models.FetchResult{assets("BTC")}}
	f := newSchedulerFixture(t, src)

	f.sched.Start(context.Background())
	f.sched.Start(context.Background())
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	f.sched.Stop()
	f.sched.Stop()
	assert.Equal(t, 1, src.callCount())
}

func TestTrigger_String(t *testing.T) {
	assert.Equal(t, "manual", TriggerManual.String())
	assert.Equal(t, "auto", TriggerAuto.String())
}
