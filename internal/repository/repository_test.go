package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"AlphaRadar/internal/domain/models"
	"AlphaRadar/pkg/cache"
	pkgkafka "AlphaRadar/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBlobStore(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheBlobStore(mc, "crypto_radar_history")

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, []byte(`[{"timestamp":1,"symbols":["A"]}]`)))
	blob, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"timestamp":1,"symbols":["A"]}]`, string(blob))
}

func TestCacheBlobStore_OverLayered(t *testing.T) {
	ctx := context.Background()
	remote := cache.NewMemoryCache()
	lc := cache.NewLayeredCache(remote)
	defer lc.Close()

	require.NoError(t, NewCacheBlobStore(lc, "k").Save(ctx, []byte("[]")))

	// a fresh layered cache over the same remote sees the blob
	fresh := cache.NewLayeredCache(remote)
	defer fresh.Close()
	blob, ok, err := NewCacheBlobStore(fresh, "k").Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(blob))
}

func TestFileBlobStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	store := NewFileBlobStore(path)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, []byte("[1]")))
	require.NoError(t, store.Save(ctx, []byte("[2]")))

	blob, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[2]", string(blob))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileBlobStore_ReadError(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be read as a file
	_, _, err := NewFileBlobStore(dir).Load(context.Background())
	assert.Error(t, err)
}

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, f.err
}

func (f *fakeExecer) PingContext(context.Context) error { return f.err }

func TestClickHouseScanStorage_Store(t *testing.T) {
	db := &fakeExecer{}
	s := NewClickHouseScanStorage(db, "scan_appearances")
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Store(context.Background(), models.ScanRecord{Timestamp: ts, Symbols: []string{"BTC", "", "ETH"}}))
	require.NoError(t, s.Store(context.Background(), models.ScanRecord{Timestamp: ts}))

	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS scan_appearances")

	insert := db.calls[1]
	assert.Equal(t, "INSERT INTO scan_appearances (ts, symbol, scan_ts) VALUES (?, ?, ?),(?, ?, ?)", insert.query)
	require.Len(t, insert.args, 6)
	assert.Equal(t, time.UnixMilli(ts).UTC(), insert.args[0])
	assert.Equal(t, "BTC", insert.args[1])
	assert.Equal(t, ts, insert.args[2])
	assert.Equal(t, "ETH", insert.args[4])
}

func TestClickHouseScanStorage_Errors(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection refused")}
	s := NewClickHouseScanStorage(db, "t")

	assert.ErrorContains(t, s.Init(context.Background()), "connection refused")
	assert.ErrorContains(t, s.Store(context.Background(), models.ScanRecord{Timestamp: 1, Symbols: []string{"A"}}), "insert scan 1")
	assert.Error(t, s.Health(context.Background()))
}

type memWriter struct {
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestKafkaScanPublisher(t *testing.T) {
	w := &memWriter{}
	producer, err := pkgkafka.NewProducer(pkgkafka.WithWriter(w))
	require.NoError(t, err)
	pub := NewKafkaScanPublisher(producer, "alpharadar.scans")

	require.NoError(t, pub.Publish(context.Background(), models.ScanRecord{Timestamp: 1700000000000, Symbols: []string{"BTC"}}))
	require.NoError(t, pub.Close())

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "alpharadar.scans", w.msgs[0].Topic)
	assert.Equal(t, "1700000000000", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"timestamp":1700000000000,"symbols":["BTC"]}`, string(w.msgs[0].Value))
	assert.False(t, strings.Contains(string(w.msgs[0].Value), "\n"))
}
