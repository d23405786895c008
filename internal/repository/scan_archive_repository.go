package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"AlphaRadar/internal/domain/models"
	"AlphaRadar/internal/domain/repository"
	pkgkafka "AlphaRadar/pkg/kafka"
)

// SQLExecer is the part of *sql.DB the archive storage needs.
type SQLExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// ClickHouseScanStorage implements ArchiveStorage for ClickHouse. Each
// record becomes one row per symbol.
type ClickHouseScanStorage struct {
	db    SQLExecer
	table string
}

// NewClickHouseScanStorage creates ClickHouse storage.
func NewClickHouseScanStorage(db SQLExecer, table string) repository.ArchiveStorage {
	return &ClickHouseScanStorage{db: db, table: table}
}

func (s *ClickHouseScanStorage) Init(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts DateTime64(3, 'UTC'),
    symbol LowCardinality(String),
    scan_ts Int64
) ENGINE = MergeTree
ORDER BY (symbol, ts)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseScanStorage) Store(ctx context.Context, rec models.ScanRecord) error {
	if len(rec.Symbols) == 0 {
		return nil
	}
	ts := time.UnixMilli(rec.Timestamp).UTC()

	values := make([]string, 0, len(rec.Symbols))
	args := make([]interface{}, 0, len(rec.Symbols)*3)
	for _, sym := range rec.Symbols {
		if sym == "" {
			continue
		}
		values = append(values, "(?, ?, ?)")
		args = append(args, ts, sym, rec.Timestamp)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, scan_ts) VALUES %s", s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert scan %d: %w", rec.Timestamp, err)
	}
	return nil
}

func (s *ClickHouseScanStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseScanStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaScanPublisher implements ArchivePublisher for Kafka.
type KafkaScanPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaScanPublisher creates Kafka publisher.
func NewKafkaScanPublisher(producer *pkgkafka.Producer, topic string) repository.ArchivePublisher {
	return &KafkaScanPublisher{producer: producer, topic: topic}
}

// Publish sends rec as JSON keyed by its timestamp.
func (p *KafkaScanPublisher) Publish(ctx context.Context, rec models.ScanRecord) error {
	key := []byte(strconv.FormatInt(rec.Timestamp, 10))
	return p.producer.Publish(ctx, p.topic, key, rec)
}

func (p *KafkaScanPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
