package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
source:
  url: http://signals.local/alpha
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Scanner.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.History.Retention)
	assert.Equal(t, 5000, cfg.History.MaxRecords)
	assert.Equal(t, "crypto_radar_history", cfg.History.StorageKey)
	assert.Equal(t, StorageFile, cfg.Storage.Type)
	assert.Equal(t, ArchiveNone, cfg.Archive.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestParseReadsDurations(t *testing.T) {
	cfg, err := Parse([]byte(`
scanner:
  interval: 30s
  fetch_timeout: 5s
history:
  retention: 48h
source:
  url: http://signals.local/alpha
storage:
  type: memory
`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Scanner.Interval)
	assert.Equal(t, 5*time.Second, cfg.Scanner.FetchTimeout)
	assert.Equal(t, 48*time.Hour, cfg.History.Retention)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing source", "storage:\n  type: memory\n"},
		{"bad storage", "source:\n  url: http://x\nstorage:\n  type: s3\n"},
		{"kafka without brokers", "source:\n  url: http://x\narchive:\n  backend: kafka\n"},
		{"clickhouse without host", "source:\n  url: http://x\narchive:\n  backend: clickhouse\n"},
		{"unknown archive", "source:\n  url: http://x\narchive:\n  backend: s3\n"},
		{"interval too short", "source:\n  url: http://x\nscanner:\n  interval: 10ms\n"},
		{"retention above a week", "source:\n  url: http://x\nhistory:\n  retention: 720h\n"},
		{"max records above cap", "source:\n  url: http://x\nhistory:\n  max_records: 100000\n"},
		{"negative retention", "source:\n  url: http://x\nhistory:\n  retention: -1h\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidate_HistoryBoundsInclusive(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  url: http://x\nhistory:\n  retention: 168h\n  max_records: 5000\n"))
	require.NoError(t, err)
	assert.Equal(t, MaxRetention, cfg.History.Retention)
	assert.Equal(t, MaxHistoryRecords, cfg.History.MaxRecords)

	cfg, err = Parse([]byte("source:\n  url: http://x\nhistory:\n  retention: 1h\n  max_records: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.History.Retention)
	assert.Equal(t, 10, cfg.History.MaxRecords)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  url: http://x\n"))
	require.NoError(t, err)

	env := map[string]string{
		"SOURCE_URL":      "http://override",
		"STORAGE_TYPE":    "redis",
		"REDIS_ADDR":      "cache.local:6380",
		"ARCHIVE_BACKEND": "kafka",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"HTTP_PORT":       "9000",
		"CORS_ORIGINS":    "https://radar.example,https://ops.example",
	}
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://override", cfg.Source.URL)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "cache.local", cfg.Storage.Redis.Host)
	assert.Equal(t, 6380, cfg.Storage.Redis.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://radar.example", "https://ops.example"}, cfg.Server.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: http://x\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://x", cfg.Source.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
