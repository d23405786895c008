package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory  = "memory"
	StorageRedis   = "redis"
	StorageLayered = "layered"
	StorageFile    = "file"

	ArchiveNone       = "none"
	ArchiveKafka      = "kafka"
	ArchiveClickHouse = "clickhouse"
)

// Upper bounds on the scan history. Smaller values are allowed.
const (
	MaxRetention      = 7 * 24 * time.Hour
	MaxHistoryRecords = 5000
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Scanner struct {
		Interval     time.Duration `yaml:"interval"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		ManualBurst  int           `yaml:"manual_burst"`
		ManualRefill time.Duration `yaml:"manual_refill"`
	} `yaml:"scanner"`
	History struct {
		StorageKey string        `yaml:"storage_key"`
		Retention  time.Duration `yaml:"retention"`
		MaxRecords int           `yaml:"max_records"`
	} `yaml:"history"`
	Storage struct {
		Type string `yaml:"type"`
		File struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		Memory struct {
			MaxSize int `yaml:"max_size"`
		} `yaml:"memory"`
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Source struct {
		URL          string        `yaml:"url"`
		APIKey       string        `yaml:"api_key"`
		APIKeyHeader string        `yaml:"api_key_header"`
		Timeout      time.Duration `yaml:"timeout"`
		Attempts     int           `yaml:"attempts"`
	} `yaml:"source"`
	Archive struct {
		Backend    string `yaml:"backend"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"archive"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := getenv("SOURCE_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Storage.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Storage.Redis.Port = p
		}
	}
	if v := getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Scanner.Interval == 0 {
		c.Scanner.Interval = 5 * time.Minute
	}
	if c.Scanner.FetchTimeout == 0 {
		c.Scanner.FetchTimeout = 90 * time.Second
	}
	if c.Scanner.ManualBurst == 0 {
		c.Scanner.ManualBurst = 3
	}
	if c.Scanner.ManualRefill == 0 {
		c.Scanner.ManualRefill = 20 * time.Second
	}
	if c.History.StorageKey == "" {
		c.History.StorageKey = "crypto_radar_history"
	}
	if c.History.Retention == 0 {
		c.History.Retention = MaxRetention
	}
	if c.History.MaxRecords == 0 {
		c.History.MaxRecords = MaxHistoryRecords
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageFile
	}
	if c.Storage.File.Path == "" {
		c.Storage.File.Path = "data/history.json"
	}
	if c.Storage.Memory.MaxSize == 0 {
		c.Storage.Memory.MaxSize = 1000
	}
	if c.Storage.Redis.Host == "" {
		c.Storage.Redis.Host = "localhost"
	}
	if c.Storage.Redis.Port == 0 {
		c.Storage.Redis.Port = 6379
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "alpharadar"
	}
	if c.Source.APIKeyHeader == "" {
		c.Source.APIKeyHeader = "X-API-Key"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 60 * time.Second
	}
	if c.Source.Attempts == 0 {
		c.Source.Attempts = 2
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = ArchiveNone
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = 256
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "alpharadar.scans"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "alpharadar"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "scan_appearances"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Scanner.Interval < time.Second {
		return fmt.Errorf("scanner.interval must be at least 1s, got %s", c.Scanner.Interval)
	}
	if c.History.Retention <= 0 || c.History.Retention > MaxRetention {
		return fmt.Errorf("history.retention must be in (0, %s], got %s", MaxRetention, c.History.Retention)
	}
	if c.History.MaxRecords <= 0 || c.History.MaxRecords > MaxHistoryRecords {
		return fmt.Errorf("history.max_records must be in [1, %d], got %d", MaxHistoryRecords, c.History.MaxRecords)
	}
	switch c.Storage.Type {
	case StorageMemory, StorageRedis, StorageLayered:
	case StorageFile:
		if c.Storage.File.Path == "" {
			return fmt.Errorf("storage.file.path is required for file storage")
		}
	default:
		return fmt.Errorf("storage.type must be one of memory, redis, layered, file, got '%s'", c.Storage.Type)
	}
	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when archive.backend is kafka")
		}
	case ArchiveClickHouse:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when archive.backend is clickhouse")
		}
	default:
		return fmt.Errorf("archive.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Archive.Backend)
	}
	return nil
}
