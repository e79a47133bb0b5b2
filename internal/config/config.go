package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSeenPrefix = "indexer:seen:"
	DefaultSeenTTL    = time.Hour
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Chain     ChainConfig     `yaml:"chain"`
	Processor ProcessorConfig `yaml:"processor"`
	Stores    StoresConfig    `yaml:"stores"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	BuildTimeout    time.Duration `yaml:"build_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type NATSConfig struct {
	URL        string `yaml:"url"`
	Subject    string `yaml:"subject"`
	Queue      string `yaml:"queue"` // rejected by Validate
	BufferSize int    `yaml:"buffer_size"`
	ClientName string `yaml:"client_name"`
	MaxPending int    `yaml:"max_pending"`
}

// DedupeConfig guards against transport redeliveries; Backend is "", "memory" or "redis"
type DedupeConfig struct {
	Backend  string        `yaml:"backend"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

type IngestConfig struct {
	NATS   NATSConfig   `yaml:"nats"`
	Dedupe DedupeConfig `yaml:"dedupe"`
}

type ChainConfig struct {
	ParachainStart uint64 `yaml:"parachain_start"`
	StatePrefix    string `yaml:"state_prefix"`
}

type ProcessorConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	FlushSize     int           `yaml:"flush_size"`
	FlushTimeout  time.Duration `yaml:"flush_timeout"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows int           `yaml:"batch_max_rows"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.BuildTimeout <= 0 {
		c.App.BuildTimeout = 30 * time.Second
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Ingest.NATS.Subject == "" {
		c.Ingest.NATS.Subject = "chain.events"
	}
	if c.Ingest.NATS.BufferSize <= 0 {
		c.Ingest.NATS.BufferSize = 4096
	}
	if c.Ingest.Dedupe.Prefix == "" {
		c.Ingest.Dedupe.Prefix = DefaultSeenPrefix
	}
	if c.Ingest.Dedupe.TTL <= 0 {
		c.Ingest.Dedupe.TTL = DefaultSeenTTL
	}
	if c.Chain.StatePrefix == "" {
		c.Chain.StatePrefix = "chain:"
	}
	if c.Stores.Redis.Prefix == "" {
		c.Stores.Redis.Prefix = "indexer:"
	}
	if c.API.HTTP.Addr == "" {
		c.API.HTTP.Addr = ":8080"
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Ingest.NATS.URL == "":
		return errors.New("ingest.nats.url is required")
	// a queue group splits the stream between instances that share running totals
	case c.Ingest.NATS.Queue != "":
		return errors.New("ingest.nats.queue is not supported: running totals need a single consumer")
	case c.Stores.Redis.Addr == "":
		return errors.New("stores.redis.addr is required")
	case c.Stores.ClickHouse.Enabled && c.Stores.ClickHouse.DSN == "":
		return errors.New("stores.clickhouse.dsn is required when clickhouse is enabled")
	case c.Stores.Postgres.Enabled && c.Stores.Postgres.DSN == "":
		return errors.New("stores.postgres.dsn is required when postgres is enabled")
	case c.Ingest.Dedupe.Backend != "" && c.Ingest.Dedupe.Backend != "memory" && c.Ingest.Dedupe.Backend != "redis":
		return fmt.Errorf("unknown ingest.dedupe.backend %q", c.Ingest.Dedupe.Backend)
	}
	return nil
}
