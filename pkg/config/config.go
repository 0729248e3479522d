// Package config loads and validates configuration for the symbol index
// builder and the search service from YAML files with environment-variable
// overrides. Every subsystem (Server, Postgres, Kafka, Redis, Storage,
// Builder, Search, Reload, Analytics, Logging, Metrics) has its own typed struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Builder   BuilderConfig   `yaml:"builder"`
	Search    SearchConfig    `yaml:"search"`
	Reload    ReloadConfig    `yaml:"reload"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters. The database is
// optional: an empty Host disables the catalog source and build summaries.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Enabled reports whether a database host is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. No brokers disables
// build-event publishing and consumption.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexBuilt string `yaml:"indexBuilt"`
	QueryLog   string `yaml:"queryLog"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// StorageConfig selects where shard blobs and manifests live.
type StorageConfig struct {
	// Backend is one of "local", "memory" or "minio".
	Backend string      `yaml:"backend"`
	DataDir string      `yaml:"dataDir"`
	Minio   MinioConfig `yaml:"minio"`
	// ReadAttempts bounds retries of transient blob read failures.
	ReadAttempts int `yaml:"readAttempts"`
}

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// BuilderConfig controls how shards are built and serialized.
type BuilderConfig struct {
	// Compression is one of "none", "lz4" or "zstd".
	Compression string `yaml:"compression"`
	// BloomFalsePositiveRate sizes the per-shard prefix filter; zero
	// disables the filters.
	BloomFalsePositiveRate float64 `yaml:"bloomFalsePositiveRate"`
	// IDBase is the first symbol id handed out when no previous manifest
	// exists.
	IDBase uint64 `yaml:"idBase"`
}

// SearchConfig controls query limits.
type SearchConfig struct {
	MaxResults   int           `yaml:"maxResults"`
	DefaultLimit int           `yaml:"defaultLimit"`
	Timeout      time.Duration `yaml:"timeout"`
	// SlowQuery is the latency above which a query's trace is logged at
	// warn level.
	SlowQuery time.Duration `yaml:"slowQuery"`
}

// ReloadConfig controls how the search service picks up new generations.
type ReloadConfig struct {
	// Watch enables an fsnotify watch on the local CURRENT pointer.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// AnalyticsConfig controls the query log. Events go through Kafka when
// brokers are configured and straight to the in-process aggregator otherwise.
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
	TopN       int  `yaml:"topN"`
	// SnapshotInterval controls how often stats are saved to PostgreSQL.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the builder or search service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local", "memory", "minio":
	default:
		return fmt.Errorf("storage.backend must be local, memory or minio, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "minio" && c.Storage.Minio.Bucket == "" {
		return fmt.Errorf("storage.minio.bucket is required for the minio backend")
	}
	switch c.Builder.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("builder.compression must be none, lz4 or zstd, got %q", c.Builder.Compression)
	}
	if c.Builder.BloomFalsePositiveRate < 0 || c.Builder.BloomFalsePositiveRate >= 1 {
		return fmt.Errorf("builder.bloomFalsePositiveRate must be in [0, 1), got %v", c.Builder.BloomFalsePositiveRate)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.maxResults must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("search.defaultLimit must be in [1, %d], got %d", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Analytics.Enabled && c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive, got %s", c.Analytics.SnapshotInterval)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       50,
			RateBurst:       100,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "symbolindex",
			User:            "symbolindex",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "symbolindex-searcher",
			Topics: KafkaTopics{
				IndexBuilt: "index.built",
				QueryLog:   "symbol.queries",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:      "local",
			DataDir:      "data/index",
			ReadAttempts: 3,
		},
		Builder: BuilderConfig{
			Compression:            "zstd",
			BloomFalsePositiveRate: 0.01,
			IDBase:                 1,
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 20,
			Timeout:      2 * time.Second,
			SlowQuery:    250 * time.Millisecond,
		},
		Reload: ReloadConfig{
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BufferSize:       10000,
			TopN:             20,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SYMIDX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYMIDX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SYMIDX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SYMIDX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SYMIDX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SYMIDX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SYMIDX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SYMIDX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SYMIDX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SYMIDX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SYMIDX_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SYMIDX_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SYMIDX_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Minio.Endpoint = v
	}
	if v := os.Getenv("SYMIDX_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.Minio.AccessKey = v
	}
	if v := os.Getenv("SYMIDX_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.Minio.SecretKey = v
	}
	if v := os.Getenv("SYMIDX_MINIO_BUCKET"); v != "" {
		cfg.Storage.Minio.Bucket = v
	}
	if v := os.Getenv("SYMIDX_BUILDER_COMPRESSION"); v != "" {
		cfg.Builder.Compression = v
	}
	if v := os.Getenv("SYMIDX_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SYMIDX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SYMIDX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
