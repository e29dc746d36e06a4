// Package config loads application configuration from YAML files, an optional
// .env file and NGH_* environment overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Storage, Search, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents    string `yaml:"searchEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects the catalog repository.
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	Fixtures string `yaml:"fixtures"`
}

// SearchConfig controls result caps, pagination and per-search timeouts.
type SearchConfig struct {
	// CandidateCap bounds the rows fetched from storage per kind.
	CandidateCap int `yaml:"candidateCap"`
	// ResultCap bounds the ranked results returned per kind.
	ResultCap int           `yaml:"resultCap"`
	PageSize  int           `yaml:"pageSize"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls the per-client token bucket on the search API.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Rate is the number of requests allowed per Window.
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// AnalyticsConfig controls search event collection and stats snapshots.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	Port             int           `yaml:"port"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads an optional .env file, then a YAML config file (if provided),
// and finally applies environment-variable overrides. Missing values keep
// their defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
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

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
	case DriverMemory:
		if c.Storage.Fixtures == "" {
			return fmt.Errorf("storage.fixtures is required for the %s driver", DriverMemory)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Search.CandidateCap <= 0 || c.Search.ResultCap <= 0 || c.Search.PageSize <= 0 {
		return fmt.Errorf("search caps must be positive: candidateCap=%d resultCap=%d pageSize=%d",
			c.Search.CandidateCap, c.Search.ResultCap, c.Search.PageSize)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rateLimit.rate and rateLimit.window must be positive")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "nepalguidehub",
			User:            "nepalguidehub",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "discovery-analytics",
			Topics: KafkaTopics{
				SearchEvents:    "discovery.search-events",
				CacheInvalidate: "discovery.cache-invalidate",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverPostgres,
		},
		Search: SearchConfig{
			CandidateCap: 100,
			ResultCap:    30,
			PageSize:     12,
			Timeout:      5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    120,
			Window:  time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BufferSize:       1000,
			BatchSize:        100,
			FlushInterval:    2 * time.Second,
			SnapshotInterval: time.Minute,
			Port:             8081,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads NGH_* environment variables and overrides the
// corresponding config fields. Unparsable numbers and booleans are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt("NGH_SERVER_PORT", &cfg.Server.Port)
	setString("NGH_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("NGH_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("NGH_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("NGH_POSTGRES_USER", &cfg.Postgres.User)
	setString("NGH_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("NGH_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("NGH_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("NGH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("NGH_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("NGH_REDIS_ADDR", &cfg.Redis.Addr)
	setString("NGH_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("NGH_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("NGH_STORAGE_FIXTURES", &cfg.Storage.Fixtures)
	setInt("NGH_SEARCH_CANDIDATE_CAP", &cfg.Search.CandidateCap)
	setInt("NGH_SEARCH_RESULT_CAP", &cfg.Search.ResultCap)
	setInt("NGH_SEARCH_PAGE_SIZE", &cfg.Search.PageSize)
	setBool("NGH_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	setBool("NGH_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setString("NGH_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("NGH_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("NGH_TRACING_ENABLED", &cfg.Tracing.Enabled)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
