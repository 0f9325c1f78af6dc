// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Corpus, Pipeline, Search, etc.).
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
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Keywords   KeywordsConfig   `yaml:"keywords"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Search     SearchConfig     `yaml:"search"`
	Themes     ThemesConfig     `yaml:"themes"`
	QueryLog   QueryLogConfig   `yaml:"queryLog"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the requests per minute allowed to one client; 0 disables
	// rate limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables the artifact store.
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

// Enabled reports whether a PostgreSQL host is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// KafkaConfig holds Kafka broker and topic settings. No brokers disables
// snapshot events.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SnapshotPublished string `yaml:"snapshotPublished"`
	QueryEvents       string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the query cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CorpusConfig selects where normalised speech records are read from.
type CorpusConfig struct {
	// Source is "file" (JSON lines) or "postgres".
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Table  string `yaml:"table"`
}

// PipelineConfig controls the rebuild stages.
type PipelineConfig struct {
	DataDir       string  `yaml:"dataDir"`
	Dimensions    int     `yaml:"dimensions"`
	Clusters      int     `yaml:"clusters"`
	Restarts      int     `yaml:"restarts"`
	MaxIterations int     `yaml:"maxIterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Seed          uint64  `yaml:"seed"`
	Workers       int     `yaml:"workers"`
	// KeepGenerations is how many snapshot directories survive pruning.
	KeepGenerations int `yaml:"keepGenerations"`
}

// KeywordsConfig sets the summary size per subset kind.
type KeywordsConfig struct {
	PerDocument   int `yaml:"perDocument"`
	PerSpeaker    int `yaml:"perSpeaker"`
	PerParty      int `yaml:"perParty"`
	PerYear       int `yaml:"perYear"`
	PerEntityYear int `yaml:"perEntityYear"`
}

// SimilarityConfig controls speaker-pair pruning.
type SimilarityConfig struct {
	MinScore float64 `yaml:"minScore"`
	// TopK keeps only each speaker's K best neighbours; 0 keeps all pairs.
	TopK int `yaml:"topK"`
}

// SearchConfig controls query result limits.
type SearchConfig struct {
	MaxResults   int `yaml:"maxResults"`
	DefaultLimit int `yaml:"defaultLimit"`
}

// ThemesConfig controls on-demand cluster analytics.
type ThemesConfig struct {
	TopTerms            int `yaml:"topTerms"`
	MaxPointsPerCluster int `yaml:"maxPointsPerCluster"`
	Samples             int `yaml:"samples"`
}

// QueryLogConfig controls the search-traffic statistics of the searcher.
type QueryLogConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
	// TopN is how many frequent queries and terms the stats report.
	TopN int `yaml:"topN"`
	// SaveInterval is how often stats are persisted; 0 disables persistence.
	SaveInterval time.Duration `yaml:"saveInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server. PushGateway, when
// set, receives the builder's metrics once a rebuild ends.
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	PushGateway string `yaml:"pushGateway"`
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

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case "file", "postgres":
	default:
		return fmt.Errorf("corpus.source must be \"file\" or \"postgres\", got %q", c.Corpus.Source)
	}
	if c.Pipeline.Dimensions < 1 {
		return fmt.Errorf("pipeline.dimensions must be positive, got %d", c.Pipeline.Dimensions)
	}
	if c.Pipeline.Clusters < 1 {
		return fmt.Errorf("pipeline.clusters must be positive, got %d", c.Pipeline.Clusters)
	}
	if c.Pipeline.Restarts < 1 {
		return fmt.Errorf("pipeline.restarts must be positive, got %d", c.Pipeline.Restarts)
	}
	if c.Similarity.MinScore < 0 || c.Similarity.MinScore > 1 {
		return fmt.Errorf("similarity.minScore must be within [0,1], got %g", c.Similarity.MinScore)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Similarity.TopK < 0 {
		return fmt.Errorf("similarity.topK must not be negative, got %d", c.Similarity.TopK)
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
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "parliament",
			User:            "parliament",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "parliament-searcher",
			Topics: KafkaTopics{
				SnapshotPublished: "snapshot-published",
				QueryEvents:       "query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Corpus: CorpusConfig{
			Source: "file",
			Path:   "data/speeches.jsonl",
			Table:  "speeches",
		},
		Pipeline: PipelineConfig{
			DataDir:         "data/snapshots",
			Dimensions:      100,
			Clusters:        100,
			Restarts:        10,
			MaxIterations:   300,
			Tolerance:       1e-4,
			Seed:            42,
			KeepGenerations: 3,
		},
		Keywords: KeywordsConfig{
			PerDocument:   5,
			PerSpeaker:    10,
			PerParty:      10,
			PerYear:       10,
			PerEntityYear: 10,
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 5,
		},
		Themes: ThemesConfig{
			TopTerms:            10,
			MaxPointsPerCluster: 200,
			Samples:             10,
		},
		QueryLog: QueryLogConfig{
			Enabled:      true,
			BufferSize:   10000,
			TopN:         10,
			SaveInterval: 5 * time.Minute,
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

// applyEnvOverrides reads PA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PA_METRICS_PUSH_GATEWAY"); v != "" {
		cfg.Metrics.PushGateway = v
	}
	if v := os.Getenv("PA_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v, ok := os.LookupEnv("PA_POSTGRES_HOST"); ok {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PA_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PA_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v, ok := os.LookupEnv("PA_KAFKA_BROKERS"); ok {
		if v == "" {
			cfg.Kafka.Brokers = nil
		} else {
			cfg.Kafka.Brokers = strings.Split(v, ",")
		}
	}
	if v, ok := os.LookupEnv("PA_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PA_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("PA_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("PA_PIPELINE_DATA_DIR"); v != "" {
		cfg.Pipeline.DataDir = v
	}
	if v := os.Getenv("PA_PIPELINE_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Dimensions = n
		}
	}
	if v := os.Getenv("PA_PIPELINE_CLUSTERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Clusters = n
		}
	}
	if v := os.Getenv("PA_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("PA_SIMILARITY_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Similarity.TopK = n
		}
	}
	if v := os.Getenv("PA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
