package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	pkgconfig "github.com/AGtheOG/ikarus3d-advisorBot/pkg/config"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/database"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/tracing"
)

// Vector store backends.
const (
	StorePinecone      = "pinecone"
	StoreElasticsearch = "elasticsearch"
	StorePgvector      = "pgvector"
	StoreMemory        = "memory"
)

// Embedding cache backends.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Query log backends.
const (
	QueryLogPostgres = "postgres"
	QueryLogMemory   = "memory"
)

// Config holds all configuration for the advisor API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int `env:"HTTP_PORT" envDefault:"8000"`
	RequestTimeoutSecs int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"120"`

	// Recommendation
	Variant                 string  `env:"VARIANT" envDefault:"clip"`
	TopK                    int     `env:"RECOMMEND_TOP_K" envDefault:"3"`
	GenerationConcurrency   int     `env:"GENERATION_CONCURRENCY" envDefault:"3"`
	RecommendRateLimitRPS   float64 `env:"RECOMMEND_RATE_LIMIT_RPS" envDefault:"5"`
	RecommendRateLimitBurst int     `env:"RECOMMEND_RATE_LIMIT_BURST" envDefault:"10"`
	TrustProxyHeaders       bool    `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Credentials
	PineconeAPIKey string `env:"PINECONE_API_KEY"`
	GoogleAPIKey   string `env:"GOOGLE_API_KEY"`

	// Vector store
	VectorStore        string `env:"VECTOR_STORE" envDefault:"pinecone"`
	PineconeIndex      string `env:"PINECONE_INDEX"`
	PineconeHost       string `env:"PINECONE_HOST"`
	PineconeNamespace  string `env:"PINECONE_NAMESPACE"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"advisor_products"`
	PgvectorTable      string `env:"PGVECTOR_TABLE" envDefault:"product_embeddings"`
	VectorSeedFile     string `env:"VECTOR_SEED_FILE"`

	// Embedding inference servers
	TextEmbeddingURL      string `env:"TEXT_EMBEDDING_URL" envDefault:"http://localhost:8081"`
	TextEmbeddingModel    string `env:"TEXT_EMBEDDING_MODEL" envDefault:"sentence-transformers/all-MiniLM-L6-v2"`
	ClipEmbeddingURL      string `env:"CLIP_EMBEDDING_URL" envDefault:"http://localhost:8082"`
	ClipEmbeddingModel    string `env:"CLIP_EMBEDDING_MODEL" envDefault:"sentence-transformers/clip-ViT-B-32"`
	EmbeddingTimeoutSecs  int    `env:"EMBEDDING_TIMEOUT_SECONDS" envDefault:"15"`
	EmbeddingCache        string `env:"EMBEDDING_CACHE" envDefault:"memory"`
	EmbeddingCacheTTLMins int    `env:"EMBEDDING_CACHE_TTL_MINUTES" envDefault:"60"`

	// Gemini
	GeminiModel       string  `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiTemperature float32 `env:"GEMINI_TEMPERATURE" envDefault:"0.7"`
	GeminiTimeoutSecs int     `env:"GEMINI_TIMEOUT_SECONDS" envDefault:"30"`

	// Analytics
	AnalyticsFile string `env:"ANALYTICS_FILE" envDefault:"data/analytics_summary.json"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`

	// Query log
	QueryLog       string `env:"QUERY_LOG" envDefault:"memory"`
	QueryLogMemory int    `env:"QUERY_LOG_MEMORY_SIZE" envDefault:"500"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"advisor"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"advisor"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"advisor"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"15"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka. No brokers disables event publishing.
	KafkaBrokers             []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicRecommendation string   `env:"KAFKA_TOPIC_RECOMMENDATIONS" envDefault:"advisor.recommendation.served"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	AdminAllowedCIDRs []string `env:"ADMIN_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads a .env file if present, then configuration from environment
// variables, and validates the result.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load advisor config: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load advisor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges, enumerations and required credentials.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if _, err := domain.ParseVariant(c.Variant); err != nil {
		return fmt.Errorf("VARIANT: %w", err)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("RECOMMEND_TOP_K must be between 1 and 20, got %d", c.TopK)
	}
	if c.GenerationConcurrency < 1 {
		return fmt.Errorf("GENERATION_CONCURRENCY must be positive, got %d", c.GenerationConcurrency)
	}
	if c.RecommendRateLimitRPS < 0 {
		return fmt.Errorf("RECOMMEND_RATE_LIMIT_RPS must not be negative, got %v", c.RecommendRateLimitRPS)
	}
	if c.RecommendRateLimitRPS > 0 && c.RecommendRateLimitBurst < 1 {
		return fmt.Errorf("RECOMMEND_RATE_LIMIT_BURST must be positive when rate limiting is enabled, got %d", c.RecommendRateLimitBurst)
	}

	switch c.VectorStore {
	case StorePinecone:
		if strings.TrimSpace(c.PineconeAPIKey) == "" {
			return errors.New("PINECONE_API_KEY is required when VECTOR_STORE=pinecone")
		}
	case StoreElasticsearch, StorePgvector, StoreMemory:
	default:
		return fmt.Errorf("unknown VECTOR_STORE %q", c.VectorStore)
	}
	if strings.TrimSpace(c.GoogleAPIKey) == "" {
		return errors.New("GOOGLE_API_KEY is required")
	}

	switch c.EmbeddingCache {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		return fmt.Errorf("unknown EMBEDDING_CACHE %q", c.EmbeddingCache)
	}
	switch c.QueryLog {
	case QueryLogPostgres, QueryLogMemory:
	default:
		return fmt.Errorf("unknown QUERY_LOG %q", c.QueryLog)
	}
	if c.RequestTimeoutSecs < 1 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSecs)
	}
	if c.EmbeddingTimeoutSecs < 1 {
		return fmt.Errorf("EMBEDDING_TIMEOUT_SECONDS must be positive, got %d", c.EmbeddingTimeoutSecs)
	}
	if c.GeminiTemperature < 0 || c.GeminiTemperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be between 0.0 and 2.0, got %f", c.GeminiTemperature)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// RecommendVariant returns the validated variant.
func (c *Config) RecommendVariant() domain.Variant {
	return domain.Variant(c.Variant)
}

// IndexName returns PINECONE_INDEX or the variant's default index.
func (c *Config) IndexName() string {
	if c.PineconeIndex != "" {
		return c.PineconeIndex
	}
	return c.RecommendVariant().DefaultIndexName()
}

// NeedsPostgres reports whether any component stores data in PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.QueryLog == QueryLogPostgres || c.VectorStore == StorePgvector
}

// EventsEnabled reports whether recommendation events are published.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// PostgresConfig returns the connection settings for pkg/database. Unset
// values keep the package defaults.
func (c *Config) PostgresConfig() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	if c.PostgresHost != "" {
		cfg.Host = c.PostgresHost
	}
	if c.PostgresPort > 0 {
		cfg.Port = c.PostgresPort
	}
	if c.PostgresUser != "" {
		cfg.User = c.PostgresUser
	}
	if c.PostgresPass != "" {
		cfg.Password = c.PostgresPass
	}
	if c.PostgresDB != "" {
		cfg.DBName = c.PostgresDB
	}
	if c.PostgresSSL != "" {
		cfg.SSLMode = c.PostgresSSL
	}
	if c.DBMaxConns > 0 {
		cfg.MaxConns = c.DBMaxConns
	}
	if c.DBMinConns > 0 {
		cfg.MinConns = c.DBMinConns
	}
	if c.DBMaxConnLifetimeMins > 0 {
		cfg.MaxConnLifetime = time.Duration(c.DBMaxConnLifetimeMins) * time.Minute
	}
	if c.DBMaxConnIdleTimeMins > 0 {
		cfg.MaxConnIdleTime = time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute
	}
	return cfg
}

// RedisConfig returns the connection settings for pkg/database.
func (c *Config) RedisConfig() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// TracingConfig returns the OpenTelemetry settings for pkg/tracing.
func (c *Config) TracingConfig(serviceName string) tracing.Config {
	cfg := tracing.DefaultConfig(serviceName)
	cfg.Environment = c.Environment
	cfg.Enabled = c.OTELEnabled
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	return cfg
}
