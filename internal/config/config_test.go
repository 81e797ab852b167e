package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func withKeys(t *testing.T) {
	t.Helper()
	setEnvs(t, map[string]string{
		"PINECONE_API_KEY": "pc-test-key",
		"GOOGLE_API_KEY":   "google-test-key",
	})
}

func TestLoad_Defaults(t *testing.T) {
	withKeys(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, domain.VariantClip, cfg.RecommendVariant())
	assert.Equal(t, 3, cfg.TopK)
	assert.InDelta(t, 5.0, cfg.RecommendRateLimitRPS, 0)
	assert.Equal(t, 10, cfg.RecommendRateLimitBurst)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, StorePinecone, cfg.VectorStore)
	assert.Equal(t, "product-recommender-clip", cfg.IndexName())
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.InDelta(t, 0.7, cfg.GeminiTemperature, 1e-6)
	assert.Equal(t, "data/analytics_summary.json", cfg.AnalyticsFile)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.EventsEnabled())
	assert.False(t, cfg.NeedsPostgres())
}

func TestLoad_HybridUsesItsOwnIndex(t *testing.T) {
	withKeys(t)
	t.Setenv("VARIANT", "hybrid")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "product-recommendation", cfg.IndexName())
}

func TestLoad_ExplicitIndexWins(t *testing.T) {
	withKeys(t)
	t.Setenv("PINECONE_INDEX", "furniture-v2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "furniture-v2", cfg.IndexName())
}

func TestLoad_KafkaBrokersEnableEvents(t *testing.T) {
	withKeys(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{"invalid port", map[string]string{"HTTP_PORT": "0"}, "invalid HTTP port"},
		{"unknown variant", map[string]string{"VARIANT": "text"}, "VARIANT"},
		{"top k too large", map[string]string{"RECOMMEND_TOP_K": "50"}, "RECOMMEND_TOP_K"},
		{"top k zero", map[string]string{"RECOMMEND_TOP_K": "0"}, "RECOMMEND_TOP_K"},
		{"unknown store", map[string]string{"VECTOR_STORE": "faiss"}, "unknown VECTOR_STORE"},
		{"unknown cache", map[string]string{"EMBEDDING_CACHE": "disk"}, "unknown EMBEDDING_CACHE"},
		{"unknown query log", map[string]string{"QUERY_LOG": "file"}, "unknown QUERY_LOG"},
		{"temperature", map[string]string{"GEMINI_TEMPERATURE": "3"}, "GEMINI_TEMPERATURE"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE"},
		{"concurrency", map[string]string{"GENERATION_CONCURRENCY": "0"}, "GENERATION_CONCURRENCY"},
		{"negative rate", map[string]string{"RECOMMEND_RATE_LIMIT_RPS": "-1"}, "RECOMMEND_RATE_LIMIT_RPS"},
		{"zero burst", map[string]string{"RECOMMEND_RATE_LIMIT_BURST": "0"}, "RECOMMEND_RATE_LIMIT_BURST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withKeys(t)
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingGoogleKey(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "pc")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY is required")
}

func TestLoad_PineconeKeyOnlyNeededForPinecone(t *testing.T) {
	setEnvs(t, map[string]string{
		"GOOGLE_API_KEY":   "g",
		"PINECONE_API_KEY": "",
		"VECTOR_STORE":     "memory",
	})

	_, err := Load()
	require.NoError(t, err)

	t.Setenv("VECTOR_STORE", "pinecone")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PINECONE_API_KEY")
}

func TestConfig_DerivedSettings(t *testing.T) {
	withKeys(t)
	setEnvs(t, map[string]string{
		"QUERY_LOG":      "postgres",
		"POSTGRES_HOST":  "db",
		"REDIS_HOST":     "cache",
		"OTEL_ENABLED":   "true",
		"DB_MAX_CONNS":   "4",
		"REDIS_PASSWORD": "secret",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.NeedsPostgres())

	pg := cfg.PostgresConfig()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, int32(4), pg.MaxConns)
	assert.Equal(t, time.Hour, pg.MaxConnLifetime)
	assert.False(t, pg.Vector)

	rd := cfg.RedisConfig()
	assert.Equal(t, "cache:6379", rd.Addr())
	assert.Equal(t, "secret", rd.Password)

	tr := cfg.TracingConfig("advisor-api")
	assert.True(t, tr.Enabled)
	assert.Equal(t, "advisor-api", tr.ServiceName)
}

func TestConfig_PostgresConfigKeepsPoolDefaults(t *testing.T) {
	cfg := &Config{PostgresHost: "db", DBMaxConns: 20}

	pg := cfg.PostgresConfig()

	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, int32(20), pg.MaxConns)
	assert.Equal(t, 5432, pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Equal(t, int32(1), pg.MinConns)
	assert.Equal(t, 15*time.Minute, pg.MaxConnIdleTime)
}
