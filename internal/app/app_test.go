package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/config"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository/memory"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:           "test",
		HTTPPort:              0,
		RequestTimeoutSecs:    5,
		Variant:               "clip",
		TopK:                  3,
		GenerationConcurrency: 2,
		VectorStore:           config.StoreMemory,
		EmbeddingCache:        config.CacheNone,
		EmbeddingTimeoutSecs:  1,
		ClipEmbeddingURL:      "http://localhost:8082",
		TextEmbeddingURL:      "http://localhost:8081",
		GeminiModel:           "gemini-2.5-flash",
		GeminiTimeoutSecs:     1,
		AnalyticsFile:         filepath.Join(t.TempDir(), "analytics_summary.json"),
		QueryLog:              config.QueryLogMemory,
		QueryLogMemory:        10,
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_ServesWithoutExternalServices(t *testing.T) {
	a, err := NewApp(testConfig(t), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	for path, want := range map[string]int{
		"/api":           http.StatusOK,
		"/health/live":   http.StatusOK,
		"/health/ready":  http.StatusOK,
		"/api/analytics": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		a.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestBuildIndex_MemorySeedFile(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"id":"a","vector":[1,0],"metadata":{"title":"Desk"}},
		{"id":"b","vector":[0,1],"metadata":{"title":"Rug"}}
	]`), 0o600))

	cfg := testConfig(t)
	cfg.VectorSeedFile = seed
	a := &App{cfg: cfg, logger: quiet()}

	idx := a.buildIndex(context.Background(), 0)
	matches, err := idx.Query(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestBuildIndex_BadSeedIsUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorSeedFile = filepath.Join(t.TempDir(), "missing.json")
	a := &App{cfg: cfg, logger: quiet()}

	idx := a.buildIndex(context.Background(), domain.ClipEmbeddingDims)

	require.IsType(t, vectorindex.Unavailable{}, idx)
	err := idx.Ping(context.Background())
	assert.True(t, apperrors.IsUnavailable(err))
	assert.Equal(t, "vector index: memory index is not initialized.", apperrors.MessageOf(err))
}

func TestBuildIndex_PgvectorWithoutPostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore = config.StorePgvector
	a := &App{cfg: cfg, logger: quiet()}

	idx := a.buildIndex(context.Background(), domain.ClipEmbeddingDims)

	assert.IsType(t, vectorindex.Unavailable{}, idx)
}

func TestBuildIndex_PineconeWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore = config.StorePinecone
	a := &App{cfg: cfg, logger: quiet()}

	idx := a.buildIndex(context.Background(), domain.ClipEmbeddingDims)

	err := idx.Ping(context.Background())
	assert.Equal(t, "vector index: Pinecone index is not initialized.", apperrors.MessageOf(err))
}

func TestBuildEmbedder_Dimensions(t *testing.T) {
	a := &App{cfg: testConfig(t), logger: quiet()}

	assert.Equal(t, domain.ClipEmbeddingDims, a.buildEmbedder(domain.VariantClip).Dimensions())
	assert.Equal(t, domain.HybridEmbeddingDims, a.buildEmbedder(domain.VariantHybrid).Dimensions())
}

func TestBuildEmbedder_BadURLIsUnavailable(t *testing.T) {
	tests := []struct {
		variant domain.Variant
		mutate  func(*config.Config)
		reason  string
	}{
		{domain.VariantClip, func(c *config.Config) { c.ClipEmbeddingURL = "" }, "embedding: Multimodal embedder is not initialized."},
		{domain.VariantHybrid, func(c *config.Config) { c.TextEmbeddingURL = "localhost:8081" }, "embedding: Text and image embedders are not initialized."},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			a := &App{cfg: cfg, logger: quiet()}

			e := a.buildEmbedder(tt.variant)
			assert.Equal(t, tt.variant.Dimensions(), e.Dimensions())

			_, err := e.Embed(context.Background(), "desk")
			require.Error(t, err)
			assert.True(t, apperrors.IsUnavailable(err))
			assert.Equal(t, tt.reason, apperrors.MessageOf(err))
		})
	}
}

func TestEmbeddingCache_Selection(t *testing.T) {
	cfg := testConfig(t)
	a := &App{cfg: cfg, logger: quiet()}
	assert.Nil(t, a.embeddingCache(time.Minute))

	cfg.EmbeddingCache = config.CacheRedis
	assert.NotNil(t, a.embeddingCache(time.Minute), "redis without a connection falls back to memory")
}

func TestBuildQueryLog_FallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueryLog = config.QueryLogPostgres
	a := &App{cfg: cfg, logger: quiet()}

	assert.IsType(t, &memory.QueryLogRepository{}, a.buildQueryLog())
}
