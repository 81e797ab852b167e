package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/config"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/embedding"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/generator"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository/memory"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository/postgres"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/service"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	esindex "github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex/elasticsearch"
	memindex "github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex/memory"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex/pgvector"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex/pinecone"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/database"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/httpclient"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
)

// memoryCacheEntries bounds the in-process embedding cache.
const memoryCacheEntries = 2048

// buildEmbedder returns the CLIP embedder, or text ++ CLIP for the hybrid
// variant. Each model client sits behind its own circuit breaker and cache.
// A malformed inference URL yields embedding.Unavailable.
func (a *App) buildEmbedder(variant domain.Variant) embedding.Embedder {
	urls := []string{a.cfg.ClipEmbeddingURL}
	if variant == domain.VariantHybrid {
		urls = append(urls, a.cfg.TextEmbeddingURL)
	}
	for _, raw := range urls {
		if err := checkEndpoint(raw); err != nil {
			a.logger.Error("embedder unavailable, recommendations will answer 503",
				slog.String("variant", string(variant)),
				slog.String("error", err.Error()),
			)
			return embedding.UnavailableFor(variant)
		}
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = time.Duration(a.cfg.EmbeddingTimeoutSecs) * time.Second
	ttl := time.Duration(a.cfg.EmbeddingCacheTTLMins) * time.Minute
	cache := a.embeddingCache(ttl)

	newClient := func(breaker, url, model string, dims int) embedding.Embedder {
		doer := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpCfg),
			httpclient.DefaultCircuitBreakerConfig(breaker),
			a.logger,
		)
		var e embedding.Embedder = embedding.NewClient(embedding.ClientConfig{
			BaseURL:    url,
			Model:      model,
			Dimensions: dims,
		}, doer)
		if cache != nil {
			e = embedding.NewCached(e, cache, ttl, a.logger)
		}
		a.logger.Info("embedding model configured",
			slog.String("model", model),
			slog.String("url", url),
			slog.Int("dimensions", dims),
		)
		return e
	}

	clip := newClient("clip-embeddings", a.cfg.ClipEmbeddingURL, a.cfg.ClipEmbeddingModel, domain.ClipEmbeddingDims)
	if variant != domain.VariantHybrid {
		return clip
	}
	text := newClient("text-embeddings", a.cfg.TextEmbeddingURL, a.cfg.TextEmbeddingModel, domain.TextEmbeddingDims)
	return embedding.NewHybrid(text, clip)
}

func checkEndpoint(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("embedding url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("embedding url %q: want http(s)://host", raw)
	}
	return nil
}

func (a *App) embeddingCache(ttl time.Duration) embedding.Cache {
	switch a.cfg.EmbeddingCache {
	case config.CacheNone:
		return nil
	case config.CacheRedis:
		if a.redis != nil {
			return embedding.NewRedisCache(a.redis)
		}
	}
	return embedding.NewMemoryCache(memoryCacheEntries, ttl)
}

// buildIndex connects the configured vector store. A store that cannot be
// reached is replaced by vectorindex.Unavailable.
func (a *App) buildIndex(ctx context.Context, dims int) vectorindex.Index {
	unavailable := func(err error) vectorindex.Index {
		a.logger.Error("vector index unavailable, recommendations will answer 503",
			slog.String("store", a.cfg.VectorStore),
			slog.String("error", err.Error()),
		)
		if a.cfg.VectorStore == config.StorePinecone {
			return vectorindex.Unavailable{}
		}
		return vectorindex.Unavailable{Reason: fmt.Sprintf("%s index is not initialized.", a.cfg.VectorStore)}
	}

	switch a.cfg.VectorStore {
	case config.StorePinecone:
		idx, err := pinecone.New(ctx, pinecone.Config{
			APIKey:     a.cfg.PineconeAPIKey,
			IndexName:  a.cfg.IndexName(),
			Host:       a.cfg.PineconeHost,
			Namespace:  a.cfg.PineconeNamespace,
			Dimensions: dims,
		}, a.logger)
		if err != nil {
			return unavailable(err)
		}
		a.logger.Info("using pinecone vector index",
			slog.String("index", a.cfg.IndexName()),
			slog.String("api_key", logger.MaskSecret(a.cfg.PineconeAPIKey)),
		)
		a.closers = append(a.closers, idx.Close)
		return idx

	case config.StoreElasticsearch:
		idx, err := esindex.New(ctx, a.cfg.ElasticsearchURL, a.cfg.ElasticsearchIndex, dims, a.logger)
		if err != nil {
			return unavailable(err)
		}
		a.logger.Info("using elasticsearch vector index",
			slog.String("url", a.cfg.ElasticsearchURL),
			slog.String("index", a.cfg.ElasticsearchIndex),
		)
		return idx

	case config.StorePgvector:
		idx, err := a.connectPgvector(ctx, dims)
		if err != nil {
			return unavailable(err)
		}
		return idx

	default:
		if a.cfg.VectorSeedFile == "" {
			a.logger.Warn("in-memory vector index has no seed file and will return no matches")
			return memindex.New(dims)
		}
		idx, err := memindex.Load(a.cfg.VectorSeedFile, dims)
		if err != nil {
			return unavailable(err)
		}
		a.logger.Info("using in-memory vector index",
			slog.String("seed_file", a.cfg.VectorSeedFile),
			slog.Int("items", idx.Len()),
		)
		return idx
	}
}

// connectPgvector creates the vector table on the main pool, then opens a
// second pool that registers the pgvector types on connect.
func (a *App) connectPgvector(ctx context.Context, dims int) (*pgvector.Index, error) {
	if a.pool == nil {
		return nil, fmt.Errorf("postgres is not connected")
	}
	if err := pgvector.EnsureSchema(ctx, a.pool, a.cfg.PgvectorTable, dims); err != nil {
		return nil, err
	}

	pgCfg := a.cfg.PostgresConfig()
	pgCfg.Vector = true
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector pool: %w", err)
	}
	a.vectorPool = pool
	a.logger.Info("using pgvector index", slog.String("table", a.cfg.PgvectorTable))
	return pgvector.New(pool, a.cfg.PgvectorTable, dims), nil
}

// buildGenerator wraps Gemini in the description chain. Without a client
// every description request answers 503.
func (a *App) buildGenerator(ctx context.Context, variant domain.Variant) service.Describer {
	var model generator.Model
	gemini, err := generator.NewGemini(ctx, generator.GeminiConfig{
		APIKey:      a.cfg.GoogleAPIKey,
		Model:       a.cfg.GeminiModel,
		Temperature: a.cfg.GeminiTemperature,
		Timeout:     time.Duration(a.cfg.GeminiTimeoutSecs) * time.Second,
	})
	if err != nil {
		a.logger.Error("llm unavailable, recommendations will answer 503", slog.String("error", err.Error()))
		model = generator.Unavailable{}
	} else {
		a.logger.Info("gemini model configured",
			slog.String("model", gemini.Name()),
			slog.String("api_key", logger.MaskSecret(a.cfg.GoogleAPIKey)),
		)
		model = gemini
	}
	return generator.New(generator.NewChain(generator.NewTemplate(variant), model), a.logger)
}

// buildQueryLog returns the PostgreSQL repository when configured and
// connected, the in-memory ring otherwise.
func (a *App) buildQueryLog() repository.QueryLogRepository {
	if a.cfg.QueryLog == config.QueryLogPostgres {
		if a.pool != nil {
			return postgres.NewQueryLogRepository(a.pool)
		}
		a.logger.Warn("postgres query log unavailable, keeping recent queries in memory")
	}
	return memory.NewQueryLogRepository(a.cfg.QueryLogMemory)
}
