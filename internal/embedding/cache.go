package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embedding_cache_lookups_total",
		Help: "Embedding cache lookups by result (hit, miss, error).",
	},
	[]string{"result"},
)

// Cache stores vectors by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// CacheKey derives a cache key from the model name and the input text.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "advisor:emb:" + hex.EncodeToString(sum[:])
}

// Cached serves repeated prompts from a cache. Cache failures are logged
// and never fail the embedding.
type Cached struct {
	next   Embedder
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Embedder, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Embed returns the cached vector or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.next.Model(), text)

	vec, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "embedding cache read failed", slog.String("error", err.Error()))
	case ok && len(vec) == c.next.Dimensions():
		cacheLookups.WithLabelValues("hit").Inc()
		return vec, nil
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "embedding cache write failed", slog.String("error", err.Error()))
	}
	return vec, nil
}

// Dimensions delegates to the wrapped embedder.
func (c *Cached) Dimensions() int { return c.next.Dimensions() }

// Model delegates to the wrapped embedder.
func (c *Cached) Model() string { return c.next.Model() }

// RedisCache stores vectors as little-endian float32 bytes.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache returns a cache on client.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Get reads key. A missing key is a miss, not an error.
func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set writes key with ttl.
func (r *RedisCache) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, encodeVector(vec), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}

// MemoryCache is a process-local LRU bounded by entry count. Entries expire
// after the ttl given to NewMemoryCache; the per-call ttl of Set is ignored.
type MemoryCache struct {
	lru *expirable.LRU[string, []float32]
}

// NewMemoryCache returns a cache holding at most maxEntries vectors for ttl.
// A zero ttl never expires.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []float32](maxEntries, nil, ttl)}
}

// Get returns a copy of the vector stored under key.
func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	vec, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), vec...), true, nil
}

// Set stores a copy of vec.
func (m *MemoryCache) Set(_ context.Context, key string, vec []float32, _ time.Duration) error {
	m.lru.Add(key, append([]float32(nil), vec...))
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int { return m.lru.Len() }
