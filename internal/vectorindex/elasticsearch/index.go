// Package elasticsearch runs approximate kNN queries against a
// dense_vector field.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// DefaultIndexName is used when no index is configured.
const DefaultIndexName = "advisor_products"

// VectorField holds the product embedding in every document.
const VectorField = "embedding"

// Index is a vectorindex.Index backed by Elasticsearch.
type Index struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
	logger    *slog.Logger
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float32        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a client for esURL and makes sure the index exists with a
// dense_vector mapping of dims dimensions.
func New(ctx context.Context, esURL, indexName string, dims int, logger *slog.Logger) (*Index, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	idx := &Index{client: client, indexName: indexName, dims: dims, logger: logger}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return idx, nil
}

// Mapping returns the index body: product metadata is stored but not
// indexed, the embedding is indexed for cosine kNN.
func Mapping(dims int) string {
	return fmt.Sprintf(`{
  "settings": { "number_of_shards": 1, "number_of_replicas": 0 },
  "mappings": {
    "dynamic": false,
    "properties": {
      "title":      { "type": "text" },
      "brand":      { "type": "keyword" },
      "category":   { "type": "keyword" },
      "categories": { "type": "keyword" },
      "image_url":  { "type": "keyword", "index": false },
      %q: { "type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine" }
    }
  }
}`, VectorField, dims)
}

func (idx *Index) ensureIndex(ctx context.Context) error {
	res, err := idx.client.Indices.Exists([]string{idx.indexName}, idx.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		idx.logger.Info("elasticsearch index already exists", slog.String("index", idx.indexName))
		return nil
	}

	res, err = idx.client.Indices.Create(
		idx.indexName,
		idx.client.Indices.Create.WithBody(strings.NewReader(Mapping(idx.dims))),
		idx.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", decodeError(res.Body, res.Status()))
	}
	idx.logger.Info("elasticsearch index created", slog.String("index", idx.indexName), slog.Int("dims", idx.dims))
	return nil
}

// Query runs a kNN search and returns each hit's _source as metadata.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if err := vectorindex.CheckDimensions(vector, idx.dims); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	body, err := json.Marshal(buildKNNQuery(vector, topK))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch query: marshal: %w", err)
	}

	res, err := idx.client.Search(
		idx.client.Search.WithIndex(idx.indexName),
		idx.client.Search.WithBody(bytes.NewReader(body)),
		idx.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.Unavailable("elasticsearch", err.Error())
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		msg := decodeError(res.Body, res.Status())
		switch res.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return nil, apperrors.Unavailable("elasticsearch", msg)
		default:
			return nil, fmt.Errorf("elasticsearch query: %s", msg)
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("elasticsearch query: decode response: %w", err)
	}

	matches := make([]domain.Match, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		delete(h.Source, VectorField)
		matches = append(matches, domain.Match{ID: h.ID, Score: h.Score, Metadata: h.Source})
	}
	return matches, nil
}

func buildKNNQuery(vector []float32, topK int) map[string]any {
	return map[string]any{
		"knn": map[string]any{
			"field":          VectorField,
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": max(100, topK*10),
		},
		"_source": map[string]any{"excludes": []string{VectorField}},
		"size":    topK,
	}
}

// Ping checks whether the cluster is reachable.
func (idx *Index) Ping(ctx context.Context) error {
	res, err := idx.client.Ping(idx.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func decodeError(body io.Reader, status string) string {
	var errResp errorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return errResp.Error.Type + ": " + errResp.Error.Reason
	}
	return "unexpected status " + status
}
