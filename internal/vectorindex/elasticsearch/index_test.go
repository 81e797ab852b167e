package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// fakeCluster answers the handful of endpoints the index touches. The
// product header is required by the client's product check.
type fakeCluster struct {
	indexExists bool
	created     string
	searchBody  map[string]any
	searchCode  int
	searchResp  string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/products":
		if !f.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/products":
		raw, _ := io.ReadAll(r.Body)
		f.created = string(raw)
		f.indexExists = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.NewDecoder(r.Body).Decode(&f.searchBody)
		if f.searchCode != 0 {
			w.WriteHeader(f.searchCode)
		}
		_, _ = w.Write([]byte(f.searchResp))
	case r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"8.15.0"},"tagline":"You Know, for Search"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestIndex(t *testing.T, f *fakeCluster, dims int) *Index {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	idx, err := New(context.Background(), srv.URL, "products", dims, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return idx
}

func TestNew_CreatesIndexWithVectorMapping(t *testing.T) {
	f := &fakeCluster{}
	newTestIndex(t, f, 512)

	require.NotEmpty(t, f.created)
	var mapping map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.created), &mapping))
	props := mapping["mappings"].(map[string]any)["properties"].(map[string]any)
	emb := props["embedding"].(map[string]any)
	assert.Equal(t, "dense_vector", emb["type"])
	assert.Equal(t, float64(512), emb["dims"])
	assert.Equal(t, "cosine", emb["similarity"])
}

func TestNew_ExistingIndexUntouched(t *testing.T) {
	f := &fakeCluster{indexExists: true}
	newTestIndex(t, f, 512)
	assert.Empty(t, f.created)
}

func TestQuery_KNN(t *testing.T) {
	f := &fakeCluster{indexExists: true, searchResp: `{"hits":{"hits":[
		{"_id":"p1","_score":0.97,"_source":{"title":"Rattan Chair","brand":"Sunny","embedding":[1,2]}},
		{"_id":"p2","_score":0.88,"_source":{"title":"Teak Bench"}}
	]}}`}
	idx := newTestIndex(t, f, 2)

	matches, err := idx.Query(context.Background(), []float32{0.5, 0.5}, 3)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "p1", matches[0].ID)
	assert.InDelta(t, 0.97, matches[0].Score, 1e-6)
	assert.Equal(t, "Rattan Chair", matches[0].Metadata["title"])
	assert.NotContains(t, matches[0].Metadata, "embedding")

	knn := f.searchBody["knn"].(map[string]any)
	assert.Equal(t, "embedding", knn["field"])
	assert.Equal(t, float64(3), knn["k"])
	assert.Equal(t, float64(100), knn["num_candidates"])
	assert.Equal(t, float64(3), f.searchBody["size"])
}

func TestQuery_Errors(t *testing.T) {
	f := &fakeCluster{indexExists: true, searchCode: http.StatusBadRequest,
		searchResp: `{"error":{"type":"illegal_argument_exception","reason":"bad vector"},"status":400}`}
	idx := newTestIndex(t, f, 2)

	_, err := idx.Query(context.Background(), []float32{1, 0}, 3)
	require.Error(t, err)
	assert.False(t, apperrors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "illegal_argument_exception: bad vector")

	f.searchCode = http.StatusServiceUnavailable
	f.searchResp = `{}`
	_, err = idx.Query(context.Background(), []float32{1, 0}, 3)
	assert.True(t, apperrors.IsUnavailable(err))

	_, err = idx.Query(context.Background(), []float32{1}, 3)
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
}

func TestPing(t *testing.T) {
	idx := newTestIndex(t, &fakeCluster{indexExists: true}, 2)
	assert.NoError(t, idx.Ping(context.Background()))
}

func TestBuildKNNQuery_CandidatesScaleWithK(t *testing.T) {
	q := buildKNNQuery([]float32{1}, 20)
	assert.Equal(t, 200, q["knn"].(map[string]any)["num_candidates"])
}
