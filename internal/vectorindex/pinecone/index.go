// Package pinecone queries a hosted Pinecone index.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// Config selects the index to query.
type Config struct {
	APIKey    string
	IndexName string
	// Host skips the DescribeIndex lookup when set.
	Host      string
	Namespace string
	// Dimensions rejects query vectors of another length when positive.
	Dimensions int
}

// Conn is the part of *pinecone.IndexConnection the index uses.
type Conn interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// Index is a vectorindex.Index backed by Pinecone.
type Index struct {
	conn   Conn
	name   string
	dims   int
	logger *slog.Logger
}

// New resolves the index host and opens a data-plane connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}

	host := cfg.Host
	if host == "" {
		desc, err := client.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone: describe index %s: %w", cfg.IndexName, err)
		}
		host = desc.Host
	}

	conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect to %s: %w", host, err)
	}

	logger.Info("pinecone index connected",
		slog.String("index", cfg.IndexName),
		slog.String("host", host),
	)
	return NewWithConn(conn, cfg.IndexName, cfg.Dimensions, logger), nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(conn Conn, name string, dims int, logger *slog.Logger) *Index {
	return &Index{conn: conn, name: name, dims: dims, logger: logger}
}

// Query returns the topK nearest vectors with their metadata.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if err := vectorindex.CheckDimensions(vector, idx.dims); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	resp, err := idx.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK), // #nosec G115 -- topK is bounded by config validation
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, idx.classify(err)
	}

	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, sv := range resp.Matches {
		if sv == nil || sv.Vector == nil {
			continue
		}
		m := domain.Match{ID: sv.Vector.Id, Score: sv.Score}
		if sv.Vector.Metadata != nil {
			m.Metadata = sv.Vector.Metadata.AsMap()
		}
		matches = append(matches, m)
	}
	idx.logger.DebugContext(ctx, "pinecone query",
		slog.String("index", idx.name),
		slog.Int("matches", len(matches)),
	)
	return matches, nil
}

// Ping asks the index for its stats.
func (idx *Index) Ping(ctx context.Context) error {
	if _, err := idx.conn.DescribeIndexStats(ctx); err != nil {
		return idx.classify(err)
	}
	return nil
}

// Close releases the gRPC connection.
func (idx *Index) Close() error {
	return idx.conn.Close()
}

// classify marks transport-level gRPC failures as connection-kind errors.
func (idx *Index) classify(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return apperrors.Unavailable("pinecone "+idx.name, err.Error())
	default:
		return fmt.Errorf("pinecone query %s: %w", idx.name, err)
	}
}
