package pinecone

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

type fakeConn struct {
	lastReq  *pinecone.QueryByVectorValuesRequest
	resp     *pinecone.QueryVectorsResponse
	queryErr error
	statsErr error
	closed   bool
}

func (f *fakeConn) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.lastReq = in
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.resp, nil
}

func (f *fakeConn) DescribeIndexStats(context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &pinecone.DescribeIndexStatsResponse{}, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQuery_MapsMatches(t *testing.T) {
	md, err := structpb.NewStruct(map[string]any{
		"title":      "Walnut Bookshelf",
		"price":      "$249.00",
		"categories": []any{"Home", "Storage"},
	})
	require.NoError(t, err)

	conn := &fakeConn{resp: &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		{Vector: &pinecone.Vector{Id: "B01", Metadata: md}, Score: 0.92},
		{Vector: &pinecone.Vector{Id: "B02"}, Score: 0.81},
		nil,
	}}}
	idx := NewWithConn(conn, "product-recommender-clip", 3, quiet())

	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2, 0.3}, 3)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "B01", matches[0].ID)
	assert.InDelta(t, 0.92, matches[0].Score, 1e-6)
	assert.Equal(t, "Walnut Bookshelf", matches[0].Metadata["title"])
	assert.Equal(t, []any{"Home", "Storage"}, matches[0].Metadata["categories"])
	assert.Nil(t, matches[1].Metadata)

	require.NotNil(t, conn.lastReq)
	assert.Equal(t, uint32(3), conn.lastReq.TopK)
	assert.True(t, conn.lastReq.IncludeMetadata)
}

func TestQuery_DimensionMismatch(t *testing.T) {
	conn := &fakeConn{}
	idx := NewWithConn(conn, "idx", 512, quiet())

	_, err := idx.Query(context.Background(), []float32{1, 2}, 3)

	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
	assert.Nil(t, conn.lastReq)
}

func TestQuery_ErrorClassification(t *testing.T) {
	unavailable := NewWithConn(&fakeConn{queryErr: status.Error(codes.Unavailable, "connection refused")}, "idx", 0, quiet())
	_, err := unavailable.Query(context.Background(), []float32{1}, 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))

	invalid := NewWithConn(&fakeConn{queryErr: status.Error(codes.InvalidArgument, "Vector dimension 2 does not match the dimension of the index 512")}, "idx", 0, quiet())
	_, err = invalid.Query(context.Background(), []float32{1}, 3)
	require.Error(t, err)
	assert.False(t, apperrors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "does not match")

	badKey := NewWithConn(&fakeConn{queryErr: status.Error(codes.Unauthenticated, "invalid API key")}, "idx", 0, quiet())
	_, err = badKey.Query(context.Background(), []float32{1}, 3)
	require.Error(t, err)
	assert.False(t, apperrors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "invalid API key")

	plain := NewWithConn(&fakeConn{queryErr: errors.New("boom")}, "idx", 0, quiet())
	_, err = plain.Query(context.Background(), []float32{1}, 3)
	assert.False(t, apperrors.IsUnavailable(err))
}

func TestPingAndClose(t *testing.T) {
	conn := &fakeConn{}
	idx := NewWithConn(conn, "idx", 0, quiet())
	assert.NoError(t, idx.Ping(context.Background()))

	conn.statsErr = status.Error(codes.DeadlineExceeded, "timeout")
	assert.True(t, apperrors.IsUnavailable(idx.Ping(context.Background())))

	require.NoError(t, idx.Close())
	assert.True(t, conn.closed)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{IndexName: "idx"}, quiet())
	assert.Error(t, err)
}
