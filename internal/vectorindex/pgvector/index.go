// Package pgvector ranks product embeddings stored in PostgreSQL by cosine
// distance.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/database"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// Index is a vectorindex.Index over a table of
// (id TEXT, embedding vector(N), metadata JSONB).
type Index struct {
	db    database.DBTX
	table string
	dims  int
	query string
}

// New returns an index over table. The table name is quoted as an
// identifier.
func New(db database.DBTX, table string, dims int) *Index {
	ident := pgx.Identifier{table}.Sanitize()
	return &Index{
		db:    db,
		table: ident,
		dims:  dims,
		query: fmt.Sprintf(
			`SELECT id, metadata, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 LIMIT $2`,
			ident,
		),
	}
}

// SchemaStatements returns the DDL that creates the extension, the table
// and its HNSW index. It is idempotent.
func SchemaStatements(table string, dims int) []string {
	ident := pgx.Identifier{table}.Sanitize()
	hnsw := pgx.Identifier{table + "_embedding_hnsw"}.Sanitize()
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id         TEXT PRIMARY KEY,
    embedding  vector(%d) NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, ident, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, hnsw, ident),
	}
}

// EnsureSchema runs SchemaStatements. It must run before a pool with
// pgvector type registration connects.
func EnsureSchema(ctx context.Context, db database.DBTX, table string, dims int) error {
	for _, stmt := range SchemaStatements(table, dims) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector schema: %w", err)
		}
	}
	return nil
}

// Query returns the topK rows nearest to vector.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) (matches []domain.Match, err error) {
	if err := vectorindex.CheckDimensions(vector, idx.dims); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	ctx, end := database.TraceQuery(ctx, "QueryProductEmbeddings", idx.query)
	defer func() { end(err) }()

	rows, err := idx.db.Query(ctx, idx.query, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	matches = make([]domain.Match, 0, topK)
	for rows.Next() {
		var (
			id    string
			raw   []byte
			score float64
		)
		if err := rows.Scan(&id, &raw, &score); err != nil {
			return nil, fmt.Errorf("scan product embedding: %w", err)
		}
		m := domain.Match{ID: id, Score: float32(score)}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return matches, nil
}

// Ping runs a trivial query.
func (idx *Index) Ping(ctx context.Context) error {
	var one int
	if err := idx.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("pgvector ping: %w", err)
	}
	return nil
}

func classify(err error) error {
	if database.IsConnectionError(err) {
		return apperrors.Unavailable("pgvector", err.Error())
	}
	return fmt.Errorf("pgvector query: %w", err)
}
