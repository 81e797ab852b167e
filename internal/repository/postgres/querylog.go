package postgres

import (
	"context"
	"fmt"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/repository"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/database"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

const (
	insertQueryLog = `
		INSERT INTO query_logs (id, prompt, variant, product_ids, fallbacks, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectRecentQueryLogs = `
		SELECT id, prompt, variant, product_ids, fallbacks, latency_ms, created_at
		FROM query_logs
		ORDER BY created_at DESC
		LIMIT $1`
)

// QueryLogRepository implements repository.QueryLogRepository using PostgreSQL.
type QueryLogRepository struct {
	db database.DBTX
}

var _ repository.QueryLogRepository = (*QueryLogRepository)(nil)

// NewQueryLogRepository creates a PostgreSQL-backed query log repository.
func NewQueryLogRepository(db database.DBTX) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Save inserts a query log.
func (r *QueryLogRepository) Save(ctx context.Context, l *domain.QueryLog) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveQueryLog", insertQueryLog)
	defer func() { end(err) }()

	productIDs := l.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}
	_, err = r.db.Exec(ctx, insertQueryLog,
		l.ID,
		l.Prompt,
		string(l.Variant),
		productIDs,
		l.Fallbacks,
		l.LatencyMs,
		l.CreatedAt,
	)
	if err != nil {
		return wrap(err, "insert query log")
	}
	return nil
}

// Recent returns the newest logs first.
func (r *QueryLogRepository) Recent(ctx context.Context, limit int) (logs []domain.QueryLog, err error) {
	ctx, end := database.TraceQuery(ctx, "RecentQueryLogs", selectRecentQueryLogs)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectRecentQueryLogs, repository.ClampLimit(limit))
	if err != nil {
		return nil, wrap(err, "list query logs")
	}
	defer rows.Close()

	logs = []domain.QueryLog{}
	for rows.Next() {
		var (
			l       domain.QueryLog
			variant string
		)
		if err := rows.Scan(&l.ID, &l.Prompt, &variant, &l.ProductIDs, &l.Fallbacks, &l.LatencyMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		l.Variant = domain.Variant(variant)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "iterate query logs")
	}
	return logs, nil
}

// wrap marks connectivity failures as connection-kind errors.
func wrap(err error, action string) error {
	if database.IsConnectionError(err) {
		return apperrors.Unavailable("postgres", err.Error())
	}
	return fmt.Errorf("%s: %w", action, err)
}
