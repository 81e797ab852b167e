package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/logger"
)

// AnalyticsSource supplies the pre-computed analytics document.
type AnalyticsSource interface {
	Summary(ctx context.Context) (json.RawMessage, error)
}

// AnalyticsService serves the analytics summary.
type AnalyticsService struct {
	source AnalyticsSource
	logger *slog.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(source AnalyticsSource, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{source: source, logger: logger}
}

// Summary returns the analytics document verbatim.
func (s *AnalyticsService) Summary(ctx context.Context) (json.RawMessage, error) {
	doc, err := s.source.Summary(ctx)
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "analytics unavailable",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return doc, nil
}
