package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/httputil"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/validator"
)

// StatusMessage is the body of GET /api.
const StatusMessage = "Product Recommendation API is running."

// Recommender is the recommendation use case served over HTTP.
type Recommender interface {
	Recommend(ctx context.Context, prompt string) ([]domain.Recommendation, error)
	Recent(ctx context.Context, limit int) ([]domain.QueryLog, error)
}

// AnalyticsProvider returns the pre-computed analytics document.
type AnalyticsProvider interface {
	Summary(ctx context.Context) (json.RawMessage, error)
}

// QueryRequest is the JSON request body of POST /api/recommend.
type QueryRequest struct {
	Prompt *string `json:"prompt" validate:"required"`
}

// StatusResponse is the JSON body of GET /api.
type StatusResponse struct {
	Message string `json:"message"`
}

// AdvisorHandler handles HTTP requests for the advisor API.
type AdvisorHandler struct {
	recommender Recommender
	analytics   AnalyticsProvider
	logger      *slog.Logger
}

// NewAdvisorHandler creates a new advisor HTTP handler.
func NewAdvisorHandler(rec Recommender, analytics AnalyticsProvider, logger *slog.Logger) *AdvisorHandler {
	return &AdvisorHandler{
		recommender: rec,
		analytics:   analytics,
		logger:      logger,
	}
}

// Status handles GET /api
func (h *AdvisorHandler) Status(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Message: StatusMessage})
}

// Analytics handles GET /api/analytics
func (h *AdvisorHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	doc, err := h.analytics.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteRawJSON(w, http.StatusOK, doc)
}

// Recommend handles POST /api/recommend
func (h *AdvisorHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	recs, err := h.recommender.Recommend(r.Context(), *req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

// Recent handles GET /api/recommendations/recent
func (h *AdvisorHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "INVALID_PARAMETER",
					Message: "limit must be a positive integer",
				},
			})
			return
		}
		limit = n
	}

	logs, err := h.recommender.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: logs})
}

// writeError maps service errors onto the API's status codes: connection
// failures become 503, client errors keep their status and everything else
// is a 500 that echoes the cause.
func (h *AdvisorHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch status := apperrors.HTTPStatus(err); {
	case apperrors.IsUnavailable(err):
		err = apperrors.ServiceUnavailable(err)
	case status < http.StatusInternalServerError:
	default:
		err = apperrors.Unexpected(err)
	}
	httputil.WriteError(w, r, err, h.logger)
}
