package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pingpanda/pingpanda/internal/analytics"
	"github.com/pingpanda/pingpanda/internal/handler/dto"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/service"
)

// CategoryAPI is the category registry as seen by HTTP handlers.
type CategoryAPI interface {
	ListCategories(ctx context.Context, userID string) ([]*model.CategorySummary, error)
	CreateCategory(ctx context.Context, userID string, input service.CreateCategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, userID, name string) error
	Quickstart(ctx context.Context, userID string) (int, error)
	Poll(ctx context.Context, userID, name string) (bool, error)
}

// EventQueryAPI serves paginated event reads.
type EventQueryAPI interface {
	ListEvents(ctx context.Context, userID string, input service.ListEventsInput) (*model.EventPage, error)
}

// AnalyticsAPI serves windowed aggregates.
type AnalyticsAPI interface {
	Aggregate(ctx context.Context, userID string, input service.AnalyticsInput) (*analytics.Result, error)
}

var (
	_ CategoryAPI   = (*service.CategoryService)(nil)
	_ EventQueryAPI = (*service.QueryService)(nil)
	_ AnalyticsAPI  = (*service.AnalyticsService)(nil)
)

// CategoryHandler handles HTTP requests for categories and their reads.
type CategoryHandler struct {
	categories CategoryAPI
	queries    EventQueryAPI
	analytics  AnalyticsAPI
	logger     *slog.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categories CategoryAPI, queries EventQueryAPI, analytics AnalyticsAPI, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		queries:    queries,
		analytics:  analytics,
		logger:     logger,
	}
}

// List handles GET /api/v1/categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	summaries, err := h.categories.ListCategories(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCategoryListResponse(summaries))
}

// Create handles POST /api/v1/categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.CreateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	cat, err := h.categories.CreateCategory(r.Context(), userID, service.CreateCategoryInput{
		Name:  req.Name,
		Color: req.Color,
		Emoji: req.Emoji,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToCategoryResponse(cat))
}

// Delete handles DELETE /api/v1/categories/{name}.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.categories.DeleteCategory(r.Context(), userID, name); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Quickstart handles POST /api/v1/categories/quickstart.
func (h *CategoryHandler) Quickstart(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	count, err := h.categories.Quickstart(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QuickstartResponse{Success: true, Count: count})
}

// Poll handles GET /api/v1/categories/{name}/poll.
func (h *CategoryHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	hasEvents, err := h.categories.Poll(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PollResponse{HasEvents: hasEvents})
}

// Events handles GET /api/v1/categories/{name}/events.
func (h *CategoryHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := service.ListEventsInput{
		Category: chi.URLParam(r, "name"),
		Range:    model.TimeRange(query.Get("range")),
	}

	var err error
	if input.Page, err = intParam(query.Get("page"), 1); err != nil {
		handleServiceError(w, r, h.logger, service.NewValidationError("page", "must be an integer"))
		return
	}
	if input.Limit, err = intParam(query.Get("limit"), service.DefaultPageLimit); err != nil {
		handleServiceError(w, r, h.logger, service.NewValidationError("limit", "must be an integer"))
		return
	}
	if input.Range == "" {
		input.Range = model.RangeToday
	}

	page, err := h.queries.ListEvents(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToEventPageResponse(page, input.Page, input.Limit, input.Range))
}

// Analytics handles GET /api/v1/categories/{name}/analytics.
func (h *CategoryHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	result, err := h.analytics.Aggregate(r.Context(), userID, service.AnalyticsInput{
		Category: chi.URLParam(r, "name"),
		Range:    model.TimeRange(r.URL.Query().Get("range")),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter. Only an absent
// parameter takes the fallback; explicit values are left to validation.
func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
