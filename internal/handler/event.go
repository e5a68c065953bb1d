package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pingpanda/pingpanda/internal/handler/dto"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/service"
)

// IngestAPI appends events.
type IngestAPI interface {
	Ingest(ctx context.Context, userID string, input service.IngestEventInput) (*model.Event, error)
}

var _ IngestAPI = (*service.EventService)(nil)

// EventHandler handles event ingestion.
type EventHandler struct {
	svc    IngestAPI
	logger *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(svc IngestAPI, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// Ingest handles POST /api/v1/events.
func (h *EventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.IngestEventRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	event, err := h.svc.Ingest(r.Context(), userID, service.IngestEventInput{
		Category: req.Category,
		Fields:   req.Fields,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.IngestEventResponse{
		Message:        "Event accepted",
		EventID:        event.ID,
		DeliveryStatus: event.DeliveryStatus,
	})
}
