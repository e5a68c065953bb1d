package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/service"
)

// AccountAPI exposes the caller's account and key rotation.
type AccountAPI interface {
	GetAccount(ctx context.Context, userID string) (*service.Account, error)
	RotateAPIKey(ctx context.Context, ac *model.AuthContext) (*model.APIKeyRotateResponse, error)
}

var _ AccountAPI = (*service.AccountService)(nil)

// AccountHandler handles account endpoints.
type AccountHandler struct {
	svc    AccountAPI
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc AccountAPI, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/account.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	account, err := h.svc.GetAccount(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// RotateAPIKey handles POST /api/v1/account/api-key.
// The plaintext key appears in this response only.
func (h *AccountHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.RotateAPIKey(r.Context(), auth.AuthFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
