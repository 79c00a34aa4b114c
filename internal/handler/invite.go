package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/model"
	"github.com/dukerupert/studyhall/internal/session"
	"github.com/dukerupert/studyhall/internal/store"
)

type InviteHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewInviteHandler(m *session.Manager, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{manager: m, logger: logger}
}

type createInviteRequest struct {
	ExpiresInHours int `json:"expires_in_hours,omitempty"`
	MaxUses        int `json:"max_uses,omitempty"`
}

type inviteResponse struct {
	Token      string     `json:"token"`
	InviteLink string     `json:"invite_link"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	MaxUses    int        `json:"max_uses"`
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	// An empty body means default limits (unlimited, non-expiring).
	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.ExpiresInHours < 0 || req.MaxUses < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limits must be non-negative"})
		return
	}

	inv, link, err := h.manager.CreateInvite(identity.UserID, id, store.CreateOptions{
		ExpiresIn: time.Duration(req.ExpiresInHours) * time.Hour,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("create invite", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create invite"})
		return
	}

	writeJSON(w, http.StatusCreated, inviteResponse{
		Token:      inv.Token,
		InviteLink: link,
		ExpiresAt:  inv.ExpiresAt,
		MaxUses:    inv.MaxUses,
	})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	invites, err := h.manager.ListInvites(identity.UserID, id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("list invites", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list invites"})
		return
	}
	if invites == nil {
		invites = []model.Invite{}
	}

	writeJSON(w, http.StatusOK, invites)
}

// Revoke marks an invite unusable. Rows are never deleted, so DELETE on an
// invite means revocation.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	token := r.PathValue("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	if err := h.manager.RevokeInvite(identity.UserID, token); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("revoke invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revoke invite"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *InviteHandler) Reset(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	inv, link, err := h.manager.ResetInvites(identity.UserID, id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("reset invites", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset invites"})
		return
	}

	writeJSON(w, http.StatusOK, inviteResponse{
		Token:      inv.Token,
		InviteLink: link,
		ExpiresAt:  inv.ExpiresAt,
		MaxUses:    inv.MaxUses,
	})
}
