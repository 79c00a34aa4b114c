package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/model"
	"github.com/dukerupert/studyhall/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewSessionHandler(m *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{manager: m, logger: logger}
}

type createSessionRequest struct {
	ContentID            string `json:"content_id"`
	MaxMembers           int    `json:"max_members"`
	SourceConversationID string `json:"source_conversation_id,omitempty"`
}

type createSessionResponse struct {
	SessionID  int64      `json:"session_id"`
	Code       string     `json:"code"`
	InviteLink string     `json:"invite_link"`
	Token      string     `json:"token"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	MaxMembers int        `json:"max_members"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.ContentID = strings.TrimSpace(req.ContentID)
	if req.ContentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content_id is required"})
		return
	}
	if req.MaxMembers != 0 && (req.MaxMembers < model.MinMembers || req.MaxMembers > model.MaxMembers) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_members must be between 2 and 50"})
		return
	}

	result, err := h.manager.Create(r.Context(), identity.UserID, identity.DisplayName, identity.AvatarURL, req.ContentID, session.CreateOptions{
		MaxMembers:           req.MaxMembers,
		SourceConversationID: req.SourceConversationID,
	})
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("create session", "user_id", identity.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:  result.Session.ID,
		Code:       result.Session.Code,
		InviteLink: result.InviteLink,
		Token:      result.Invite.Token,
		ExpiresAt:  result.Invite.ExpiresAt,
		MaxMembers: result.Session.MaxMembers,
	})
}

type joinRequest struct {
	Token string `json:"token"`
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	result, err := h.manager.Join(identity.UserID, identity.DisplayName, identity.AvatarURL, req.Token)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("join session", "user_id", identity.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to join session"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	detail, err := h.manager.GetDetail(identity.UserID, id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("session detail", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.manager.Leave(identity.UserID, id); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("leave session", "session_id", id, "user_id", identity.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to leave session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.manager.End(identity.UserID, id); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("end session", "session_id", id, "user_id", identity.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to end session"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

func (h *SessionHandler) Members(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	members, err := h.manager.Members(identity.UserID, id)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("list members", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list members"})
		return
	}
	if members == nil {
		members = []model.Member{}
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *SessionHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	targetID, err := parseIDParam(r, "user_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	if err := h.manager.RemoveMember(identity.UserID, id, targetID); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("remove member", "session_id", id, "target_id", targetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove member"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"removed": true, "user_id": targetID})
}
