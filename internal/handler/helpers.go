package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/studyhall/internal/session"
	"github.com/dukerupert/studyhall/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// writeDomainError maps domain failures onto the HTTP taxonomy. Anything not
// in the taxonomy is an internal error and surfaces without detail.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, store.ErrNotMember):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not a member"})
	case errors.Is(err, session.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, session.ErrSelfRemoval):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot remove yourself"})
	case errors.Is(err, store.ErrInviteNotFound):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite invalid"})
	case errors.Is(err, store.ErrInviteExpired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite expired"})
	case errors.Is(err, store.ErrInviteRevoked):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite revoked"})
	case errors.Is(err, store.ErrInviteExhausted):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite exhausted"})
	case errors.Is(err, store.ErrSessionFull):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session full"})
	case errors.Is(err, store.ErrSessionEnded):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session ended"})
	default:
		return false
	}
	return true
}
