package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/studyhall/internal/auth"
)

// RequireAuth validates the bearer credential and populates the request
// context with the verified identity. The credential is validated once here,
// never re-checked downstream.
func RequireAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := bearerToken(r)
			if credential == "" {
				unauthorized(w)
				return
			}

			identity, err := verifier.Verify(credential)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// No detail about why validation failed leaks to the client.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
