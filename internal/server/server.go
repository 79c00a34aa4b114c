package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/content"
	"github.com/dukerupert/studyhall/internal/handler"
	"github.com/dukerupert/studyhall/internal/middleware"
	"github.com/dukerupert/studyhall/internal/realtime"
	"github.com/dukerupert/studyhall/internal/session"
	"github.com/dukerupert/studyhall/internal/store"
)

type Server struct {
	db          *sql.DB
	gateway     *realtime.Gateway
	manager     *session.Manager
	sessionH    *handler.SessionHandler
	inviteH     *handler.InviteHandler
	verifier    *auth.Verifier
	inviteStore *store.InviteStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cloner content.Cloner, verifier *auth.Verifier, baseURL string, logger *slog.Logger) *Server {
	sessionStore := store.NewSessionStore(db)
	membershipStore := store.NewMembershipStore(db)
	inviteStore := store.NewInviteStore(db)
	userStore := store.NewUserStore(db)

	gateway := realtime.NewGateway(
		realtime.NewMemoryRegistry(),
		membershipStore,
		userStore,
		verifier,
		logger.With("component", "realtime"),
	)

	manager := session.NewManager(
		sessionStore,
		membershipStore,
		inviteStore,
		userStore,
		cloner,
		gateway,
		baseURL,
		logger.With("component", "session"),
	)

	return &Server{
		db:          db,
		gateway:     gateway,
		manager:     manager,
		sessionH:    handler.NewSessionHandler(manager, logger.With("component", "session_handler")),
		inviteH:     handler.NewInviteHandler(manager, logger.With("component", "invite_handler")),
		verifier:    verifier,
		inviteStore: inviteStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Manager returns the lifecycle manager for components that push durable
// events (the message pipeline calls BroadcastMessage through the gateway).
func (s *Server) Manager() *session.Manager {
	return s.manager
}

// Gateway returns the realtime gateway.
func (s *Server) Gateway() *realtime.Gateway {
	return s.gateway
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.inviteStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The gateway performs its own credential check at the handshake.
	outerMux.HandleFunc("GET /ws", s.gateway.Handler())

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.verifier)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session lifecycle
	mux.HandleFunc("POST /api/sessions", s.rateLimitedHandler(s.sessionH.Create))
	mux.HandleFunc("GET /api/sessions/{id}", s.sessionH.Detail)
	mux.HandleFunc("POST /api/sessions/join", s.rateLimitedHandler(s.sessionH.Join))
	mux.HandleFunc("POST /api/sessions/{id}/leave", s.sessionH.Leave)
	mux.HandleFunc("POST /api/sessions/{id}/end", s.sessionH.End)

	// Membership
	mux.HandleFunc("GET /api/sessions/{id}/members", s.sessionH.Members)
	mux.HandleFunc("DELETE /api/sessions/{id}/members/{user_id}", s.sessionH.RemoveMember)

	// Invites
	mux.HandleFunc("POST /api/sessions/{id}/invites", s.inviteH.Create)
	mux.HandleFunc("GET /api/sessions/{id}/invites", s.inviteH.List)
	mux.HandleFunc("POST /api/sessions/{id}/invites/reset", s.inviteH.Reset)
	mux.HandleFunc("DELETE /api/invites/{token}", s.inviteH.Revoke)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 20, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
