// Package api wires the HTTP routes and middleware for the REST surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/lodestar-hq/lodestar/internal/api/handlers"
	"github.com/lodestar-hq/lodestar/internal/assistant"
	"github.com/lodestar-hq/lodestar/internal/auth"
	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

// Server holds the API dependencies and builds the router.
type Server struct {
	config     *config.Config
	db         *storage.Database
	assistant  *assistant.Client
	middleware *auth.Middleware
	logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, db *storage.Database, assistantClient *assistant.Client, middleware *auth.Middleware, logger *slog.Logger) *Server {
	return &Server{
		config:     cfg,
		db:         db,
		assistant:  assistantClient,
		middleware: middleware,
		logger:     logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	h := handlers.NewHandler(s.db, s.assistant, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	authed := func(fn http.HandlerFunc) http.Handler {
		return s.middleware.RequireAuth(fn)
	}
	mux.Handle("POST /api/v1/teams/{teamID}/chat", authed(h.Chat))
	mux.Handle("GET /api/v1/teams/{teamID}/conversations", authed(h.ListConversations))
	mux.Handle("GET /api/v1/teams/{teamID}/conversations/{conversationID}", authed(h.GetConversation))
	mux.Handle("GET /api/v1/teams/{teamID}/invitations", authed(h.ListInvitations))
	mux.Handle("GET /api/v1/teams/{teamID}/members", authed(h.ListTeamMembers))

	return mux
}
