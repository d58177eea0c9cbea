// Package handlers contains the HTTP handlers for the REST API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lodestar-hq/lodestar/internal/assistant"
	"github.com/lodestar-hq/lodestar/internal/auth"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

// Handler contains all HTTP handlers.
type Handler struct {
	db        *storage.Database
	assistant *assistant.Client
	logger    *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(db *storage.Database, assistantClient *assistant.Client, logger *slog.Logger) *Handler {
	return &Handler{
		db:        db,
		assistant: assistantClient,
		logger:    logger,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// requireMember resolves the authenticated user's membership in the
// path team. A non-member gets a 404 so team existence is not leaked.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, teamID string) (assistant.Actor, bool) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok || user == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return assistant.Actor{}, false
	}

	member, err := h.db.GetTeamMember(r.Context(), teamID, user.ID)
	if err != nil {
		h.logger.Error("Failed to resolve team membership", "team_id", teamID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to resolve team membership")
		return assistant.Actor{}, false
	}
	if member == nil {
		h.sendError(w, http.StatusNotFound, "Team not found")
		return assistant.Actor{}, false
	}

	return assistant.Actor{
		UserID:   member.UserID,
		UserName: member.UserName,
		Role:     member.Role,
	}, true
}

// sendJSON sends a JSON response
func (h *Handler) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, map[string]string{"error": message})
}
