package handlers

import (
	"net/http"

	"github.com/lodestar-hq/lodestar/internal/models"
)

// ListInvitations handles GET /api/v1/teams/{teamID}/invitations
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("teamID")
	if _, ok := h.requireMember(w, r, teamID); !ok {
		return
	}

	invitations, err := h.db.ListInvitations(r.Context(), teamID)
	if err != nil {
		h.logger.Error("Failed to list invitations", "team_id", teamID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to list invitations")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]any{
		"invitations": invitations,
		"count":       len(invitations),
	})
}

// ListTeamMembers handles GET /api/v1/teams/{teamID}/members
func (h *Handler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("teamID")
	if _, ok := h.requireMember(w, r, teamID); !ok {
		return
	}

	members, err := h.db.ListTeamMembers(r.Context(), teamID)
	if err != nil {
		h.logger.Error("Failed to list team members", "team_id", teamID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to list team members")
		return
	}

	if members == nil {
		members = []*models.TeamMember{}
	}
	h.sendJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}
