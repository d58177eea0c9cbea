package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lodestar-hq/lodestar/internal/models"
)

// Chat handles POST /api/v1/teams/{teamID}/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("teamID")
	actor, ok := h.requireMember(w, r, teamID)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, _, err := req.Prompt(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.assistant.HandleChat(r.Context(), teamID, actor, req)
	if err != nil {
		h.logger.Error("Chat turn failed", "team_id", teamID, "error", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("X-Conversation-ID", resp.ConversationID)
	h.sendJSON(w, http.StatusOK, resp)
}

// ListConversations handles GET /api/v1/teams/{teamID}/conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("teamID")
	actor, ok := h.requireMember(w, r, teamID)
	if !ok {
		return
	}

	conversations, err := h.db.ListConversations(r.Context(), teamID, actor.UserID)
	if err != nil {
		h.logger.Error("Failed to list conversations", "team_id", teamID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	summaries := make([]*models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, conv.ToSummary())
	}
	h.sendJSON(w, http.StatusOK, map[string]any{
		"conversations": summaries,
		"count":         len(summaries),
	})
}

// GetConversation handles GET /api/v1/teams/{teamID}/conversations/{conversationID}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("teamID")
	conversationID := r.PathValue("conversationID")
	actor, ok := h.requireMember(w, r, teamID)
	if !ok {
		return
	}

	conv, err := h.db.GetConversation(r.Context(), teamID, conversationID)
	if err != nil {
		h.logger.Error("Failed to get conversation", "conversation_id", conversationID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}
	if conv == nil || conv.UserID != actor.UserID {
		h.sendError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	messages, err := h.db.GetConversationMessages(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("Failed to get conversation messages", "conversation_id", conversationID, "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to get conversation messages")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}
