package models

import (
	"errors"
	"strings"
	"time"
)

// ChatMessage is one entry of the inbound conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// ChatRequest is the inbound body for a chat turn. Messages carries the
// conversation so far with the new user message last; clients that keep no
// local history send a single user message and the server fills in context
// from the stored transcript.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversation_id,omitempty"`
	// Model optionally overrides the model selection for this turn; an
	// empty value means the server default. Credentials are owned by the
	// model runtime and never travel in the request.
	Model string `json:"model,omitempty"`
}

// Prompt returns the new user message and the history preceding it. The
// trailing entry must be a user message with non-blank content.
func (r ChatRequest) Prompt() (string, []ChatMessage, error) {
	if len(r.Messages) == 0 {
		return "", nil, errors.New("messages are required")
	}
	last := r.Messages[len(r.Messages)-1]
	content := strings.TrimSpace(last.Content)
	if last.Role != RoleUser || content == "" {
		return "", nil, errors.New("the last message must be a user message with content")
	}
	return content, r.Messages[:len(r.Messages)-1], nil
}

// ChatResponse is the outbound body for a completed chat turn.
type ChatResponse struct {
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	ToolCalls      int       `json:"tool_calls"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSummary is the list-view shape of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToSummary converts a Conversation to its list-view shape.
func (c *Conversation) ToSummary() *ConversationSummary {
	return &ConversationSummary{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ErrorResponse is the uniform API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
