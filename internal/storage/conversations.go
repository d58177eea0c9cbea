package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lodestar-hq/lodestar/internal/models"
	"gorm.io/gorm"
)

// CreateConversation inserts a new conversation.
func (d *Database) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if err := d.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by id within a team, or (nil, nil).
func (d *Database) GetConversation(ctx context.Context, teamID, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, id).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns a user's conversations in a team, most recently
// updated first.
func (d *Database) ListConversations(ctx context.Context, teamID, userID string) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// AppendMessages persists a batch of transcript messages and bumps the
// conversation's updated_at.
func (d *Database) AppendMessages(ctx context.Context, conversationID string, messages []*models.ConversationMessage) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, msg := range messages {
			msg.ConversationID = conversationID
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = time.Now()
			}
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("failed to append message: %w", err)
			}
		}
		err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now()).Error
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
}

// GetConversationMessages returns a conversation's transcript in order.
func (d *Database) GetConversationMessages(ctx context.Context, conversationID string) ([]*models.ConversationMessage, error) {
	var messages []*models.ConversationMessage
	err := d.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}
