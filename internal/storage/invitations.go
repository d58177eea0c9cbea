package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lodestar-hq/lodestar/internal/models"
	"gorm.io/gorm"
)

// GetInvitationByEmail returns the invitation for (team, email),
// case-insensitive on email, or (nil, nil).
func (d *Database) GetInvitationByEmail(ctx context.Context, teamID, email string) (*models.Invitation, error) {
	var inv models.Invitation
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(email) = ?", teamID, strings.ToLower(email)).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

// UpsertInvitation creates the invitation or, when a non-blocking row for the
// same (team, email) exists, overwrites it in place. A pending and unexpired
// invitation must be checked by the caller before this is reached; the upsert
// itself replaces unconditionally so expired and accepted rows are reusable.
func (d *Database) UpsertInvitation(ctx context.Context, inv *models.Invitation) error {
	existing, err := d.GetInvitationByEmail(ctx, inv.TeamID, inv.Email)
	if err != nil {
		return err
	}

	if existing == nil {
		if inv.ID == "" {
			inv.ID = uuid.New().String()
		}
		inv.CreatedAt = time.Now()
		if err := d.db.WithContext(ctx).Create(inv).Error; err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		return nil
	}

	inv.ID = existing.ID
	inv.CreatedAt = time.Now()
	updates := map[string]any{
		"role":       inv.Role,
		"status":     inv.Status,
		"invited_by": inv.InvitedBy,
		"expires_at": inv.ExpiresAt,
		"created_at": inv.CreatedAt,
	}
	err = d.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to overwrite invitation: %w", err)
	}
	return nil
}

// UpdateInvitation applies a partial update by column name.
func (d *Database) UpdateInvitation(ctx context.Context, id string, updates map[string]any) error {
	result := d.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("invitation not found: %s", id)
	}
	return nil
}

// DeleteInvitation removes an invitation by id.
func (d *Database) DeleteInvitation(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invitation{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("invitation not found: %s", id)
	}
	return nil
}

// ListInvitations returns a team's invitations, newest first.
func (d *Database) ListInvitations(ctx context.Context, teamID string) ([]*models.Invitation, error) {
	var invitations []*models.Invitation
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// AcceptInvitation marks a pending invitation accepted and creates the team
// membership in one transaction.
func (d *Database) AcceptInvitation(ctx context.Context, invitationID, userID, userName string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		if err := tx.Where("id = ?", invitationID).First(&inv).Error; err != nil {
			return fmt.Errorf("invitation not found: %w", err)
		}
		if inv.Status != models.InvitationPending {
			return fmt.Errorf("invitation is not pending")
		}
		if inv.IsExpired() {
			return fmt.Errorf("invitation has expired")
		}

		err := tx.Model(&inv).Update("status", models.InvitationAccepted).Error
		if err != nil {
			return fmt.Errorf("failed to accept invitation: %w", err)
		}

		member := models.TeamMember{
			ID:        uuid.New().String(),
			TeamID:    inv.TeamID,
			UserID:    userID,
			UserName:  userName,
			UserEmail: inv.Email,
			Role:      inv.Role,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("failed to create team member: %w", err)
		}
		return nil
	})
}
