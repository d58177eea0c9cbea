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

// GetTeam retrieves a team by id, or (nil, nil).
func (d *Database) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

// CreateTeam inserts a new team.
func (d *Database) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now
	if err := d.db.WithContext(ctx).Create(team).Error; err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// ListTeamMembers returns all members of a team in join order.
func (d *Database) ListTeamMembers(ctx context.Context, teamID string) ([]*models.TeamMember, error) {
	var members []*models.TeamMember
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

// GetTeamMember returns the membership row for (team, user), or (nil, nil).
func (d *Database) GetTeamMember(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	return &member, nil
}

// GetTeamMemberByEmail returns the member with the given email,
// case-insensitive, or (nil, nil).
func (d *Database) GetTeamMemberByEmail(ctx context.Context, teamID, email string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(user_email) = LOWER(?)", teamID, email).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member by email: %w", err)
	}
	return &member, nil
}

// AddTeamMember inserts a team membership row.
func (d *Database) AddTeamMember(ctx context.Context, member *models.TeamMember) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	member.CreatedAt = time.Now()
	if err := d.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// RemoveTeamMember deletes a team membership row along with the user's
// project memberships within the team.
func (d *Database) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND project_id IN (?)",
			userID,
			tx.Model(&models.Project{}).Select("id").Where("team_id = ?", teamID),
		).Delete(&models.ProjectMember{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove project memberships: %w", err)
		}

		result := tx.Where("team_id = ? AND user_id = ?", teamID, userID).
			Delete(&models.TeamMember{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove team member: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("team member not found")
		}
		return nil
	})
}

// CountTeamMembers returns the number of members in a team.
func (d *Database) CountTeamMembers(ctx context.Context, teamID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}
