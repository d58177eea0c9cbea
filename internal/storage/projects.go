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

// ErrNotProjectMember reports a removal target that is not in the project.
// Callers use it to tell a membership conflict apart from a storage failure.
var ErrNotProjectMember = errors.New("project member not found")

// CreateProject inserts a new project.
func (d *Database) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectActive
	}

	if err := d.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProjectByID retrieves a project by id, or (nil, nil).
func (d *Database) GetProjectByID(ctx context.Context, teamID, id string) (*models.Project, error) {
	var project models.Project
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, id).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

// GetProjectByKey retrieves a project by its team-scoped key,
// case-insensitive, or (nil, nil).
func (d *Database) GetProjectByKey(ctx context.Context, teamID, key string) (*models.Project, error) {
	var project models.Project
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(key) = ?", teamID, strings.ToLower(key)).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by key: %w", err)
	}
	return &project, nil
}

// GetProjects returns all projects for a team in creation order.
func (d *Database) GetProjects(ctx context.Context, teamID string) ([]*models.Project, error) {
	var projects []*models.Project
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// SearchProjectsByName returns projects whose name contains the query,
// case-insensitive, in creation order.
func (d *Database) SearchProjectsByName(ctx context.Context, teamID, query string) ([]*models.Project, error) {
	var projects []*models.Project
	pattern := "%" + strings.ToLower(query) + "%"
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(name) LIKE ?", teamID, pattern).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search projects: %w", err)
	}
	return projects, nil
}

// FindProjectByNameExact returns the project whose name equals the given
// name case-insensitively, or (nil, nil).
func (d *Database) FindProjectByNameExact(ctx context.Context, teamID, name string) (*models.Project, error) {
	var project models.Project
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(name) = ?", teamID, strings.ToLower(name)).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by name: %w", err)
	}
	return &project, nil
}

// UpdateProject applies a partial update by column name.
func (d *Database) UpdateProject(ctx context.Context, teamID, id string, updates map[string]any) error {
	updates["updated_at"] = time.Now()
	result := d.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("team_id = ? AND id = ?", teamID, id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// DeleteProject removes a project, its memberships, and detaches its issues.
func (d *Database) DeleteProject(ctx context.Context, teamID, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return fmt.Errorf("failed to delete project members: %w", err)
		}
		err := tx.Model(&models.Issue{}).
			Where("team_id = ? AND project_id = ?", teamID, id).
			Update("project_id", nil).Error
		if err != nil {
			return fmt.Errorf("failed to detach issues: %w", err)
		}
		result := tx.Where("team_id = ? AND id = ?", teamID, id).Delete(&models.Project{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete project: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("project not found: %s", id)
		}
		return nil
	})
}

// CountProjectMembers returns member counts keyed by project id for a team.
func (d *Database) CountProjectMembers(ctx context.Context, teamID string) (map[string]int, error) {
	type row struct {
		ProjectID string
		Count     int
	}
	var rows []row
	err := d.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Select("project_members.project_id AS project_id, COUNT(*) AS count").
		Joins("JOIN projects ON projects.id = project_members.project_id").
		Where("projects.team_id = ?", teamID).
		Group("project_members.project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count project members: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ProjectID] = r.Count
	}
	return counts, nil
}

// GetProjectMember returns the membership row for (project, user), or
// (nil, nil).
func (d *Database) GetProjectMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := d.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project member: %w", err)
	}
	return &member, nil
}

// AddProjectMember inserts a project membership row.
func (d *Database) AddProjectMember(ctx context.Context, member *models.ProjectMember) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	member.CreatedAt = time.Now()
	if err := d.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}
	return nil
}

// RemoveProjectMember deletes a project membership row.
func (d *Database) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	result := d.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove project member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotProjectMember
	}
	return nil
}

// ListProjectMembers returns the membership rows for a project.
func (d *Database) ListProjectMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	var members []*models.ProjectMember
	err := d.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return members, nil
}
