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

// issueNumberRetries bounds how often CreateIssue re-runs its transaction
// when concurrent creates in the same team race for the next number.
const issueNumberRetries = 5

// CreateIssue inserts a new issue, assigning the next team-scoped sequential
// number inside a transaction, and attaches any label links. Two concurrent
// transactions on postgres or sqlserver can read the same MAX(number); the
// unique index on (team_id, number) rejects the loser and the whole
// transaction is retried with a fresh read.
func (d *Database) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	now := time.Now()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	var lastErr error
	for attempt := 0; attempt < issueNumberRetries; attempt++ {
		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxNumber int
			err := tx.Model(&models.Issue{}).
				Where("team_id = ?", issue.TeamID).
				Select("COALESCE(MAX(number), 0)").
				Scan(&maxNumber).Error
			if err != nil {
				return fmt.Errorf("failed to compute issue number: %w", err)
			}
			issue.Number = maxNumber + 1

			if err := tx.Create(issue).Error; err != nil {
				return fmt.Errorf("failed to create issue: %w", err)
			}

			for _, labelID := range issue.LabelIDs {
				link := models.IssueLabel{IssueID: issue.ID, LabelID: labelID}
				if err := tx.Create(&link).Error; err != nil {
					return fmt.Errorf("failed to attach label: %w", err)
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("failed to assign issue number after %d attempts: %w", issueNumberRetries, lastErr)
}

// GetIssueByID retrieves a single issue with its label ids, or (nil, nil)
// when no row exists.
func (d *Database) GetIssueByID(ctx context.Context, teamID, id string) (*models.Issue, error) {
	var issue models.Issue
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND id = ?", teamID, id).
		First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	if err := d.loadLabelIDs(ctx, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssues returns all issues for a team ordered by number.
func (d *Database) GetIssues(ctx context.Context, teamID string) ([]*models.Issue, error) {
	var issues []*models.Issue
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("number ASC").
		Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

// SearchIssuesByTitle returns issues whose title contains the query,
// case-insensitive, ordered by number.
func (d *Database) SearchIssuesByTitle(ctx context.Context, teamID, query string) ([]*models.Issue, error) {
	var issues []*models.Issue
	pattern := "%" + strings.ToLower(query) + "%"
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(title) LIKE ?", teamID, pattern).
		Order("number ASC").
		Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	return issues, nil
}

// FindIssueByTitleExact returns the issue whose title equals the given title
// case-insensitively, or (nil, nil).
func (d *Database) FindIssueByTitleExact(ctx context.Context, teamID, title string) (*models.Issue, error) {
	var issue models.Issue
	err := d.db.WithContext(ctx).
		Where("team_id = ? AND LOWER(title) = ?", teamID, strings.ToLower(title)).
		First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find issue by title: %w", err)
	}
	return &issue, nil
}

// FindExistingTitles returns, for a set of candidate titles, the subset that
// already exists in the team (case-insensitive exact match). A single query
// serves whole-batch duplicate detection.
func (d *Database) FindExistingTitles(ctx context.Context, teamID string, titles []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(titles) == 0 {
		return existing, nil
	}

	lowered := make([]string, 0, len(titles))
	for _, t := range titles {
		lowered = append(lowered, strings.ToLower(t))
	}

	var found []string
	err := d.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("team_id = ? AND LOWER(title) IN ?", teamID, lowered).
		Pluck("LOWER(title)", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing titles: %w", err)
	}

	for _, t := range found {
		existing[t] = true
	}
	return existing, nil
}

// UpdateIssue applies a partial update to an issue. The updates map uses
// column names; label_ids is handled separately via SetIssueLabels.
func (d *Database) UpdateIssue(ctx context.Context, teamID, id string, updates map[string]any) error {
	updates["updated_at"] = time.Now()
	result := d.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("team_id = ? AND id = ?", teamID, id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update issue: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("issue not found: %s", id)
	}
	return nil
}

// DeleteIssue removes an issue and its label links.
func (d *Database) DeleteIssue(ctx context.Context, teamID, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", id).Delete(&models.IssueLabel{}).Error; err != nil {
			return fmt.Errorf("failed to delete issue labels: %w", err)
		}
		result := tx.Where("team_id = ? AND id = ?", teamID, id).Delete(&models.Issue{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete issue: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("issue not found: %s", id)
		}
		return nil
	})
}

// SetIssueLabels replaces the label set for an issue.
func (d *Database) SetIssueLabels(ctx context.Context, issueID string, labelIDs []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", issueID).Delete(&models.IssueLabel{}).Error; err != nil {
			return fmt.Errorf("failed to clear issue labels: %w", err)
		}
		for _, labelID := range labelIDs {
			link := models.IssueLabel{IssueID: issueID, LabelID: labelID}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to attach label: %w", err)
			}
		}
		return nil
	})
}

// CountIssuesByStateType returns issue counts per workflow state semantic
// type for a team.
func (d *Database) CountIssuesByStateType(ctx context.Context, teamID string) (map[string]int, error) {
	type row struct {
		Type  string
		Count int
	}
	var rows []row
	err := d.db.WithContext(ctx).
		Model(&models.Issue{}).
		Select("workflow_states.type AS type, COUNT(*) AS count").
		Joins("JOIN workflow_states ON workflow_states.id = issues.workflow_state_id").
		Where("issues.team_id = ?", teamID).
		Group("workflow_states.type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by state: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}

func (d *Database) loadLabelIDs(ctx context.Context, issue *models.Issue) error {
	var ids []string
	err := d.db.WithContext(ctx).
		Model(&models.IssueLabel{}).
		Where("issue_id = ?", issue.ID).
		Pluck("label_id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to load issue labels: %w", err)
	}
	issue.LabelIDs = ids
	return nil
}
