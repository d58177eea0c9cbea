package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lodestar-hq/lodestar/internal/models"
)

// defaultWorkflowStates are seeded for teams that have none. The UI normally
// creates these when a team is set up; seeding keeps the assistant usable on
// teams created through other paths.
var defaultWorkflowStates = []models.WorkflowState{
	{Name: "Backlog", Type: models.StateTypeBacklog, Position: 0},
	{Name: "Todo", Type: models.StateTypeUnstarted, Position: 1},
	{Name: "In Progress", Type: models.StateTypeStarted, Position: 2},
	{Name: "Done", Type: models.StateTypeCompleted, Position: 3},
	{Name: "Canceled", Type: models.StateTypeCanceled, Position: 4},
}

// ListWorkflowStates returns a team's workflow states in position order.
func (d *Database) ListWorkflowStates(ctx context.Context, teamID string) ([]*models.WorkflowState, error) {
	var states []*models.WorkflowState
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("position ASC").
		Find(&states).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow states: %w", err)
	}
	return states, nil
}

// SeedWorkflowStates creates the default workflow states for a team if it
// has none. Returns true when seeding happened.
func (d *Database) SeedWorkflowStates(ctx context.Context, teamID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.WorkflowState{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count workflow states: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	for _, state := range defaultWorkflowStates {
		state.ID = uuid.New().String()
		state.TeamID = teamID
		if err := d.db.WithContext(ctx).Create(&state).Error; err != nil {
			return false, fmt.Errorf("failed to seed workflow state: %w", err)
		}
	}
	return true, nil
}

// ListLabels returns a team's labels in name order.
func (d *Database) ListLabels(ctx context.Context, teamID string) ([]*models.Label, error) {
	var labels []*models.Label
	err := d.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("name ASC").
		Find(&labels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return labels, nil
}

// CreateLabel inserts a new label.
func (d *Database) CreateLabel(ctx context.Context, label *models.Label) error {
	if label.ID == "" {
		label.ID = uuid.New().String()
	}
	if err := d.db.WithContext(ctx).Create(label).Error; err != nil {
		return fmt.Errorf("failed to create label: %w", err)
	}
	return nil
}

// CreateWorkflowState inserts a workflow state.
func (d *Database) CreateWorkflowState(ctx context.Context, state *models.WorkflowState) error {
	if state.ID == "" {
		state.ID = uuid.New().String()
	}
	if err := d.db.WithContext(ctx).Create(state).Error; err != nil {
		return fmt.Errorf("failed to create workflow state: %w", err)
	}
	return nil
}
