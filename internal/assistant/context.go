// Package assistant implements the AI chat assistant: team-context entity
// resolution, tool handlers, and the model-runtime integration.
package assistant

import (
	"context"
	"fmt"

	"github.com/lodestar-hq/lodestar/internal/storage"
)

// ProjectInfo is the snapshot view of a project used for resolution.
type ProjectInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	MemberCount int    `json:"member_count"`
}

// WorkflowStateInfo is the snapshot view of a workflow state.
type WorkflowStateInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// LabelInfo is the snapshot view of a label.
type LabelInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// MemberInfo is the snapshot view of a team member.
type MemberInfo struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	Role      string `json:"role"`
}

// TeamContext is a read-only snapshot of a team's projects, workflow states,
// labels and members, assembled once per chat turn and discarded after.
// Resolvers operate solely on this snapshot; handlers accept slight staleness
// within one turn rather than re-fetching per tool call.
type TeamContext struct {
	TeamID         string
	TeamName       string
	Projects       []ProjectInfo
	WorkflowStates []WorkflowStateInfo
	Labels         []LabelInfo
	Members        []MemberInfo
}

// Actor identifies the user on whose behalf tools execute.
type Actor struct {
	UserID   string
	UserName string
	Role     string
}

// LoadTeamContext fetches the snapshot for one resolution pass. Teams that
// have never configured workflow states get the defaults seeded here so state
// resolution always has something to match against.
func LoadTeamContext(ctx context.Context, db *storage.Database, teamID string) (*TeamContext, error) {
	team, err := db.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("team not found: %s", teamID)
	}

	projects, err := db.GetProjects(ctx, teamID)
	if err != nil {
		return nil, err
	}
	memberCounts, err := db.CountProjectMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	states, err := db.ListWorkflowStates(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		if _, err := db.SeedWorkflowStates(ctx, teamID); err != nil {
			return nil, err
		}
		states, err = db.ListWorkflowStates(ctx, teamID)
		if err != nil {
			return nil, err
		}
	}
	labels, err := db.ListLabels(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := db.ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	tc := &TeamContext{
		TeamID:   teamID,
		TeamName: team.Name,
	}

	for _, p := range projects {
		info := ProjectInfo{
			ID:          p.ID,
			Name:        p.Name,
			Key:         p.Key,
			Status:      p.Status,
			MemberCount: memberCounts[p.ID],
		}
		if p.Description != nil {
			info.Description = *p.Description
		}
		tc.Projects = append(tc.Projects, info)
	}
	for _, s := range states {
		tc.WorkflowStates = append(tc.WorkflowStates, WorkflowStateInfo{
			ID:   s.ID,
			Name: s.Name,
			Type: s.Type,
		})
	}
	for _, l := range labels {
		tc.Labels = append(tc.Labels, LabelInfo{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	for _, m := range members {
		tc.Members = append(tc.Members, MemberInfo{
			UserID:    m.UserID,
			UserName:  m.UserName,
			UserEmail: m.UserEmail,
			Role:      m.Role,
		})
	}

	return tc, nil
}
