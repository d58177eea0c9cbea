// Package models defines the persistent entities and API shapes shared
// across the server.
package models

import "time"

// Team is the multi-tenancy root. Every project, issue, workflow state,
// label and invitation belongs to exactly one team.
type Team struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TeamMember links a user to a team with a role. User display data is
// denormalized onto the row so a team snapshot needs no join.
type TeamMember struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TeamID    string    `json:"team_id" gorm:"not null;index;uniqueIndex:idx_team_user"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_team_user"`
	UserName  string    `json:"user_name" gorm:"not null"`
	UserEmail string    `json:"user_email" gorm:"not null"`
	Role      string    `json:"role" gorm:"not null;default:'developer'"` // admin, developer, viewer
	CreatedAt time.Time `json:"created_at"`
}

// Project groups issues within a team. Key is a short unique-per-team
// identifier; assistant-created projects always get a 3-character key.
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	TeamID      string    `json:"team_id" gorm:"not null;index;uniqueIndex:idx_team_key"`
	Name        string    `json:"name" gorm:"not null"`
	Key         string    `json:"key" gorm:"not null;uniqueIndex:idx_team_key"`
	Description *string   `json:"description,omitempty"`
	Color       string    `json:"color"`
	Icon        *string   `json:"icon,omitempty"`
	LeadID      *string   `json:"lead_id,omitempty"`
	Status      string    `json:"status" gorm:"not null;default:'active'"` // active, completed, canceled
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMember links a team member to a project. Project membership is a
// subset of team membership.
type ProjectMember struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ProjectID string    `json:"project_id" gorm:"not null;index;uniqueIndex:idx_project_user"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_project_user"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowState is a named status bucket for issues. Name is display text;
// Type is the semantic bucket used for stats and ordering.
type WorkflowState struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TeamID   string `json:"team_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null"`
	Type     string `json:"type" gorm:"not null"` // backlog, unstarted, started, completed, canceled
	Position int    `json:"position"`
}

// Label is a team-scoped tag attachable to issues.
type Label struct {
	ID     string `json:"id" gorm:"primaryKey"`
	TeamID string `json:"team_id" gorm:"not null;index"`
	Name   string `json:"name" gorm:"not null"`
	Color  string `json:"color"`
}

// Issue is the central work item. Number is a team-scoped sequential
// identifier assigned at creation time; the composite unique index backs
// the retry in CreateIssue when concurrent creates race for the same number.
type Issue struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	TeamID          string    `json:"team_id" gorm:"not null;index;uniqueIndex:idx_team_number"`
	Number          int       `json:"number" gorm:"not null;uniqueIndex:idx_team_number"`
	Title           string    `json:"title" gorm:"not null"`
	Description     *string   `json:"description,omitempty"`
	Priority        string    `json:"priority" gorm:"not null"` // none, low, medium, high, urgent
	ProjectID       *string   `json:"project_id,omitempty" gorm:"index"`
	WorkflowStateID string    `json:"workflow_state_id" gorm:"not null;index"`
	AssigneeID      *string   `json:"assignee_id,omitempty"`
	Estimate        *int      `json:"estimate,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// LabelIDs is populated from the issue_labels join table on read and
	// is not a database column itself.
	LabelIDs []string `json:"label_ids" gorm:"-"`
}

// IssueLabel is the issue/label join table.
type IssueLabel struct {
	IssueID string `json:"issue_id" gorm:"primaryKey"`
	LabelID string `json:"label_id" gorm:"primaryKey"`
}

// Invitation is a pending or accepted invite to join a team. One row per
// (team, email); re-inviting an expired entry overwrites it.
type Invitation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TeamID    string    `json:"team_id" gorm:"not null;index;uniqueIndex:idx_team_email"`
	Email     string    `json:"email" gorm:"not null;uniqueIndex:idx_team_email"`
	Role      string    `json:"role" gorm:"not null"`
	Status    string    `json:"status" gorm:"not null;default:'pending'"` // pending, accepted
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the invitation is past its expiry.
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// Blocks reports whether this invitation prevents a new invite to the same
// address: only a pending, unexpired invitation does.
func (i *Invitation) Blocks() bool {
	return i.Status == InvitationPending && !i.IsExpired()
}

// Conversation is one assistant chat thread for a user within a team.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TeamID    string    `json:"team_id" gorm:"not null;index"`
	UserID    string    `json:"user_id" gorm:"not null;index"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationMessage is one persisted entry of a chat transcript: user
// text, assistant text, or a tool call/result record.
type ConversationMessage struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ConversationID string    `json:"conversation_id" gorm:"not null;index"`
	Role           string    `json:"role" gorm:"not null"` // user, assistant, tool
	Content        string    `json:"content"`
	ToolName       *string   `json:"tool_name,omitempty"`
	ToolPayload    *string   `json:"tool_payload,omitempty"` // JSON-encoded args + result
	CreatedAt      time.Time `json:"created_at"`
}
