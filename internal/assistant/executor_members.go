package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lodestar-hq/lodestar/internal/email"
	"github.com/lodestar-hq/lodestar/internal/models"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const invitationTTL = 7 * 24 * time.Hour

// InviteInput is one invitation in an invite batch.
type InviteInput struct {
	Email string `json:"email" jsonschema:"Email address to invite (required)"`
	Role  string `json:"role,omitempty" jsonschema:"Role to grant: admin, developer, or viewer (default developer)"`
}

// InviteTeamMembers processes a batch of invitations. Each item validates
// the address, rejects existing members and live pending invitations, and
// records the invite; email delivery is fire-and-forget and never fails the
// operation.
func (e *Executor) InviteTeamMembers(ctx context.Context, tc *TeamContext, actor Actor, items []InviteInput) *ToolResult {
	if len(items) == 0 {
		return failure("no invitations provided")
	}

	result := &ToolResult{}
	for _, in := range items {
		addr := strings.TrimSpace(strings.ToLower(in.Email))
		if err := e.inviteOne(ctx, tc, actor, addr, in.Role); err != nil {
			result.FailedCount++
			label := addr
			if label == "" {
				label = "(empty)"
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", label, err))
			continue
		}
		result.SentCount++
	}

	result.Success = result.SentCount > 0
	result.Message = fmt.Sprintf("Sent %d invitation(s), %d failed", result.SentCount, result.FailedCount)
	if !result.Success {
		result.Error = "no invitations were sent"
	}
	return result
}

func (e *Executor) inviteOne(ctx context.Context, tc *TeamContext, actor Actor, addr, role string) error {
	if !emailPattern.MatchString(addr) {
		return fmt.Errorf("invalid email address")
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = models.RoleDeveloper
	}
	if !models.IsValidRole(role) {
		return fmt.Errorf("invalid role %q; must be admin, developer, or viewer", role)
	}

	if member, err := e.db.GetTeamMemberByEmail(ctx, tc.TeamID, addr); err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	} else if member != nil {
		return fmt.Errorf("%s is already a team member", member.UserName)
	}

	if existing, err := e.db.GetInvitationByEmail(ctx, tc.TeamID, addr); err != nil {
		return fmt.Errorf("failed to check existing invitation: %w", err)
	} else if existing != nil && existing.Blocks() {
		return fmt.Errorf("a pending invitation already exists for this address")
	}

	inv := &models.Invitation{
		TeamID:    tc.TeamID,
		Email:     addr,
		Role:      role,
		Status:    models.InvitationPending,
		InvitedBy: actor.UserID,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	if err := e.db.UpsertInvitation(ctx, inv); err != nil {
		return fmt.Errorf("failed to record invitation: %w", err)
	}

	e.sendInvitationEmail(tc, actor, inv)
	return nil
}

// sendInvitationEmail delivers asynchronously. A delivery failure is logged
// and otherwise ignored: the invitation record is the source of truth and
// can be resent.
func (e *Executor) sendInvitationEmail(tc *TeamContext, actor Actor, inv *models.Invitation) {
	if e.email == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := e.email.SendInvitation(ctx, email.InvitationEmail{
			To:           inv.Email,
			TeamName:     tc.TeamName,
			InviterName:  actor.UserName,
			Role:         inv.Role,
			InvitationID: inv.ID,
		})
		if err != nil {
			e.logger.Error("Failed to send invitation email",
				"team_id", inv.TeamID, "email", inv.Email, "error", err)
		}
	}()
}

// InvitationEmailParams identifies an invitation by address.
type InvitationEmailParams struct {
	Email string `json:"email" jsonschema:"Email address of the invitation (required)"`
}

// RevokeInvitation deletes a pending invitation.
func (e *Executor) RevokeInvitation(ctx context.Context, tc *TeamContext, actor Actor, params InvitationEmailParams) *ToolResult {
	addr := strings.TrimSpace(strings.ToLower(params.Email))
	inv, err := e.db.GetInvitationByEmail(ctx, tc.TeamID, addr)
	if err != nil {
		return failure("failed to look up invitation: %v", err)
	}
	if inv == nil {
		return failure("no invitation found for %s", addr)
	}
	if inv.Status != models.InvitationPending {
		return failure("invitation for %s is not pending", addr)
	}

	if err := e.db.DeleteInvitation(ctx, inv.ID); err != nil {
		return failure("failed to revoke invitation: %v", err)
	}
	return success(nil, "Revoked invitation for %s", addr)
}

// ResendInvitation refreshes a pending invitation's expiry and re-sends the
// email.
func (e *Executor) ResendInvitation(ctx context.Context, tc *TeamContext, actor Actor, params InvitationEmailParams) *ToolResult {
	addr := strings.TrimSpace(strings.ToLower(params.Email))
	inv, err := e.db.GetInvitationByEmail(ctx, tc.TeamID, addr)
	if err != nil {
		return failure("failed to look up invitation: %v", err)
	}
	if inv == nil {
		return failure("no invitation found for %s", addr)
	}
	if inv.Status != models.InvitationPending {
		return failure("invitation for %s is not pending", addr)
	}

	inv.ExpiresAt = time.Now().Add(invitationTTL)
	err = e.db.UpdateInvitation(ctx, inv.ID, map[string]any{"expires_at": inv.ExpiresAt})
	if err != nil {
		return failure("failed to refresh invitation: %v", err)
	}

	e.sendInvitationEmail(tc, actor, inv)
	return success(nil, "Resent invitation to %s", addr)
}

// ProjectMemberParams identifies a project and a team member.
type ProjectMemberParams struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"Project id (preferred when known)"`
	Project   string `json:"project,omitempty" jsonschema:"Project key or name to search for"`
	Member    string `json:"member" jsonschema:"Team member id or name (required)"`
}

// AddProjectMember adds a team member to a project.
func (e *Executor) AddProjectMember(ctx context.Context, tc *TeamContext, actor Actor, params ProjectMemberParams) *ToolResult {
	project, fail := e.findProject(ctx, tc, params.ProjectID, params.Project)
	if fail != nil {
		return fail
	}
	member := ResolveAssignee(tc, params.Member)
	if member == nil {
		return failure("team member %q not found; only team members can join projects", params.Member)
	}

	if existing, err := e.db.GetProjectMember(ctx, project.ID, member.UserID); err != nil {
		return failure("failed to check project membership: %v", err)
	} else if existing != nil {
		return failure("%s is already a member of %q", member.UserName, project.Name)
	}

	err := e.db.AddProjectMember(ctx, &models.ProjectMember{
		ProjectID: project.ID,
		UserID:    member.UserID,
	})
	if err != nil {
		return failure("failed to add project member: %v", err)
	}
	return success(nil, "Added %s to project %q", member.UserName, project.Name)
}

// RemoveProjectMember removes a team member from a project.
func (e *Executor) RemoveProjectMember(ctx context.Context, tc *TeamContext, actor Actor, params ProjectMemberParams) *ToolResult {
	project, fail := e.findProject(ctx, tc, params.ProjectID, params.Project)
	if fail != nil {
		return fail
	}
	member := ResolveAssignee(tc, params.Member)
	if member == nil {
		return failure("team member %q not found", params.Member)
	}

	if err := e.db.RemoveProjectMember(ctx, project.ID, member.UserID); err != nil {
		if errors.Is(err, storage.ErrNotProjectMember) {
			return failure("%s is not a member of %q", member.UserName, project.Name)
		}
		return failure("failed to remove project member: %v", err)
	}
	return success(nil, "Removed %s from project %q", member.UserName, project.Name)
}

// ListProjectMembersParams identifies a project.
type ListProjectMembersParams struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"Project id (preferred when known)"`
	Project   string `json:"project,omitempty" jsonschema:"Project key or name to search for"`
}

// ListProjectMembers lists the members of one project.
func (e *Executor) ListProjectMembers(ctx context.Context, tc *TeamContext, params ListProjectMembersParams) *ToolResult {
	project, fail := e.findProject(ctx, tc, params.ProjectID, params.Project)
	if fail != nil {
		return fail
	}

	rows, err := e.db.ListProjectMembers(ctx, project.ID)
	if err != nil {
		return failure("failed to list project members: %v", err)
	}

	members := make([]MemberInfo, 0, len(rows))
	for _, row := range rows {
		for _, m := range tc.Members {
			if m.UserID == row.UserID {
				members = append(members, m)
				break
			}
		}
	}
	return success(members, "Project %q has %d member(s)", project.Name, len(members))
}

// RemoveTeamMemberParams identifies a team member to remove.
type RemoveTeamMemberParams struct {
	Member string `json:"member" jsonschema:"Team member id or name to remove (required)"`
}

// RemoveTeamMember removes a member from the team. Only admins may do this,
// and an admin cannot remove themselves.
func (e *Executor) RemoveTeamMember(ctx context.Context, tc *TeamContext, actor Actor, params RemoveTeamMemberParams) *ToolResult {
	if actor.Role != models.RoleAdmin {
		return failure("removing team members requires the admin role")
	}

	member := ResolveAssignee(tc, params.Member)
	if member == nil {
		return failure("team member %q not found", params.Member)
	}
	if member.UserID == actor.UserID {
		return failure("you cannot remove yourself from the team")
	}

	if err := e.db.RemoveTeamMember(ctx, tc.TeamID, member.UserID); err != nil {
		return failure("failed to remove team member: %v", err)
	}

	e.logger.Info("Team member removed via assistant",
		"team_id", tc.TeamID, "removed", member.UserID, "actor", actor.UserID)

	return success(nil, "Removed %s from the team", member.UserName)
}

// ListTeamMembersParams optionally filters the roster by role.
type ListTeamMembersParams struct {
	Role string `json:"role,omitempty" jsonschema:"Filter by role: admin, developer, or viewer"`
}

// ListTeamMembers returns the team roster from the turn snapshot.
func (e *Executor) ListTeamMembers(ctx context.Context, tc *TeamContext, params ListTeamMembersParams) *ToolResult {
	role := strings.ToLower(strings.TrimSpace(params.Role))
	if role == "" {
		return success(tc.Members, "Team has %d member(s)", len(tc.Members))
	}

	filtered := make([]MemberInfo, 0, len(tc.Members))
	for _, m := range tc.Members {
		if m.Role == role {
			filtered = append(filtered, m)
		}
	}
	return success(filtered, "Team has %d %s(s)", len(filtered), role)
}

// teamStats is the shape returned by GetTeamStats.
type teamStats struct {
	TotalIssues   int            `json:"total_issues"`
	IssuesByState map[string]int `json:"issues_by_state"`
	Projects      int            `json:"projects"`
	Members       int            `json:"members"`
}

// GetTeamStats summarizes the team: issue counts per workflow state type
// plus project and member totals.
func (e *Executor) GetTeamStats(ctx context.Context, tc *TeamContext) *ToolResult {
	byType, err := e.db.CountIssuesByStateType(ctx, tc.TeamID)
	if err != nil {
		return failure("failed to count issues: %v", err)
	}

	stats := teamStats{
		IssuesByState: byType,
		Projects:      len(tc.Projects),
		Members:       len(tc.Members),
	}
	for _, n := range byType {
		stats.TotalIssues += n
	}
	return success(stats, "Team %q: %d issue(s), %d project(s), %d member(s)",
		tc.TeamName, stats.TotalIssues, stats.Projects, stats.Members)
}
