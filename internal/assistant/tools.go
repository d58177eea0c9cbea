package assistant

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	copilot "github.com/github/copilot-sdk/go"
)

// Turn carries the per-message execution state: the team snapshot loaded at
// the start of the message, the acting user, the tool step counter, and the
// transcript of executed calls. A fresh Turn is built for every inbound
// message; nothing here outlives it.
type Turn struct {
	exec     *Executor
	tc       *TeamContext
	actor    Actor
	maxSteps int

	steps atomic.Int32

	mu    sync.Mutex
	calls []ToolCall
}

// ToolCall records one executed tool invocation for transcript persistence.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

// NewTurn creates the execution state for one chat message.
func NewTurn(exec *Executor, tc *TeamContext, actor Actor, maxSteps int) *Turn {
	return &Turn{exec: exec, tc: tc, actor: actor, maxSteps: maxSteps}
}

// Calls returns the tool invocations executed so far, in order.
func (t *Turn) Calls() []ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ToolCall, len(t.calls))
	copy(out, t.calls)
	return out
}

// StepCount returns how many tool calls this turn has attempted.
func (t *Turn) StepCount() int {
	return int(t.steps.Load())
}

// run wraps a handler invocation with the step ceiling and transcript
// recording. Past the ceiling the handler is not executed at all; the model
// gets a failed result telling it to stop and summarize. The envelope is
// always returned with a nil error so failures stay inside the tool protocol
// instead of aborting the session.
func (t *Turn) run(name string, args any, fn func(ctx context.Context) *ToolResult) (any, error) {
	var result *ToolResult
	if int(t.steps.Add(1)) > t.maxSteps {
		result = failure("tool step limit reached for this message; summarize what was done and ask the user to continue in a new message")
	} else {
		result = fn(context.Background())
	}

	argsJSON, _ := json.Marshal(args)
	resultJSON, _ := json.Marshal(result)
	t.mu.Lock()
	t.calls = append(t.calls, ToolCall{
		Name:      name,
		Arguments: string(argsJSON),
		Result:    string(resultJSON),
	})
	t.mu.Unlock()

	return result, nil
}

// Batch wrapper params. The SDK derives one JSON schema per tool from these
// structs.

// CreateIssuesParams wraps a batch of issue creations.
type CreateIssuesParams struct {
	Issues []IssueInput `json:"issues" jsonschema:"Issues to create (required)"`
}

// UpdateIssuesParams wraps a batch of issue updates.
type UpdateIssuesParams struct {
	Updates []UpdateIssueParams `json:"updates" jsonschema:"Issue updates to apply in order (required)"`
}

// DeleteIssuesParams wraps a batch of issue deletions.
type DeleteIssuesParams struct {
	Issues []DeleteIssueParams `json:"issues" jsonschema:"Issues to delete in order (required)"`
}

// CreateProjectsParams wraps a batch of project creations.
type CreateProjectsParams struct {
	Projects []ProjectInput `json:"projects" jsonschema:"Projects to create (required)"`
}

// InviteTeamMembersParams wraps a batch of invitations.
type InviteTeamMembersParams struct {
	Invitations []InviteInput `json:"invitations" jsonschema:"Invitations to send (required)"`
}

// GetTeamStatsParams defines parameters for get_team_stats.
// Note: empty structs need at least one field for valid JSON schema generation.
type GetTeamStatsParams struct {
	Verbose bool `json:"verbose,omitempty" jsonschema:"Reserved; statistics are always returned in full"`
}

// Tools builds the full tool set bound to this turn. Every handler closes
// over the turn so the snapshot, actor, and step counter travel with the
// call instead of living in ambient state.
func (t *Turn) Tools() []copilot.Tool {
	return []copilot.Tool{
		// Issue tools
		t.createIssueTool(),
		t.createIssuesTool(),
		t.updateIssueTool(),
		t.updateIssuesTool(),
		t.deleteIssueTool(),
		t.deleteIssuesTool(),
		t.listIssuesTool(),
		t.searchIssuesTool(),

		// Project tools
		t.createProjectTool(),
		t.createProjectsTool(),
		t.updateProjectTool(),
		t.deleteProjectTool(),
		t.listProjectsTool(),

		// Project membership tools
		t.addProjectMemberTool(),
		t.removeProjectMemberTool(),
		t.listProjectMembersTool(),

		// Team tools
		t.inviteTeamMembersTool(),
		t.revokeInvitationTool(),
		t.resendInvitationTool(),
		t.removeTeamMemberTool(),
		t.listTeamMembersTool(),
		t.getTeamStatsTool(),
	}
}

func (t *Turn) createIssueTool() copilot.Tool {
	return copilot.DefineTool(
		"create_issue",
		"Create a single issue. Requires title, workflow state, priority, and project; state and project accept names as well as ids",
		func(params IssueInput, inv copilot.ToolInvocation) (any, error) {
			return t.run("create_issue", params, func(ctx context.Context) *ToolResult {
				return t.exec.CreateIssue(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) createIssuesTool() copilot.Tool {
	return copilot.DefineTool(
		"create_issues",
		"Create multiple issues in one call. Items succeed or fail independently; the result reports per-item errors",
		func(params CreateIssuesParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("create_issues", params, func(ctx context.Context) *ToolResult {
				return t.exec.CreateIssues(ctx, t.tc, t.actor, params.Issues)
			})
		},
	)
}

func (t *Turn) updateIssueTool() copilot.Tool {
	return copilot.DefineTool(
		"update_issue",
		"Update an issue located by id or title. Only the supplied fields change; set assignee to 'unassigned' to clear it",
		func(params UpdateIssueParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("update_issue", params, func(ctx context.Context) *ToolResult {
				return t.exec.UpdateIssue(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) updateIssuesTool() copilot.Tool {
	return copilot.DefineTool(
		"update_issues",
		"Update multiple issues in one call, processed in order. Items succeed or fail independently",
		func(params UpdateIssuesParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("update_issues", params, func(ctx context.Context) *ToolResult {
				return t.exec.UpdateIssues(ctx, t.tc, t.actor, params.Updates)
			})
		},
	)
}

func (t *Turn) deleteIssueTool() copilot.Tool {
	return copilot.DefineTool(
		"delete_issue",
		"Delete an issue located by id or title",
		func(params DeleteIssueParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("delete_issue", params, func(ctx context.Context) *ToolResult {
				return t.exec.DeleteIssue(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) deleteIssuesTool() copilot.Tool {
	return copilot.DefineTool(
		"delete_issues",
		"Delete multiple issues in one call, processed in order. Items succeed or fail independently",
		func(params DeleteIssuesParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("delete_issues", params, func(ctx context.Context) *ToolResult {
				return t.exec.DeleteIssues(ctx, t.tc, t.actor, params.Issues)
			})
		},
	)
}

func (t *Turn) listIssuesTool() copilot.Tool {
	return copilot.DefineTool(
		"list_issues",
		"List the team's issues, optionally filtered by project, workflow state, assignee, or a title substring",
		func(params ListIssuesParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("list_issues", params, func(ctx context.Context) *ToolResult {
				return t.exec.ListIssues(ctx, t.tc, params)
			})
		},
	)
}

func (t *Turn) searchIssuesTool() copilot.Tool {
	return copilot.DefineTool(
		"search_issues",
		"Search issues by title substring. Use before updating or deleting when the user's reference might match several issues",
		func(params SearchIssuesParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("search_issues", params, func(ctx context.Context) *ToolResult {
				return t.exec.SearchIssues(ctx, t.tc, params)
			})
		},
	)
}

func (t *Turn) createProjectTool() copilot.Tool {
	return copilot.DefineTool(
		"create_project",
		"Create a project. The 3-character key is derived from the name when not given",
		func(params ProjectInput, inv copilot.ToolInvocation) (any, error) {
			return t.run("create_project", params, func(ctx context.Context) *ToolResult {
				return t.exec.CreateProject(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) createProjectsTool() copilot.Tool {
	return copilot.DefineTool(
		"create_projects",
		"Create multiple projects in one call, processed in order. Items succeed or fail independently",
		func(params CreateProjectsParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("create_projects", params, func(ctx context.Context) *ToolResult {
				return t.exec.CreateProjects(ctx, t.tc, t.actor, params.Projects)
			})
		},
	)
}

func (t *Turn) updateProjectTool() copilot.Tool {
	return copilot.DefineTool(
		"update_project",
		"Update a project located by id, key, or name. Only the supplied fields change",
		func(params UpdateProjectParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("update_project", params, func(ctx context.Context) *ToolResult {
				return t.exec.UpdateProject(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) deleteProjectTool() copilot.Tool {
	return copilot.DefineTool(
		"delete_project",
		"Delete a project located by id, key, or name. Its issues are kept and detached from the project",
		func(params DeleteProjectParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("delete_project", params, func(ctx context.Context) *ToolResult {
				return t.exec.DeleteProject(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) listProjectsTool() copilot.Tool {
	return copilot.DefineTool(
		"list_projects",
		"List the team's projects with their keys and member counts",
		func(params ListProjectsParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("list_projects", params, func(ctx context.Context) *ToolResult {
				return t.exec.ListProjects(ctx, t.tc, params)
			})
		},
	)
}

func (t *Turn) addProjectMemberTool() copilot.Tool {
	return copilot.DefineTool(
		"add_project_member",
		"Add an existing team member to a project",
		func(params ProjectMemberParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("add_project_member", params, func(ctx context.Context) *ToolResult {
				return t.exec.AddProjectMember(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) removeProjectMemberTool() copilot.Tool {
	return copilot.DefineTool(
		"remove_project_member",
		"Remove a member from a project. Team membership is unaffected",
		func(params ProjectMemberParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("remove_project_member", params, func(ctx context.Context) *ToolResult {
				return t.exec.RemoveProjectMember(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) listProjectMembersTool() copilot.Tool {
	return copilot.DefineTool(
		"list_project_members",
		"List the members of a project",
		func(params ListProjectMembersParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("list_project_members", params, func(ctx context.Context) *ToolResult {
				return t.exec.ListProjectMembers(ctx, t.tc, params)
			})
		},
	)
}

func (t *Turn) inviteTeamMembersTool() copilot.Tool {
	return copilot.DefineTool(
		"invite_team_members",
		"Invite people to the team by email. Items succeed or fail independently; delivery happens in the background",
		func(params InviteTeamMembersParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("invite_team_members", params, func(ctx context.Context) *ToolResult {
				return t.exec.InviteTeamMembers(ctx, t.tc, t.actor, params.Invitations)
			})
		},
	)
}

func (t *Turn) revokeInvitationTool() copilot.Tool {
	return copilot.DefineTool(
		"revoke_invitation",
		"Revoke a pending team invitation by email address",
		func(params InvitationEmailParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("revoke_invitation", params, func(ctx context.Context) *ToolResult {
				return t.exec.RevokeInvitation(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) resendInvitationTool() copilot.Tool {
	return copilot.DefineTool(
		"resend_invitation",
		"Resend a pending team invitation and refresh its expiry",
		func(params InvitationEmailParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("resend_invitation", params, func(ctx context.Context) *ToolResult {
				return t.exec.ResendInvitation(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) removeTeamMemberTool() copilot.Tool {
	return copilot.DefineTool(
		"remove_team_member",
		"Remove a member from the team. Requires the admin role; you cannot remove yourself",
		func(params RemoveTeamMemberParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("remove_team_member", params, func(ctx context.Context) *ToolResult {
				return t.exec.RemoveTeamMember(ctx, t.tc, t.actor, params)
			})
		},
	)
}

func (t *Turn) listTeamMembersTool() copilot.Tool {
	return copilot.DefineTool(
		"list_team_members",
		"List the team's members with their roles",
		func(params ListTeamMembersParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("list_team_members", params, func(ctx context.Context) *ToolResult {
				return t.exec.ListTeamMembers(ctx, t.tc, params)
			})
		},
	)
}

func (t *Turn) getTeamStatsTool() copilot.Tool {
	return copilot.DefineTool(
		"get_team_stats",
		"Get team statistics: issue counts per workflow state type plus project and member totals",
		func(params GetTeamStatsParams, inv copilot.ToolInvocation) (any, error) {
			return t.run("get_team_stats", params, func(ctx context.Context) *ToolResult {
				return t.exec.GetTeamStats(ctx, t.tc)
			})
		},
	)
}
