package assistant

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/lodestar-hq/lodestar/internal/models"
	"github.com/lodestar-hq/lodestar/internal/storage"
	"github.com/stretchr/testify/require"
)

var testActor = Actor{UserID: "user-1", UserName: "Alice Johnson", Role: models.RoleAdmin}

// setupExecutorTest creates an in-memory database seeded with one team, two
// members, two projects, three workflow states and two labels, and returns
// an executor plus the loaded team snapshot.
func setupExecutorTest(t *testing.T) (*Executor, *storage.Database, *TeamContext) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.NewDatabase(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.Migrate(), "failed to run migrations")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.CreateTeam(ctx, &models.Team{ID: "team-1", Name: "Acme"}))

	members := []*models.TeamMember{
		{ID: "tm-1", TeamID: "team-1", UserID: "user-1", UserName: "Alice Johnson", UserEmail: "alice@acme.dev", Role: models.RoleAdmin},
		{ID: "tm-2", TeamID: "team-1", UserID: "user-2", UserName: "Bob Smith", UserEmail: "bob@acme.dev", Role: models.RoleDeveloper},
	}
	for _, m := range members {
		require.NoError(t, db.AddTeamMember(ctx, m))
	}

	projects := []*models.Project{
		{ID: "proj-1", TeamID: "team-1", Name: "Website Redesign", Key: "WEB", Status: models.ProjectActive},
		{ID: "proj-2", TeamID: "team-1", Name: "Mobile App", Key: "MOB", Status: models.ProjectActive},
	}
	for _, p := range projects {
		require.NoError(t, db.CreateProject(ctx, p))
	}

	states := []*models.WorkflowState{
		{ID: "state-1", TeamID: "team-1", Name: "Todo", Type: "unstarted", Position: 0},
		{ID: "state-2", TeamID: "team-1", Name: "In Progress", Type: "started", Position: 1},
		{ID: "state-3", TeamID: "team-1", Name: "Done", Type: "completed", Position: 2},
	}
	for _, s := range states {
		require.NoError(t, db.CreateWorkflowState(ctx, s))
	}

	labels := []*models.Label{
		{ID: "label-1", TeamID: "team-1", Name: "bug", Color: "#ff0000"},
		{ID: "label-2", TeamID: "team-1", Name: "feature", Color: "#00ff00"},
	}
	for _, l := range labels {
		require.NoError(t, db.CreateLabel(ctx, l))
	}

	tc, err := LoadTeamContext(ctx, db, "team-1")
	require.NoError(t, err, "failed to load team context")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExecutor(db, nil, logger), db, tc
}

func TestExecutorCreateIssue(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	t.Run("resolves names end to end", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title:    "Fix login redirect",
			Priority: "High",
			Project:  "redesign",
			State:    "todo",
			Assignee: "bob",
			Labels:   []string{"bug"},
		})
		require.True(t, result.Success, "create failed: %s", result.Error)
		require.Contains(t, result.Message, "Created issue #1")
		require.Contains(t, result.Message, "Website Redesign")

		issue, ok := result.Data.(*models.Issue)
		require.True(t, ok, "expected *models.Issue data")
		require.Equal(t, 1, issue.Number)
		require.Equal(t, "high", issue.Priority)
		require.NotNil(t, issue.ProjectID)
		require.Equal(t, "proj-1", *issue.ProjectID)
		require.Equal(t, "state-1", issue.WorkflowStateID)
		require.NotNil(t, issue.AssigneeID)
		require.Equal(t, "user-2", *issue.AssigneeID)
		require.Equal(t, testActor.UserID, issue.CreatedBy)

		stored, err := db.GetIssueByID(ctx, "team-1", issue.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		require.Equal(t, []string{"label-1"}, stored.LabelIDs)
	})

	t.Run("rejects duplicate titles case-insensitively", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title:    "FIX LOGIN REDIRECT",
			Priority: "low",
			Project:  "WEB",
			State:    "Todo",
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "already exists")
		require.Contains(t, result.Error, "#1")
	})

	t.Run("reports all missing required fields", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{Description: "orphan"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "Missing required fields")
		require.Contains(t, result.Error, "title")
		require.Contains(t, result.Error, "priority")
		require.Contains(t, result.Error, "Available projects: Website Redesign (WEB), Mobile App (MOB)")
	})

	t.Run("unknown workflow state lists available names", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title:    "Another issue",
			Priority: "medium",
			Project:  "MOB",
			State:    "Review",
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `workflow state "Review" not found`)
		require.Contains(t, result.Error, "Todo, In Progress, Done")
	})

	t.Run("unknown project lists choices", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title:    "Another issue",
			Priority: "medium",
			Project:  "Payments",
			State:    "Todo",
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `project "Payments" not found`)
		require.Contains(t, result.Error, "Mobile App (MOB)")
	})

	t.Run("rejects invalid priority", func(t *testing.T) {
		result := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title:    "Another issue",
			Priority: "critical",
			Project:  "MOB",
			State:    "Todo",
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `invalid priority "critical"`)
	})
}

func TestExecutorCreateIssuesBatch(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	seed := exec.CreateIssue(ctx, tc, testActor, IssueInput{
		Title: "Existing report", Priority: "low", Project: "WEB", State: "Todo",
	})
	require.True(t, seed.Success, seed.Error)

	t.Run("partial failure still succeeds", func(t *testing.T) {
		result := exec.CreateIssues(ctx, tc, testActor, []IssueInput{
			{Title: "Batch one", Priority: "medium", Project: "WEB", State: "Todo"},
			{Title: "existing REPORT", Priority: "medium", Project: "WEB", State: "Todo"},
			{Title: "Batch two", Priority: "high", Project: "MOB", State: "In Progress"},
			{Title: "batch one", Priority: "low", Project: "WEB", State: "Todo"},
		})
		require.True(t, result.Success, "batch should succeed when any item does")
		require.Equal(t, 2, result.CreatedCount)
		require.Equal(t, 2, result.FailedCount)
		require.Len(t, result.Errors, 2)
		require.Contains(t, result.Errors[0], "existing REPORT")
		require.Contains(t, result.Errors[0], "already exists")
		require.Contains(t, result.Errors[1], "batch one")

		issues, err := db.GetIssues(ctx, "team-1")
		require.NoError(t, err)
		require.Len(t, issues, 3)
	})

	t.Run("all duplicates fails the batch", func(t *testing.T) {
		result := exec.CreateIssues(ctx, tc, testActor, []IssueInput{
			{Title: "Existing report", Priority: "low", Project: "WEB", State: "Todo"},
		})
		require.False(t, result.Success)
		require.Equal(t, 0, result.CreatedCount)
		require.Equal(t, 1, result.FailedCount)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		result := exec.CreateIssues(ctx, tc, testActor, nil)
		require.False(t, result.Success)
	})
}

func TestExecutorUpdateIssue(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	for _, title := range []string{"Login bug on mobile", "Signup bug on desktop", "Improve docs"} {
		r := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title: title, Priority: "medium", Project: "WEB", State: "Todo", Assignee: "bob",
		})
		require.True(t, r.Success, r.Error)
	}

	t.Run("ambiguous title lists all candidates without mutating", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{
			Issue:      "bug",
			IssueInput: IssueInput{Priority: "urgent"},
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `multiple issues match "bug"`)
		require.Contains(t, result.Error, `#1 "Login bug on mobile"`)
		require.Contains(t, result.Error, `#2 "Signup bug on desktop"`)

		issues, err := db.SearchIssuesByTitle(ctx, "team-1", "bug")
		require.NoError(t, err)
		for _, issue := range issues {
			require.Equal(t, "medium", issue.Priority, "ambiguous update must not mutate")
		}
	})

	t.Run("updates state and priority by unique fragment", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{
			Issue:      "docs",
			IssueInput: IssueInput{Priority: "low", State: "Done"},
		})
		require.True(t, result.Success, result.Error)

		updated, ok := result.Data.(*models.Issue)
		require.True(t, ok)
		require.Equal(t, "low", updated.Priority)
		require.Equal(t, "state-3", updated.WorkflowStateID)
	})

	t.Run("unassigned sentinel clears the assignee", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{
			Issue:      "docs",
			IssueInput: IssueInput{Assignee: "unassigned"},
		})
		require.True(t, result.Success, result.Error)

		updated := result.Data.(*models.Issue)
		require.Nil(t, updated.AssigneeID)
	})

	t.Run("rename via new title", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{
			Issue:    "docs",
			NewTitle: "Improve onboarding docs",
		})
		require.True(t, result.Success, result.Error)
		require.Contains(t, result.Message, `"Improve onboarding docs"`)
	})

	t.Run("no fields is an error", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{Issue: "onboarding"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "no fields to update")
	})

	t.Run("missing issue is an error", func(t *testing.T) {
		result := exec.UpdateIssue(ctx, tc, testActor, UpdateIssueParams{
			Issue:      "nonexistent",
			IssueInput: IssueInput{Priority: "low"},
		})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `no issue found matching "nonexistent"`)
	})
}

func TestExecutorDeleteIssues(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	for _, title := range []string{"First issue", "Second issue"} {
		r := exec.CreateIssue(ctx, tc, testActor, IssueInput{
			Title: title, Priority: "low", Project: "WEB", State: "Todo",
		})
		require.True(t, r.Success, r.Error)
	}

	t.Run("deletes by unique fragment", func(t *testing.T) {
		result := exec.DeleteIssue(ctx, tc, testActor, DeleteIssueParams{Issue: "First"})
		require.True(t, result.Success, result.Error)
		require.Contains(t, result.Message, `Deleted issue #1 "First issue"`)

		issues, err := db.GetIssues(ctx, "team-1")
		require.NoError(t, err)
		require.Len(t, issues, 1)
	})

	t.Run("batch reports per-item failures", func(t *testing.T) {
		result := exec.DeleteIssues(ctx, tc, testActor, []DeleteIssueParams{
			{Issue: "Second"},
			{Issue: "nonexistent"},
		})
		require.True(t, result.Success)
		require.Equal(t, 1, result.DeletedCount)
		require.Equal(t, 1, result.FailedCount)
		require.Contains(t, result.Errors[0], "item 2")
	})
}

func TestExecutorListIssues(t *testing.T) {
	exec, _, tc := setupExecutorTest(t)
	ctx := context.Background()

	inputs := []IssueInput{
		{Title: "Web task", Priority: "low", Project: "WEB", State: "Todo", Assignee: "bob"},
		{Title: "Mobile task", Priority: "high", Project: "MOB", State: "In Progress"},
		{Title: "Another web task", Priority: "medium", Project: "WEB", State: "Done"},
	}
	for _, in := range inputs {
		r := exec.CreateIssue(ctx, tc, testActor, in)
		require.True(t, r.Success, r.Error)
	}

	t.Run("filters by project", func(t *testing.T) {
		result := exec.ListIssues(ctx, tc, ListIssuesParams{Project: "WEB"})
		require.True(t, result.Success)
		require.Len(t, result.Data.([]issueSummary), 2)
	})

	t.Run("unassigned filter", func(t *testing.T) {
		result := exec.ListIssues(ctx, tc, ListIssuesParams{Assignee: "unassigned"})
		require.True(t, result.Success)
		summaries := result.Data.([]issueSummary)
		require.Len(t, summaries, 2)
		for _, s := range summaries {
			require.Empty(t, s.Assignee)
		}
	})

	t.Run("summaries carry resolved display names", func(t *testing.T) {
		result := exec.SearchIssues(ctx, tc, SearchIssuesParams{Query: "mobile task"})
		require.True(t, result.Success)
		summaries := result.Data.([]issueSummary)
		require.Len(t, summaries, 1)
		require.Equal(t, "Mobile App", summaries[0].Project)
		require.Equal(t, "In Progress", summaries[0].State)
	})
}

func TestExecutorCreateProject(t *testing.T) {
	exec, _, tc := setupExecutorTest(t)
	ctx := context.Background()

	t.Run("derives a three-character key from the name", func(t *testing.T) {
		result := exec.CreateProject(ctx, tc, testActor, ProjectInput{Name: "Data Platform", Lead: "alice"})
		require.True(t, result.Success, result.Error)

		project, ok := result.Data.(*models.Project)
		require.True(t, ok)
		require.Equal(t, "DAT", project.Key)
		require.Equal(t, models.ProjectActive, project.Status)
		require.NotNil(t, project.LeadID)
		require.Equal(t, "user-1", *project.LeadID)
	})

	t.Run("short names are padded", func(t *testing.T) {
		result := exec.CreateProject(ctx, tc, testActor, ProjectInput{Name: "Go"})
		require.True(t, result.Success, result.Error)
		require.Equal(t, "GOX", result.Data.(*models.Project).Key)
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		result := exec.CreateProject(ctx, tc, testActor, ProjectInput{Name: "Web Portal", Key: "web"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, `project key "WEB" is already used`)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		result := exec.CreateProject(ctx, tc, testActor, ProjectInput{Name: "mobile app"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "already exists")
	})

	t.Run("malformed key is rejected", func(t *testing.T) {
		result := exec.CreateProject(ctx, tc, testActor, ProjectInput{Name: "Quality", Key: "QUAL"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "exactly 3 letters or digits")
	})
}

func TestExecutorRemoveTeamMember(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	t.Run("requires the admin role", func(t *testing.T) {
		developer := Actor{UserID: "user-2", UserName: "Bob Smith", Role: models.RoleDeveloper}
		result := exec.RemoveTeamMember(ctx, tc, developer, RemoveTeamMemberParams{Member: "alice"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "requires the admin role")
	})

	t.Run("self-removal is refused", func(t *testing.T) {
		result := exec.RemoveTeamMember(ctx, tc, testActor, RemoveTeamMemberParams{Member: "alice"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "cannot remove yourself")
	})

	t.Run("admin removes another member", func(t *testing.T) {
		result := exec.RemoveTeamMember(ctx, tc, testActor, RemoveTeamMemberParams{Member: "bob"})
		require.True(t, result.Success, result.Error)

		members, err := db.ListTeamMembers(ctx, "team-1")
		require.NoError(t, err)
		require.Len(t, members, 1)
		require.Equal(t, "user-1", members[0].UserID)
	})
}

func TestExecutorInvitations(t *testing.T) {
	exec, db, tc := setupExecutorTest(t)
	ctx := context.Background()

	t.Run("mixed batch reports sent and failed separately", func(t *testing.T) {
		result := exec.InviteTeamMembers(ctx, tc, testActor, []InviteInput{
			{Email: "carol@acme.dev", Role: "developer"},
			{Email: "not-an-email"},
			{Email: "bob@acme.dev"},
		})
		require.True(t, result.Success)
		require.Equal(t, 1, result.SentCount)
		require.Equal(t, 2, result.FailedCount)
		require.True(t, hasErrorContaining(result.Errors, "invalid email address"))
		require.True(t, hasErrorContaining(result.Errors, "already a team member"))

		inv, err := db.GetInvitationByEmail(ctx, "team-1", "carol@acme.dev")
		require.NoError(t, err)
		require.NotNil(t, inv)
		require.Equal(t, models.InvitationPending, inv.Status)
		require.Equal(t, testActor.UserID, inv.InvitedBy)

		missing, err := db.GetInvitationByEmail(ctx, "team-1", "not-an-email")
		require.NoError(t, err)
		require.Nil(t, missing, "malformed address must leave no record")
	})

	t.Run("pending invitation blocks a duplicate", func(t *testing.T) {
		result := exec.InviteTeamMembers(ctx, tc, testActor, []InviteInput{
			{Email: "carol@acme.dev"},
		})
		require.False(t, result.Success)
		require.True(t, hasErrorContaining(result.Errors, "pending invitation already exists"))
	})

	t.Run("resend refreshes expiry", func(t *testing.T) {
		before, err := db.GetInvitationByEmail(ctx, "team-1", "carol@acme.dev")
		require.NoError(t, err)

		result := exec.ResendInvitation(ctx, tc, testActor, InvitationEmailParams{Email: "carol@acme.dev"})
		require.True(t, result.Success, result.Error)

		after, err := db.GetInvitationByEmail(ctx, "team-1", "carol@acme.dev")
		require.NoError(t, err)
		require.False(t, after.ExpiresAt.Before(before.ExpiresAt))
	})

	t.Run("revoke deletes the record", func(t *testing.T) {
		result := exec.RevokeInvitation(ctx, tc, testActor, InvitationEmailParams{Email: "carol@acme.dev"})
		require.True(t, result.Success, result.Error)

		inv, err := db.GetInvitationByEmail(ctx, "team-1", "carol@acme.dev")
		require.NoError(t, err)
		require.Nil(t, inv)
	})

	t.Run("revoking an unknown invitation fails", func(t *testing.T) {
		result := exec.RevokeInvitation(ctx, tc, testActor, InvitationEmailParams{Email: "nobody@acme.dev"})
		require.False(t, result.Success)
	})
}

func TestExecutorProjectMembers(t *testing.T) {
	exec, _, tc := setupExecutorTest(t)
	ctx := context.Background()

	t.Run("add and list", func(t *testing.T) {
		result := exec.AddProjectMember(ctx, tc, testActor, ProjectMemberParams{Project: "WEB", Member: "bob"})
		require.True(t, result.Success, result.Error)

		listed := exec.ListProjectMembers(ctx, tc, ListProjectMembersParams{Project: "WEB"})
		require.True(t, listed.Success)
		members := listed.Data.([]MemberInfo)
		require.Len(t, members, 1)
		require.Equal(t, "Bob Smith", members[0].UserName)
	})

	t.Run("duplicate membership is rejected", func(t *testing.T) {
		result := exec.AddProjectMember(ctx, tc, testActor, ProjectMemberParams{Project: "WEB", Member: "bob"})
		require.False(t, result.Success)
	})

	t.Run("only team members can join", func(t *testing.T) {
		result := exec.AddProjectMember(ctx, tc, testActor, ProjectMemberParams{Project: "WEB", Member: "mallory"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "only team members")
	})

	t.Run("remove", func(t *testing.T) {
		result := exec.RemoveProjectMember(ctx, tc, testActor, ProjectMemberParams{Project: "WEB", Member: "bob"})
		require.True(t, result.Success, result.Error)

		listed := exec.ListProjectMembers(ctx, tc, ListProjectMembersParams{Project: "WEB"})
		require.True(t, listed.Success)
		require.Empty(t, listed.Data)
	})

	t.Run("removing a non-member reports the conflict", func(t *testing.T) {
		result := exec.RemoveProjectMember(ctx, tc, testActor, ProjectMemberParams{Project: "WEB", Member: "bob"})
		require.False(t, result.Success)
		require.Contains(t, result.Error, "is not a member")
	})
}

func TestExecutorGetTeamStats(t *testing.T) {
	exec, _, tc := setupExecutorTest(t)
	ctx := context.Background()

	for _, in := range []IssueInput{
		{Title: "One", Priority: "low", Project: "WEB", State: "Todo"},
		{Title: "Two", Priority: "low", Project: "WEB", State: "In Progress"},
		{Title: "Three", Priority: "low", Project: "MOB", State: "In Progress"},
	} {
		r := exec.CreateIssue(ctx, tc, testActor, in)
		require.True(t, r.Success, r.Error)
	}

	result := exec.GetTeamStats(ctx, tc)
	require.True(t, result.Success, result.Error)

	stats, ok := result.Data.(teamStats)
	require.True(t, ok)
	require.Equal(t, 3, stats.TotalIssues)
	require.Equal(t, 2, stats.IssuesByState["started"])
	require.Equal(t, 1, stats.IssuesByState["unstarted"])
	require.Equal(t, 2, stats.Projects)
	require.Equal(t, 2, stats.Members)
}

func hasErrorContaining(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
