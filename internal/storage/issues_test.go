package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/lodestar-hq/lodestar/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := config.DatabaseConfig{
		Type: "sqlite",
		DSN:  ":memory:",
	}

	db, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func createTestIssue(teamID, title, stateID string) *models.Issue {
	return &models.Issue{
		TeamID:          teamID,
		Title:           title,
		Priority:        "medium",
		WorkflowStateID: stateID,
		CreatedBy:       "user-1",
	}
}

func TestCreateIssueSequentialNumbering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, title := range []string{"First", "Second", "Third"} {
		issue := createTestIssue("team-1", title, "state-1")
		require.NoError(t, db.CreateIssue(ctx, issue))
		require.Equal(t, i+1, issue.Number)
	}

	// Numbers are scoped per team.
	other := createTestIssue("team-2", "Other team issue", "state-1")
	require.NoError(t, db.CreateIssue(ctx, other))
	require.Equal(t, 1, other.Number)
}

func TestIssueNumberUniqueIndex(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := createTestIssue("team-1", "First", "state-1")
	require.NoError(t, db.CreateIssue(ctx, first))

	// Writing the same (team, number) pair directly must hit the index.
	dup := createTestIssue("team-1", "Duplicate number", "state-1")
	dup.ID = "dup-issue"
	dup.Number = first.Number
	err := db.DB().Create(dup).Error
	require.Error(t, err)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// The same number in another team is fine.
	other := createTestIssue("team-2", "Other team", "state-1")
	other.ID = "other-issue"
	other.Number = first.Number
	require.NoError(t, db.DB().Create(other).Error)
}

func TestCreateIssueConcurrentNumbering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const workers = 12
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.CreateIssue(ctx, createTestIssue("team-1", fmt.Sprintf("Issue %d", i), "state-1"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	issues, err := db.GetIssues(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, issues, workers)

	seen := make(map[int]bool, workers)
	for _, issue := range issues {
		require.False(t, seen[issue.Number], "number %d assigned twice", issue.Number)
		seen[issue.Number] = true
		require.GreaterOrEqual(t, issue.Number, 1)
		require.LessOrEqual(t, issue.Number, workers)
	}
}

func TestSearchIssuesByTitle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	titles := []string{"Login bug", "Signup BUG report", "Improve docs"}
	for _, title := range titles {
		require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", title, "state-1")))
	}
	require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-2", "Other team bug", "state-1")))

	t.Run("case-insensitive substring, ordered by number", func(t *testing.T) {
		matches, err := db.SearchIssuesByTitle(ctx, "team-1", "bug")
		require.NoError(t, err)
		require.Len(t, matches, 2)
		require.Equal(t, "Login bug", matches[0].Title)
		require.Equal(t, "Signup BUG report", matches[1].Title)
	})

	t.Run("scoped to the team", func(t *testing.T) {
		matches, err := db.SearchIssuesByTitle(ctx, "team-2", "bug")
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})

	t.Run("no matches", func(t *testing.T) {
		matches, err := db.SearchIssuesByTitle(ctx, "team-1", "nonexistent")
		require.NoError(t, err)
		require.Empty(t, matches)
	})
}

func TestFindIssueByTitleExact(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", "Login bug", "state-1")))

	found, err := db.FindIssueByTitleExact(ctx, "team-1", "LOGIN BUG")
	require.NoError(t, err)
	require.NotNil(t, found)

	// Substrings do not match.
	found, err = db.FindIssueByTitleExact(ctx, "team-1", "Login")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestFindExistingTitles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, title := range []string{"Alpha", "Beta"} {
		require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", title, "state-1")))
	}

	existing, err := db.FindExistingTitles(ctx, "team-1", []string{"ALPHA", "Gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, existing, 2)
	require.True(t, existing["alpha"])
	require.True(t, existing["beta"])
	require.False(t, existing["gamma"])

	empty, err := db.FindExistingTitles(ctx, "team-1", nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestIssueLabels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateLabel(ctx, &models.Label{ID: "label-1", TeamID: "team-1", Name: "bug"}))
	require.NoError(t, db.CreateLabel(ctx, &models.Label{ID: "label-2", TeamID: "team-1", Name: "feature"}))

	issue := createTestIssue("team-1", "Labeled issue", "state-1")
	issue.LabelIDs = []string{"label-1"}
	require.NoError(t, db.CreateIssue(ctx, issue))

	t.Run("labels loaded on read", func(t *testing.T) {
		stored, err := db.GetIssueByID(ctx, "team-1", issue.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		require.Equal(t, []string{"label-1"}, stored.LabelIDs)
	})

	t.Run("set replaces the label set", func(t *testing.T) {
		require.NoError(t, db.SetIssueLabels(ctx, issue.ID, []string{"label-2"}))

		stored, err := db.GetIssueByID(ctx, "team-1", issue.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"label-2"}, stored.LabelIDs)
	})

	t.Run("delete removes label links", func(t *testing.T) {
		require.NoError(t, db.DeleteIssue(ctx, "team-1", issue.ID))

		stored, err := db.GetIssueByID(ctx, "team-1", issue.ID)
		require.NoError(t, err)
		require.Nil(t, stored)
	})
}

func TestUpdateIssueNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.UpdateIssue(ctx, "team-1", "missing", map[string]any{"priority": "high"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "issue not found")
}

func TestCountIssuesByStateType(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	states := []*models.WorkflowState{
		{ID: "state-1", TeamID: "team-1", Name: "Todo", Type: "unstarted", Position: 0},
		{ID: "state-2", TeamID: "team-1", Name: "In Progress", Type: "started", Position: 1},
	}
	for _, s := range states {
		require.NoError(t, db.CreateWorkflowState(ctx, s))
	}

	require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", "One", "state-1")))
	require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", "Two", "state-2")))
	require.NoError(t, db.CreateIssue(ctx, createTestIssue("team-1", "Three", "state-2")))

	counts, err := db.CountIssuesByStateType(ctx, "team-1")
	require.NoError(t, err)
	require.Equal(t, 1, counts["unstarted"])
	require.Equal(t, 2, counts["started"])
}
