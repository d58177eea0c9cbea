package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lodestar-hq/lodestar/internal/email"
	"github.com/lodestar-hq/lodestar/internal/models"
	"github.com/lodestar-hq/lodestar/internal/storage"
)

// ToolResult is the uniform envelope every tool handler returns. Errors are
// plain strings, not structured codes: the consumer is a language model that
// folds them into natural-language replies.
type ToolResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message,omitempty"`
	Error        string   `json:"error,omitempty"`
	Data         any      `json:"data,omitempty"`
	CreatedCount int      `json:"created_count,omitempty"`
	UpdatedCount int      `json:"updated_count,omitempty"`
	DeletedCount int      `json:"deleted_count,omitempty"`
	SentCount    int      `json:"sent_count,omitempty"`
	FailedCount  int      `json:"failed_count,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

func failure(format string, args ...any) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func success(data any, format string, args ...any) *ToolResult {
	return &ToolResult{Success: true, Data: data, Message: fmt.Sprintf(format, args...)}
}

// Executor implements every tool capability. Handlers follow one shape:
// validate, resolve, conflict-check, mutate, report. All failures are
// converted into a ToolResult; nothing propagates to the model loop.
type Executor struct {
	db     *storage.Database
	email  *email.Sender
	logger *slog.Logger
}

// NewExecutor creates an executor over the given collaborators.
func NewExecutor(db *storage.Database, sender *email.Sender, logger *slog.Logger) *Executor {
	return &Executor{db: db, email: sender, logger: logger}
}

// --- Issue operations ---

// CreateIssue validates, resolves and creates a single issue.
func (e *Executor) CreateIssue(ctx context.Context, tc *TeamContext, actor Actor, in IssueInput) *ToolResult {
	return e.createIssue(ctx, tc, actor, in, true)
}

// createIssue runs the single-item create pipeline. checkDuplicate is false
// when a batch has already performed the whole-batch duplicate query.
func (e *Executor) createIssue(ctx context.Context, tc *TeamContext, actor Actor, in IssueInput, checkDuplicate bool) *ToolResult {
	c := in.normalize()

	report := ValidateIssueFields(c)
	if !report.IsValid {
		return failure("%s", FormatValidationError(report.MissingFields, tc))
	}

	priority := strings.ToLower(c.Priority)
	if !models.IsValidPriority(priority) {
		return failure("invalid priority %q; must be one of: %s", c.Priority, strings.Join(models.ValidPriorities, ", "))
	}

	if checkDuplicate {
		existing, err := e.db.FindIssueByTitleExact(ctx, tc.TeamID, c.Title)
		if err != nil {
			return failure("failed to check for duplicate title: %v", err)
		}
		if existing != nil {
			return failure("an issue titled %q already exists (#%d); use a different title or update the existing issue", existing.Title, existing.Number)
		}
	}

	state := ResolveWorkflowState(tc, c.WorkflowRef)
	if state == nil {
		return failure("workflow state %q not found. Available states: %s", c.WorkflowRef, strings.Join(stateNames(tc), ", "))
	}

	project := ResolveProject(tc, c.ProjectRef)
	if project == nil {
		return failure("project %q not found. Available projects: %s", c.ProjectRef, strings.Join(projectChoices(tc), ", "))
	}

	issue := &models.Issue{
		TeamID:          tc.TeamID,
		Title:           c.Title,
		Priority:        priority,
		ProjectID:       &project.ID,
		WorkflowStateID: state.ID,
		CreatedBy:       actor.UserID,
		LabelIDs:        ResolveLabelIDs(tc, c.LabelRefs),
	}
	if !IsNullSentinel(c.Description) {
		issue.Description = &c.Description
	}
	if c.AssigneeGiven {
		if member := ResolveAssignee(tc, c.AssigneeRef); member != nil {
			issue.AssigneeID = &member.UserID
		}
	}
	if c.Estimate != nil {
		issue.Estimate = c.Estimate
	}

	if err := e.db.CreateIssue(ctx, issue); err != nil {
		return failure("failed to create issue: %v", err)
	}

	e.logger.Info("Issue created via assistant",
		"team_id", tc.TeamID, "issue", issue.Number, "actor", actor.UserID)

	return success(issue, "Created issue #%d %q in %s", issue.Number, issue.Title, project.Name)
}

// CreateIssues creates a batch of issues. Duplicate-title checking runs once
// up front across the whole batch; item creation then fans out concurrently
// since items are independent.
func (e *Executor) CreateIssues(ctx context.Context, tc *TeamContext, actor Actor, items []IssueInput) *ToolResult {
	if len(items) == 0 {
		return failure("no issues provided")
	}

	titles := make([]string, 0, len(items))
	for _, in := range items {
		if t := strings.TrimSpace(in.Title); !IsNullSentinel(t) {
			titles = append(titles, t)
		}
	}
	existing, err := e.db.FindExistingTitles(ctx, tc.TeamID, titles)
	if err != nil {
		return failure("failed to check for duplicate titles: %v", err)
	}

	// Titles duplicated within the batch itself fail the same way.
	seen := make(map[string]bool, len(titles))
	duplicate := make([]bool, len(items))
	for i, in := range items {
		key := strings.ToLower(strings.TrimSpace(in.Title))
		if IsNullSentinel(key) {
			continue
		}
		if existing[key] || seen[key] {
			duplicate[i] = true
		}
		seen[key] = true
	}

	results := make([]*ToolResult, len(items))
	var wg sync.WaitGroup
	for i := range items {
		if duplicate[i] {
			results[i] = failure("an issue titled %q already exists", strings.TrimSpace(items[i].Title))
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.createIssue(ctx, tc, actor, items[i], false)
		}(i)
	}
	wg.Wait()

	return aggregateBatch(results, items, "created")
}

// UpdateIssueParams locates an issue by id or title and carries the partial
// update.
type UpdateIssueParams struct {
	IssueID  string `json:"issue_id,omitempty" jsonschema:"Issue id (preferred when known)"`
	Issue    string `json:"issue,omitempty" jsonschema:"Issue title or partial title to search for"`
	NewTitle string `json:"new_title,omitempty" jsonschema:"New title for the issue"`
	IssueInput
}

// UpdateIssue locates one issue and applies a partial update.
func (e *Executor) UpdateIssue(ctx context.Context, tc *TeamContext, actor Actor, params UpdateIssueParams) *ToolResult {
	issue, fail := e.findIssue(ctx, tc, params.IssueID, params.Issue)
	if fail != nil {
		return fail
	}

	c := params.IssueInput.normalize()
	updates := make(map[string]any)

	if newTitle := strings.TrimSpace(params.NewTitle); !IsNullSentinel(newTitle) {
		updates["title"] = newTitle
	}
	if !IsNullSentinel(c.Description) {
		updates["description"] = c.Description
	}
	if !IsNullSentinel(c.Priority) {
		priority := strings.ToLower(c.Priority)
		if !models.IsValidPriority(priority) {
			return failure("invalid priority %q; must be one of: %s", c.Priority, strings.Join(models.ValidPriorities, ", "))
		}
		updates["priority"] = priority
	}
	if !IsNullSentinel(c.WorkflowRef) {
		state := ResolveWorkflowState(tc, c.WorkflowRef)
		if state == nil {
			return failure("workflow state %q not found. Available states: %s", c.WorkflowRef, strings.Join(stateNames(tc), ", "))
		}
		updates["workflow_state_id"] = state.ID
	}
	if !IsNullSentinel(c.ProjectRef) {
		project := ResolveProject(tc, c.ProjectRef)
		if project == nil {
			return failure("project %q not found. Available projects: %s", c.ProjectRef, strings.Join(projectChoices(tc), ", "))
		}
		updates["project_id"] = project.ID
	}
	if c.AssigneeGiven {
		// Sentinels clear the assignee; an unresolved name also clears
		// rather than erroring (flagged for product review, see DESIGN.md).
		if member := ResolveAssignee(tc, c.AssigneeRef); member != nil {
			updates["assignee_id"] = member.UserID
		} else {
			updates["assignee_id"] = nil
		}
	}
	if c.Estimate != nil {
		updates["estimate"] = *c.Estimate
	}

	if len(updates) == 0 && c.LabelRefs == nil {
		return failure("no fields to update for issue #%d", issue.Number)
	}

	if len(updates) > 0 {
		if err := e.db.UpdateIssue(ctx, tc.TeamID, issue.ID, updates); err != nil {
			return failure("failed to update issue: %v", err)
		}
	}
	if c.LabelRefs != nil {
		if err := e.db.SetIssueLabels(ctx, issue.ID, ResolveLabelIDs(tc, c.LabelRefs)); err != nil {
			return failure("failed to update issue labels: %v", err)
		}
	}

	updated, err := e.db.GetIssueByID(ctx, tc.TeamID, issue.ID)
	if err != nil || updated == nil {
		updated = issue
	}
	return success(updated, "Updated issue #%d %q", updated.Number, updated.Title)
}

// UpdateIssues processes updates in array order, one at a time: later items
// may locate issues by titles that earlier items changed, so the lookup must
// see a serialized view.
func (e *Executor) UpdateIssues(ctx context.Context, tc *TeamContext, actor Actor, items []UpdateIssueParams) *ToolResult {
	if len(items) == 0 {
		return failure("no updates provided")
	}

	results := make([]*ToolResult, len(items))
	for i, params := range items {
		results[i] = e.UpdateIssue(ctx, tc, actor, params)
	}

	result := &ToolResult{}
	for i, r := range results {
		if r.Success {
			result.UpdatedCount++
		} else {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %s", i+1, r.Error))
		}
	}
	result.Success = result.UpdatedCount > 0
	result.Message = fmt.Sprintf("Updated %d issue(s), %d failed", result.UpdatedCount, result.FailedCount)
	if !result.Success {
		result.Error = "no issues were updated"
	}
	return result
}

// DeleteIssueParams locates an issue by id or title.
type DeleteIssueParams struct {
	IssueID string `json:"issue_id,omitempty" jsonschema:"Issue id (preferred when known)"`
	Issue   string `json:"issue,omitempty" jsonschema:"Issue title or partial title to search for"`
}

// DeleteIssue locates one issue and deletes it.
func (e *Executor) DeleteIssue(ctx context.Context, tc *TeamContext, actor Actor, params DeleteIssueParams) *ToolResult {
	issue, fail := e.findIssue(ctx, tc, params.IssueID, params.Issue)
	if fail != nil {
		return fail
	}

	if err := e.db.DeleteIssue(ctx, tc.TeamID, issue.ID); err != nil {
		return failure("failed to delete issue: %v", err)
	}

	e.logger.Info("Issue deleted via assistant",
		"team_id", tc.TeamID, "issue", issue.Number, "actor", actor.UserID)

	return success(nil, "Deleted issue #%d %q", issue.Number, issue.Title)
}

// DeleteIssues processes deletions sequentially in array order for the same
// reason updates do.
func (e *Executor) DeleteIssues(ctx context.Context, tc *TeamContext, actor Actor, items []DeleteIssueParams) *ToolResult {
	if len(items) == 0 {
		return failure("no issues provided")
	}

	result := &ToolResult{}
	for i, params := range items {
		r := e.DeleteIssue(ctx, tc, actor, params)
		if r.Success {
			result.DeletedCount++
		} else {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %s", i+1, r.Error))
		}
	}
	result.Success = result.DeletedCount > 0
	result.Message = fmt.Sprintf("Deleted %d issue(s), %d failed", result.DeletedCount, result.FailedCount)
	if !result.Success {
		result.Error = "no issues were deleted"
	}
	return result
}

// ListIssuesParams filters the issue listing. All filters accept ids or
// names.
type ListIssuesParams struct {
	Project  string `json:"project,omitempty" jsonschema:"Filter by project id, key, or name"`
	State    string `json:"state,omitempty" jsonschema:"Filter by workflow state id or name"`
	Assignee string `json:"assignee,omitempty" jsonschema:"Filter by assignee id or name; 'unassigned' for no assignee"`
	Query    string `json:"query,omitempty" jsonschema:"Substring to match against issue titles"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of issues to return (default 25, max 100)"`
}

// issueSummary is the compact listing shape returned to the model.
type issueSummary struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	State    string `json:"state"`
	Project  string `json:"project,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// ListIssues returns issues matching the given filters.
func (e *Executor) ListIssues(ctx context.Context, tc *TeamContext, params ListIssuesParams) *ToolResult {
	limit := params.Limit
	if limit <= 0 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	var projectID string
	if !IsNullSentinel(params.Project) {
		project := ResolveProject(tc, params.Project)
		if project == nil {
			return failure("project %q not found. Available projects: %s", params.Project, strings.Join(projectChoices(tc), ", "))
		}
		projectID = project.ID
	}

	var stateID string
	if !IsNullSentinel(params.State) {
		state := ResolveWorkflowState(tc, params.State)
		if state == nil {
			return failure("workflow state %q not found. Available states: %s", params.State, strings.Join(stateNames(tc), ", "))
		}
		stateID = state.ID
	}

	filterUnassigned := strings.EqualFold(strings.TrimSpace(params.Assignee), "unassigned")
	var assigneeID string
	if !filterUnassigned && !IsNullSentinel(params.Assignee) {
		member := ResolveAssignee(tc, params.Assignee)
		if member == nil {
			return failure("team member %q not found", params.Assignee)
		}
		assigneeID = member.UserID
	}

	var issues []*models.Issue
	var err error
	if query := strings.TrimSpace(params.Query); query != "" {
		issues, err = e.db.SearchIssuesByTitle(ctx, tc.TeamID, query)
	} else {
		issues, err = e.db.GetIssues(ctx, tc.TeamID)
	}
	if err != nil {
		return failure("failed to list issues: %v", err)
	}

	summaries := make([]issueSummary, 0, limit)
	for _, issue := range issues {
		if projectID != "" && (issue.ProjectID == nil || *issue.ProjectID != projectID) {
			continue
		}
		if stateID != "" && issue.WorkflowStateID != stateID {
			continue
		}
		if filterUnassigned && issue.AssigneeID != nil {
			continue
		}
		if assigneeID != "" && (issue.AssigneeID == nil || *issue.AssigneeID != assigneeID) {
			continue
		}
		summaries = append(summaries, e.summarize(tc, issue))
		if len(summaries) >= limit {
			break
		}
	}

	return success(summaries, "Found %d issue(s)", len(summaries))
}

// SearchIssuesParams is a title substring search.
type SearchIssuesParams struct {
	Query string `json:"query" jsonschema:"Substring to match against issue titles (required)"`
}

// SearchIssues finds issues by title substring so the model can disambiguate
// before mutating.
func (e *Executor) SearchIssues(ctx context.Context, tc *TeamContext, params SearchIssuesParams) *ToolResult {
	query := strings.TrimSpace(params.Query)
	if IsNullSentinel(query) {
		return failure("query is required")
	}

	issues, err := e.db.SearchIssuesByTitle(ctx, tc.TeamID, query)
	if err != nil {
		return failure("failed to search issues: %v", err)
	}

	summaries := make([]issueSummary, 0, len(issues))
	for _, issue := range issues {
		summaries = append(summaries, e.summarize(tc, issue))
	}
	return success(summaries, "Found %d issue(s) matching %q", len(summaries), query)
}

// findIssue implements the lookup-by-title-or-id pattern: direct fetch when
// an id is given, otherwise a case-insensitive substring search that must
// yield exactly one match. Multiple matches produce an ambiguity error
// listing every candidate; the system never guesses.
func (e *Executor) findIssue(ctx context.Context, tc *TeamContext, id, ref string) (*models.Issue, *ToolResult) {
	if !IsNullSentinel(id) {
		issue, err := e.db.GetIssueByID(ctx, tc.TeamID, strings.TrimSpace(id))
		if err != nil {
			return nil, failure("failed to look up issue: %v", err)
		}
		if issue == nil {
			return nil, failure("no issue found with id %q", id)
		}
		return issue, nil
	}

	ref = strings.TrimSpace(ref)
	if IsNullSentinel(ref) {
		return nil, failure("an issue id or title is required")
	}

	matches, err := e.db.SearchIssuesByTitle(ctx, tc.TeamID, ref)
	if err != nil {
		return nil, failure("failed to search issues: %v", err)
	}
	switch len(matches) {
	case 0:
		return nil, failure("no issue found matching %q", ref)
	case 1:
		return matches[0], nil
	default:
		labels := make([]string, 0, len(matches))
		for _, m := range matches {
			labels = append(labels, fmt.Sprintf("#%d %q", m.Number, m.Title))
		}
		return nil, failure("multiple issues match %q: %s. Specify which one", ref, strings.Join(labels, ", "))
	}
}

func (e *Executor) summarize(tc *TeamContext, issue *models.Issue) issueSummary {
	s := issueSummary{
		ID:       issue.ID,
		Number:   issue.Number,
		Title:    issue.Title,
		Priority: issue.Priority,
	}
	for _, ws := range tc.WorkflowStates {
		if ws.ID == issue.WorkflowStateID {
			s.State = ws.Name
			break
		}
	}
	if issue.ProjectID != nil {
		for _, p := range tc.Projects {
			if p.ID == *issue.ProjectID {
				s.Project = p.Name
				break
			}
		}
	}
	if issue.AssigneeID != nil {
		for _, m := range tc.Members {
			if m.UserID == *issue.AssigneeID {
				s.Assignee = m.UserName
				break
			}
		}
	}
	return s
}

// aggregateBatch folds per-item create results into one batch envelope.
// Success is true iff at least one item succeeded: batches are best-effort,
// never all-or-nothing.
func aggregateBatch(results []*ToolResult, items []IssueInput, verb string) *ToolResult {
	result := &ToolResult{}
	var created []any
	for i, r := range results {
		if r.Success {
			result.CreatedCount++
			if r.Data != nil {
				created = append(created, r.Data)
			}
		} else {
			result.FailedCount++
			title := strings.TrimSpace(items[i].Title)
			if title == "" {
				title = fmt.Sprintf("item %d", i+1)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", title, r.Error))
		}
	}
	result.Success = result.CreatedCount > 0
	result.Data = created
	result.Message = fmt.Sprintf("%s %d issue(s), %d failed",
		strings.ToUpper(verb[:1])+verb[1:], result.CreatedCount, result.FailedCount)
	if !result.Success {
		result.Error = fmt.Sprintf("no issues were %s", verb)
	}
	return result
}
