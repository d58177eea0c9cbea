package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/lodestar-hq/lodestar/internal/models"
)

var projectKeyPattern = regexp.MustCompile(`^[A-Za-z0-9]{3}$`)

// ProjectInput carries the fields for creating a project.
type ProjectInput struct {
	Name        string `json:"name" jsonschema:"Project name (required)"`
	Key         string `json:"key,omitempty" jsonschema:"Three-character project key; derived from the name when omitted"`
	Description string `json:"description,omitempty" jsonschema:"Project description"`
	Color       string `json:"color,omitempty" jsonschema:"Display color (hex)"`
	Icon        string `json:"icon,omitempty" jsonschema:"Display icon name"`
	Lead        string `json:"lead,omitempty" jsonschema:"Project lead: member id or name"`
	Status      string `json:"status,omitempty" jsonschema:"Project status: active, completed, or canceled"`
}

// CreateProject validates and creates a single project.
func (e *Executor) CreateProject(ctx context.Context, tc *TeamContext, actor Actor, in ProjectInput) *ToolResult {
	name := strings.TrimSpace(in.Name)
	if IsNullSentinel(name) {
		return failure("project name is required")
	}

	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if key == "" {
		key = deriveProjectKey(name)
	}
	if !projectKeyPattern.MatchString(key) {
		return failure("project key %q is invalid; keys are exactly 3 letters or digits", key)
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.ProjectActive
	}
	if status != models.ProjectActive && status != models.ProjectCompleted && status != models.ProjectCanceled {
		return failure("invalid project status %q; must be one of: %s, %s, %s",
			in.Status, models.ProjectActive, models.ProjectCompleted, models.ProjectCanceled)
	}

	if existing, err := e.db.FindProjectByNameExact(ctx, tc.TeamID, name); err != nil {
		return failure("failed to check for duplicate project name: %v", err)
	} else if existing != nil {
		return failure("a project named %q already exists (%s)", existing.Name, existing.Key)
	}
	if existing, err := e.db.GetProjectByKey(ctx, tc.TeamID, key); err != nil {
		return failure("failed to check for duplicate project key: %v", err)
	} else if existing != nil {
		return failure("project key %q is already used by %q", key, existing.Name)
	}

	project := &models.Project{
		TeamID: tc.TeamID,
		Name:   name,
		Key:    key,
		Color:  strings.TrimSpace(in.Color),
		Status: status,
	}
	if desc := strings.TrimSpace(in.Description); !IsNullSentinel(desc) {
		project.Description = &desc
	}
	if icon := strings.TrimSpace(in.Icon); !IsNullSentinel(icon) {
		project.Icon = &icon
	}
	if !IsNullSentinel(in.Lead) {
		member := ResolveAssignee(tc, in.Lead)
		if member == nil {
			return failure("team member %q not found for project lead", in.Lead)
		}
		project.LeadID = &member.UserID
	}

	if err := e.db.CreateProject(ctx, project); err != nil {
		return failure("failed to create project: %v", err)
	}

	e.logger.Info("Project created via assistant",
		"team_id", tc.TeamID, "project", project.Key, "actor", actor.UserID)

	return success(project, "Created project %q (%s)", project.Name, project.Key)
}

// CreateProjects creates projects sequentially so each item sees keys taken
// by earlier items in the same batch.
func (e *Executor) CreateProjects(ctx context.Context, tc *TeamContext, actor Actor, items []ProjectInput) *ToolResult {
	if len(items) == 0 {
		return failure("no projects provided")
	}

	result := &ToolResult{}
	var created []any
	for i, in := range items {
		r := e.CreateProject(ctx, tc, actor, in)
		if r.Success {
			result.CreatedCount++
			created = append(created, r.Data)
		} else {
			result.FailedCount++
			name := strings.TrimSpace(in.Name)
			if name == "" {
				name = fmt.Sprintf("item %d", i+1)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, r.Error))
		}
	}
	result.Success = result.CreatedCount > 0
	result.Data = created
	result.Message = fmt.Sprintf("Created %d project(s), %d failed", result.CreatedCount, result.FailedCount)
	if !result.Success {
		result.Error = "no projects were created"
	}
	return result
}

// UpdateProjectParams locates a project by id, key or name and carries the
// partial update.
type UpdateProjectParams struct {
	ProjectID   string `json:"project_id,omitempty" jsonschema:"Project id (preferred when known)"`
	Project     string `json:"project,omitempty" jsonschema:"Project key or name to search for"`
	NewName     string `json:"new_name,omitempty" jsonschema:"New project name"`
	Description string `json:"description,omitempty" jsonschema:"New description"`
	Color       string `json:"color,omitempty" jsonschema:"New display color"`
	Icon        string `json:"icon,omitempty" jsonschema:"New display icon"`
	Lead        string `json:"lead,omitempty" jsonschema:"New project lead: member id or name; 'unassigned' to clear"`
	Status      string `json:"status,omitempty" jsonschema:"New status: active, completed, or canceled"`
}

// UpdateProject locates one project and applies a partial update.
func (e *Executor) UpdateProject(ctx context.Context, tc *TeamContext, actor Actor, params UpdateProjectParams) *ToolResult {
	project, fail := e.findProject(ctx, tc, params.ProjectID, params.Project)
	if fail != nil {
		return fail
	}

	updates := make(map[string]any)

	if newName := strings.TrimSpace(params.NewName); !IsNullSentinel(newName) {
		if existing, err := e.db.FindProjectByNameExact(ctx, tc.TeamID, newName); err != nil {
			return failure("failed to check for duplicate project name: %v", err)
		} else if existing != nil && existing.ID != project.ID {
			return failure("a project named %q already exists (%s)", existing.Name, existing.Key)
		}
		updates["name"] = newName
	}
	if !IsNullSentinel(params.Description) {
		updates["description"] = strings.TrimSpace(params.Description)
	}
	if color := strings.TrimSpace(params.Color); !IsNullSentinel(color) {
		updates["color"] = color
	}
	if icon := strings.TrimSpace(params.Icon); !IsNullSentinel(icon) {
		updates["icon"] = icon
	}
	if params.Lead != "" {
		if isUnassignedSentinel(params.Lead) {
			updates["lead_id"] = nil
		} else {
			member := ResolveAssignee(tc, params.Lead)
			if member == nil {
				return failure("team member %q not found for project lead", params.Lead)
			}
			updates["lead_id"] = member.UserID
		}
	}
	if !IsNullSentinel(params.Status) {
		status := strings.ToLower(strings.TrimSpace(params.Status))
		if status != models.ProjectActive && status != models.ProjectCompleted && status != models.ProjectCanceled {
			return failure("invalid project status %q; must be one of: %s, %s, %s",
				params.Status, models.ProjectActive, models.ProjectCompleted, models.ProjectCanceled)
		}
		updates["status"] = status
	}

	if len(updates) == 0 {
		return failure("no fields to update for project %q", project.Name)
	}

	if err := e.db.UpdateProject(ctx, tc.TeamID, project.ID, updates); err != nil {
		return failure("failed to update project: %v", err)
	}

	updated, err := e.db.GetProjectByID(ctx, tc.TeamID, project.ID)
	if err != nil || updated == nil {
		updated = project
	}
	return success(updated, "Updated project %q (%s)", updated.Name, updated.Key)
}

// DeleteProjectParams locates a project by id, key or name.
type DeleteProjectParams struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"Project id (preferred when known)"`
	Project   string `json:"project,omitempty" jsonschema:"Project key or name to search for"`
}

// DeleteProject locates one project and deletes it. Issues in the project
// survive with their project link cleared.
func (e *Executor) DeleteProject(ctx context.Context, tc *TeamContext, actor Actor, params DeleteProjectParams) *ToolResult {
	project, fail := e.findProject(ctx, tc, params.ProjectID, params.Project)
	if fail != nil {
		return fail
	}

	if err := e.db.DeleteProject(ctx, tc.TeamID, project.ID); err != nil {
		return failure("failed to delete project: %v", err)
	}

	e.logger.Info("Project deleted via assistant",
		"team_id", tc.TeamID, "project", project.Key, "actor", actor.UserID)

	return success(nil, "Deleted project %q (%s); its issues were kept and detached", project.Name, project.Key)
}

// ListProjectsParams optionally filters the project listing.
type ListProjectsParams struct {
	Status string `json:"status,omitempty" jsonschema:"Filter by status: active, completed, or canceled"`
}

// ListProjects returns the team's projects from the turn snapshot.
func (e *Executor) ListProjects(ctx context.Context, tc *TeamContext, params ListProjectsParams) *ToolResult {
	status := strings.ToLower(strings.TrimSpace(params.Status))
	if status == "" {
		return success(tc.Projects, "Found %d project(s)", len(tc.Projects))
	}

	filtered := make([]ProjectInfo, 0, len(tc.Projects))
	for _, p := range tc.Projects {
		if p.Status == status {
			filtered = append(filtered, p)
		}
	}
	return success(filtered, "Found %d %s project(s)", len(filtered), status)
}

// findProject implements the lookup-by-reference pattern for projects:
// id first, then exact key, then a case-insensitive substring search over
// names that must yield exactly one match.
func (e *Executor) findProject(ctx context.Context, tc *TeamContext, id, ref string) (*models.Project, *ToolResult) {
	if !IsNullSentinel(id) {
		project, err := e.db.GetProjectByID(ctx, tc.TeamID, strings.TrimSpace(id))
		if err != nil {
			return nil, failure("failed to look up project: %v", err)
		}
		if project == nil {
			return nil, failure("no project found with id %q", id)
		}
		return project, nil
	}

	ref = strings.TrimSpace(ref)
	if IsNullSentinel(ref) {
		return nil, failure("a project id, key, or name is required")
	}

	if project, err := e.db.GetProjectByKey(ctx, tc.TeamID, ref); err != nil {
		return nil, failure("failed to look up project: %v", err)
	} else if project != nil {
		return project, nil
	}

	matches, err := e.db.SearchProjectsByName(ctx, tc.TeamID, ref)
	if err != nil {
		return nil, failure("failed to search projects: %v", err)
	}
	switch len(matches) {
	case 0:
		return nil, failure("no project found matching %q. Available projects: %s", ref, strings.Join(projectChoices(tc), ", "))
	case 1:
		return matches[0], nil
	default:
		labels := make([]string, 0, len(matches))
		for _, m := range matches {
			labels = append(labels, fmt.Sprintf("%q (%s)", m.Name, m.Key))
		}
		return nil, failure("multiple projects match %q: %s. Specify which one", ref, strings.Join(labels, ", "))
	}
}

// deriveProjectKey builds a 3-character key from the first alphanumeric
// runes of the name, padded with X when the name is too short.
func deriveProjectKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= 3 {
				break
			}
		}
	}
	key := b.String()
	for len(key) < 3 {
		key += "X"
	}
	return key
}
