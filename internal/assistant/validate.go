package assistant

import (
	"fmt"
	"strings"
)

// IssueInput is the loosely-typed issue payload as it arrives from the
// model. Alias fields (Project, State, Assignee) accept the names the model
// tends to use interchangeably with the canonical id fields.
type IssueInput struct {
	Title           string   `json:"title,omitempty" jsonschema:"Issue title (required)"`
	Description     string   `json:"description,omitempty" jsonschema:"Issue description in markdown"`
	Priority        string   `json:"priority,omitempty" jsonschema:"Priority: none, low, medium, high, or urgent (required, never guessed)"`
	ProjectID       string   `json:"project_id,omitempty" jsonschema:"Project id, key, or name (required)"`
	Project         string   `json:"project,omitempty" jsonschema:"Alias for project_id"`
	WorkflowStateID string   `json:"workflow_state_id,omitempty" jsonschema:"Workflow state id or name (required)"`
	State           string   `json:"state,omitempty" jsonschema:"Alias for workflow_state_id"`
	AssigneeID      string   `json:"assignee_id,omitempty" jsonschema:"Assignee user id or name; 'unassigned' clears"`
	Assignee        string   `json:"assignee,omitempty" jsonschema:"Alias for assignee_id"`
	Estimate        *int     `json:"estimate,omitempty" jsonschema:"Point estimate"`
	Labels          []string `json:"labels,omitempty" jsonschema:"Label ids or names; unknown labels are skipped"`
}

// issueCandidate is the canonical payload after alias normalization. Field
// values may still be sentinel strings; validation handles those.
type issueCandidate struct {
	Title           string
	Description     string
	Priority        string
	ProjectRef      string
	WorkflowRef     string
	AssigneeRef     string
	AssigneeGiven   bool // whether any assignee field was supplied at all
	Estimate        *int
	LabelRefs       []string
}

// issueAliases maps alias field names onto their canonical counterparts.
// Kept as an explicit table so the mapping is auditable in one place; the
// canonical field wins when both are supplied.
var issueAliases = map[string]string{
	"project":  "project_id",
	"state":    "workflow_state_id",
	"assignee": "assignee_id",
}

// normalize applies the alias table and trims the input into one canonical
// candidate.
func (in IssueInput) normalize() issueCandidate {
	c := issueCandidate{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    strings.TrimSpace(in.Priority),
		ProjectRef:  firstSupplied(in.ProjectID, in.Project),
		WorkflowRef: firstSupplied(in.WorkflowStateID, in.State),
		Estimate:    in.Estimate,
		LabelRefs:   in.Labels,
	}
	c.AssigneeRef = firstSupplied(in.AssigneeID, in.Assignee)
	c.AssigneeGiven = in.AssigneeID != "" || in.Assignee != ""
	return c
}

// firstSupplied returns the canonical value when present, else the alias.
// Sentinel strings count as supplied here; the validators decide what they
// mean.
func firstSupplied(canonical, alias string) string {
	if strings.TrimSpace(canonical) != "" {
		return strings.TrimSpace(canonical)
	}
	return strings.TrimSpace(alias)
}

// ValidationReport lists which required fields are absent from a candidate.
type ValidationReport struct {
	IsValid       bool
	MissingFields []string
}

// ValidateIssueFields checks the required set for issue creation: title,
// workflow state, priority, project. A field is missing when it is empty,
// whitespace (title), or one of the model's null sentinels. Priority is
// deliberately not defaulted; the agent must make an explicit choice.
func ValidateIssueFields(c issueCandidate) ValidationReport {
	var missing []string

	if IsNullSentinel(c.Title) {
		missing = append(missing, "title")
	}
	if IsNullSentinel(c.WorkflowRef) {
		missing = append(missing, "workflowStateId")
	}
	if IsNullSentinel(c.Priority) {
		missing = append(missing, "priority")
	}
	if IsNullSentinel(c.ProjectRef) {
		missing = append(missing, "projectId")
	}

	return ValidationReport{
		IsValid:       len(missing) == 0,
		MissingFields: missing,
	}
}

// FormatValidationError builds the remediation message for a failed
// validation. When the project is among the missing fields, the available
// "name (key)" pairs are appended so the model can ask a targeted follow-up
// instead of guessing.
func FormatValidationError(missingFields []string, tc *TeamContext) string {
	msg := fmt.Sprintf("Missing required fields: %s.", strings.Join(missingFields, ", "))
	for _, f := range missingFields {
		if f == "projectId" && len(tc.Projects) > 0 {
			msg += fmt.Sprintf(" Available projects: %s.", strings.Join(projectChoices(tc), ", "))
			break
		}
	}
	return msg
}
