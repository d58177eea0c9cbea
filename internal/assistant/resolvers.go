package assistant

import "strings"

// Model-generated tool arguments frequently carry the strings "null" or
// "undefined" where a field was meant to be absent. IsNullSentinel is the
// single predicate for that quirk; every resolver and validator goes through
// it rather than comparing strings locally.
func IsNullSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "undefined":
		return true
	}
	return false
}

// isUnassignedSentinel additionally recognizes the "no assignee" spelling
// used by the model for assignee fields.
func isUnassignedSentinel(s string) bool {
	return IsNullSentinel(s) || strings.EqualFold(strings.TrimSpace(s), "unassigned")
}

// ResolveWorkflowState maps a reference to a workflow state id. Matching is
// id-exact first, then case-insensitive exact on name. There is no fuzzy
// fallback: an unrecognized name returns nil and the caller reports the
// available names.
func ResolveWorkflowState(tc *TeamContext, ref string) *WorkflowStateInfo {
	if IsNullSentinel(ref) {
		return nil
	}
	ref = strings.TrimSpace(ref)

	for i := range tc.WorkflowStates {
		if tc.WorkflowStates[i].ID == ref {
			return &tc.WorkflowStates[i]
		}
	}
	for i := range tc.WorkflowStates {
		if strings.EqualFold(tc.WorkflowStates[i].Name, ref) {
			return &tc.WorkflowStates[i]
		}
	}
	return nil
}

// ResolveProject maps a reference to a project: id-exact, then key
// (case-insensitive exact), then name (case-insensitive substring, first
// match in team order). Users refer to projects by partial names in
// conversation; keys and ids are unambiguous so they take priority.
func ResolveProject(tc *TeamContext, ref string) *ProjectInfo {
	if IsNullSentinel(ref) {
		return nil
	}
	ref = strings.TrimSpace(ref)

	for i := range tc.Projects {
		if tc.Projects[i].ID == ref {
			return &tc.Projects[i]
		}
	}
	for i := range tc.Projects {
		if strings.EqualFold(tc.Projects[i].Key, ref) {
			return &tc.Projects[i]
		}
	}
	lowered := strings.ToLower(ref)
	for i := range tc.Projects {
		if strings.Contains(strings.ToLower(tc.Projects[i].Name), lowered) {
			return &tc.Projects[i]
		}
	}
	return nil
}

// ResolveAssignee maps a reference to a team member: user id exact, then
// user name case-insensitive substring. The "unassigned"/"null"/"undefined"
// sentinels and the empty string resolve to nil, which callers normalize to
// "no assignee" rather than treating as a failure.
func ResolveAssignee(tc *TeamContext, ref string) *MemberInfo {
	if isUnassignedSentinel(ref) {
		return nil
	}
	ref = strings.TrimSpace(ref)

	for i := range tc.Members {
		if tc.Members[i].UserID == ref {
			return &tc.Members[i]
		}
	}
	lowered := strings.ToLower(ref)
	for i := range tc.Members {
		if strings.Contains(strings.ToLower(tc.Members[i].UserName), lowered) {
			return &tc.Members[i]
		}
	}
	return nil
}

// ResolveLabelIDs maps each reference (id, or case-insensitive exact or
// substring name) independently to a label id. Entries with no match are
// silently dropped: labels are additive, so partial resolution should not
// block issue creation.
func ResolveLabelIDs(tc *TeamContext, refs []string) []string {
	var ids []string
	for _, ref := range refs {
		if label := resolveLabel(tc, ref); label != nil {
			ids = append(ids, label.ID)
		}
	}
	return ids
}

func resolveLabel(tc *TeamContext, ref string) *LabelInfo {
	if IsNullSentinel(ref) {
		return nil
	}
	ref = strings.TrimSpace(ref)

	for i := range tc.Labels {
		if tc.Labels[i].ID == ref {
			return &tc.Labels[i]
		}
	}
	for i := range tc.Labels {
		if strings.EqualFold(tc.Labels[i].Name, ref) {
			return &tc.Labels[i]
		}
	}
	lowered := strings.ToLower(ref)
	for i := range tc.Labels {
		if strings.Contains(strings.ToLower(tc.Labels[i].Name), lowered) {
			return &tc.Labels[i]
		}
	}
	return nil
}

// stateNames returns the display names of all workflow states, for
// remediation messages.
func stateNames(tc *TeamContext) []string {
	names := make([]string, 0, len(tc.WorkflowStates))
	for _, s := range tc.WorkflowStates {
		names = append(names, s.Name)
	}
	return names
}

// projectChoices returns `name (key)` pairs for all projects, for
// remediation messages.
func projectChoices(tc *TeamContext) []string {
	choices := make([]string, 0, len(tc.Projects))
	for _, p := range tc.Projects {
		choices = append(choices, p.Name+" ("+p.Key+")")
	}
	return choices
}
