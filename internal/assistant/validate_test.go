package assistant

import (
	"strings"
	"testing"
)

func TestNormalizeAliases(t *testing.T) {
	t.Run("canonical fields win over aliases", func(t *testing.T) {
		in := IssueInput{
			Title:           "Fix login",
			ProjectID:       "WEB",
			Project:         "Mobile App",
			WorkflowStateID: "Todo",
			State:           "Done",
			AssigneeID:      "user-1",
			Assignee:        "bob",
		}
		c := in.normalize()
		if c.ProjectRef != "WEB" {
			t.Errorf("ProjectRef = %q, want WEB", c.ProjectRef)
		}
		if c.WorkflowRef != "Todo" {
			t.Errorf("WorkflowRef = %q, want Todo", c.WorkflowRef)
		}
		if c.AssigneeRef != "user-1" {
			t.Errorf("AssigneeRef = %q, want user-1", c.AssigneeRef)
		}
	})

	t.Run("aliases fill in when canonical absent", func(t *testing.T) {
		in := IssueInput{Project: "Mobile App", State: "Done", Assignee: "bob"}
		c := in.normalize()
		if c.ProjectRef != "Mobile App" || c.WorkflowRef != "Done" || c.AssigneeRef != "bob" {
			t.Errorf("aliases not applied: %+v", c)
		}
	})

	t.Run("assignee presence is tracked separately from value", func(t *testing.T) {
		c := IssueInput{Title: "x"}.normalize()
		if c.AssigneeGiven {
			t.Error("AssigneeGiven should be false when no assignee field supplied")
		}
		c = IssueInput{Title: "x", Assignee: "unassigned"}.normalize()
		if !c.AssigneeGiven {
			t.Error("AssigneeGiven should be true for the unassigned sentinel")
		}
	})

	t.Run("title is trimmed", func(t *testing.T) {
		c := IssueInput{Title: "  Fix login  "}.normalize()
		if c.Title != "Fix login" {
			t.Errorf("Title = %q", c.Title)
		}
	})
}

func TestValidateIssueFields(t *testing.T) {
	valid := issueCandidate{
		Title:       "Fix login",
		Priority:    "high",
		ProjectRef:  "WEB",
		WorkflowRef: "Todo",
	}

	t.Run("complete candidate passes", func(t *testing.T) {
		report := ValidateIssueFields(valid)
		if !report.IsValid || len(report.MissingFields) != 0 {
			t.Fatalf("expected valid, got %+v", report)
		}
	})

	t.Run("whitespace-only title is missing", func(t *testing.T) {
		c := valid
		c.Title = "   "
		report := ValidateIssueFields(c)
		if report.IsValid || len(report.MissingFields) != 1 || report.MissingFields[0] != "title" {
			t.Fatalf("expected title missing, got %+v", report)
		}
	})

	t.Run("priority is never defaulted", func(t *testing.T) {
		c := valid
		c.Priority = ""
		report := ValidateIssueFields(c)
		if report.IsValid {
			t.Fatal("expected invalid when priority absent")
		}
		if report.MissingFields[0] != "priority" {
			t.Errorf("missing = %v, want [priority]", report.MissingFields)
		}
	})

	t.Run("null sentinels count as missing", func(t *testing.T) {
		c := issueCandidate{
			Title:       "null",
			Priority:    "undefined",
			ProjectRef:  "NULL",
			WorkflowRef: "",
		}
		report := ValidateIssueFields(c)
		if report.IsValid {
			t.Fatal("expected invalid")
		}
		want := []string{"title", "workflowStateId", "priority", "projectId"}
		if len(report.MissingFields) != len(want) {
			t.Fatalf("missing = %v, want %v", report.MissingFields, want)
		}
		for i := range want {
			if report.MissingFields[i] != want[i] {
				t.Errorf("missing[%d] = %q, want %q", i, report.MissingFields[i], want[i])
			}
		}
	})
}

func TestFormatValidationError(t *testing.T) {
	tc := testTeamContext()

	t.Run("lists missing field names", func(t *testing.T) {
		msg := FormatValidationError([]string{"title", "priority"}, tc)
		if !strings.Contains(msg, "Missing required fields: title, priority.") {
			t.Errorf("unexpected message: %q", msg)
		}
		if strings.Contains(msg, "Available projects") {
			t.Errorf("project list should not appear when projectId is present: %q", msg)
		}
	})

	t.Run("appends project choices when projectId missing", func(t *testing.T) {
		msg := FormatValidationError([]string{"projectId"}, tc)
		if !strings.Contains(msg, "Available projects:") {
			t.Fatalf("expected project list in %q", msg)
		}
		if !strings.Contains(msg, "Website Redesign (WEB)") || !strings.Contains(msg, "Mobile App (MOB)") {
			t.Errorf("project choices malformed: %q", msg)
		}
	})

	t.Run("omits project list for a team with no projects", func(t *testing.T) {
		empty := &TeamContext{TeamID: "team-2"}
		msg := FormatValidationError([]string{"projectId"}, empty)
		if strings.Contains(msg, "Available projects") {
			t.Errorf("unexpected project list: %q", msg)
		}
	})
}
