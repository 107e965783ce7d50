package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

func writeGoalFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goals.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGoalFile(t *testing.T) {
	path := writeGoalFile(t, `
goals:
  - description: greet the operator
    priority: high
    success_criteria:
      - tool_succeeded:echo
    steps:
      - description: say hello
        tool_id: echo
        parameters:
          message: hello
  - description: wait a moment
    steps:
      - id: pause
        description: sleep briefly
        tool_id: sleep
        parameters:
          duration: 10ms
`)

	specs, err := loadGoalFile(path)
	if err != nil {
		t.Fatalf("loadGoalFile() error = %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d goals, want 2", len(specs))
	}

	first := specs[0]
	if first.Priority != types.PriorityHigh {
		t.Errorf("priority = %s, want high", first.Priority)
	}
	if first.ID.IsZero() {
		t.Error("goal without an ID should have been assigned one")
	}
	if first.Steps[0].ID == "" {
		t.Error("step without an ID should have been assigned one")
	}
	if got := specs[1].Steps[0].ID; got != "pause" {
		t.Errorf("declared step ID overwritten: %q", got)
	}
}

func TestLoadGoalFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", "goals: []"},
		{"missing description", "goals:\n  - priority: low\n    steps:\n      - tool_id: echo"},
		{"missing steps", "goals:\n  - description: stepless"},
		{"missing tool", "goals:\n  - description: toolless\n    steps:\n      - description: x"},
		{"bad priority", "goals:\n  - description: x\n    priority: urgent\n    steps:\n      - tool_id: echo"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadGoalFile(writeGoalFile(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadGoalFile_MissingFile(t *testing.T) {
	if _, err := loadGoalFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
