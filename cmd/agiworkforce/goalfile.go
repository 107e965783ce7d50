package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// goalFile is the YAML document passed to `agiworkforce run`.
type goalFile struct {
	Goals []goalSpec `yaml:"goals"`
}

// goalSpec pairs a goal with the plan steps that pursue it.
type goalSpec struct {
	types.Goal `yaml:",inline"`
	Steps      []types.Step `yaml:"steps"`
}

// loadGoalFile parses and sanity-checks a goal file. Goals without an
// ID get one assigned so the file can stay minimal.
func loadGoalFile(path string) ([]goalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read goal file", err)
	}

	var file goalFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse goal file", err)
	}
	if len(file.Goals) == 0 {
		return nil, types.NewError(types.GOAL_INVALID, "goal file declares no goals")
	}

	for i := range file.Goals {
		spec := &file.Goals[i]
		if spec.Description == "" {
			return nil, types.NewErrorf(types.GOAL_INVALID, "goal %d has no description", i+1)
		}
		if len(spec.Steps) == 0 {
			return nil, types.NewErrorf(types.GOAL_INVALID,
				"goal %q declares no steps", spec.Description)
		}
		if spec.ID.IsZero() {
			spec.ID = types.NewID()
		}
		if spec.Priority != "" && !spec.Priority.IsValid() {
			return nil, types.NewErrorf(types.GOAL_INVALID,
				"goal %q has invalid priority %q", spec.Description, spec.Priority)
		}
		for j := range spec.Steps {
			if spec.Steps[j].ToolID == "" {
				return nil, types.NewErrorf(types.GOAL_INVALID,
					"goal %q step %d names no tool", spec.Description, j+1)
			}
			if spec.Steps[j].ID == "" {
				spec.Steps[j].ID = fmt.Sprintf("%s-step-%d", spec.ID.Short(), j+1)
			}
		}
	}
	return file.Goals, nil
}
