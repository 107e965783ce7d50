package runtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/config"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Core.HomeDir = home
	cfg.Core.DataDir = filepath.Join(home, "data")
	cfg.Knowledge.Path = filepath.Join(home, "knowledge.db")
	cfg.Engine.ResourceBackoff = 5 * time.Millisecond
	cfg.Engine.IdleInterval = 5 * time.Millisecond
	return cfg
}

func TestNew_BuildsFullGraph(t *testing.T) {
	rt, err := New(testConfig(t))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.NotNil(t, rt.Logger)
	assert.NotNil(t, rt.Bus)
	assert.NotNil(t, rt.Locks)
	assert.NotNil(t, rt.Knowledge)
	assert.NotNil(t, rt.Recovery)
	assert.NotNil(t, rt.Orchestrator)

	// Built-in tools are advertised through the resource state.
	state := rt.Resources.State()
	assert.Contains(t, state.AvailableTools, "echo")
	assert.Contains(t, state.AvailableTools, "file_write")
	assert.Equal(t, float64(80), state.Limits.CPUPercent)
}

func TestRuntime_EndToEndGoal(t *testing.T) {
	rt, err := New(testConfig(t))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	ctx := context.Background()
	goal := types.Goal{
		ID:              types.NewID(),
		Description:     "write a status note",
		Priority:        types.PriorityHigh,
		SuccessCriteria: []string{"tool_succeeded:file_write"},
	}
	notePath := filepath.Join(rt.Config.Core.DataDir, "note.txt")
	rt.Planner.Define(goal.ID, []types.Step{
		{Description: "write the note", ToolID: "file_write", Parameters: map[string]any{
			"path": notePath, "content": "all systems nominal",
		}},
	})

	_, err = rt.Orchestrator.SpawnAgent(ctx, goal)
	require.NoError(t, err)

	results, err := rt.Orchestrator.WaitForAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.True(t, results[0].Achieved)

	// The experience trail landed in the knowledge base.
	entries, err := rt.Knowledge.Query(ctx, "file_write", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestClose_Idempotent(t *testing.T) {
	rt, err := New(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, rt.Close(context.Background()))
	// Second close only re-closes the SQLite handle, which is safe.
	assert.NoError(t, rt.Bus.Close())
}

func TestBuildLogger_Levels(t *testing.T) {
	logger := BuildLogger(config.LoggingConfig{Level: "error", Format: "text"}, false)
	assert.False(t, logger.Enabled(context.Background(), 0)) // info is filtered

	debug := BuildLogger(config.LoggingConfig{Level: "error"}, true)
	assert.True(t, debug.Enabled(context.Background(), -4)) // debug passes
}
