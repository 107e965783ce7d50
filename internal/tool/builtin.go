package tool

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/locks"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// RegisterBuiltins adds the standard local tools. File tools serialize
// access through the shared lock registry so two agents never touch the
// same path at once.
func RegisterBuiltins(r *Registry, lockReg *locks.Registry) error {
	builtins := []Tool{
		echoTool{},
		sleepTool{},
		envTool{},
		fileReadTool{locks: lockReg},
		fileWriteTool{locks: lockReg},
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

type echoTool struct{}

func (echoTool) ID() string          { return "echo" }
func (echoTool) Description() string { return "Returns its message parameter unchanged" }

func (echoTool) Execute(_ context.Context, params map[string]any) (any, error) {
	if msg, ok := params["message"]; ok {
		return msg, nil
	}
	return "", nil
}

type sleepTool struct{}

func (sleepTool) ID() string          { return "sleep" }
func (sleepTool) Description() string { return "Waits for the given duration" }

func (sleepTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	raw, _ := params["duration"].(string)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, types.NewErrorf(types.TOOL_API_FAILED, "invalid duration %q", raw)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return fmt.Sprintf("slept %s", d), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type envTool struct{}

func (envTool) ID() string          { return "env" }
func (envTool) Description() string { return "Looks up an environment variable" }

func (envTool) Execute(_ context.Context, params map[string]any) (any, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, types.NewError(types.TOOL_API_FAILED, "env requires a name parameter")
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, types.NewErrorf(types.TOOL_API_FAILED, "environment variable %s is not set", name)
	}
	return value, nil
}

type fileReadTool struct {
	locks *locks.Registry
}

func (fileReadTool) ID() string          { return "file_read" }
func (fileReadTool) Description() string { return "Reads a file under the shared file lock" }

func (t fileReadTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, types.NewError(types.TOOL_FILESYSTEM_FAILED, "file_read requires a path parameter")
	}

	var content string
	err := t.locks.WithFile(path, func() error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return types.WrapError(types.TOOL_FILESYSTEM_FAILED, "failed to read file", readErr)
		}
		content = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

type fileWriteTool struct {
	locks *locks.Registry
}

func (fileWriteTool) ID() string          { return "file_write" }
func (fileWriteTool) Description() string { return "Writes a file under the shared file lock" }

func (t fileWriteTool) Execute(_ context.Context, params map[string]any) (any, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, types.NewError(types.TOOL_FILESYSTEM_FAILED, "file_write requires a path parameter")
	}
	content, _ := params["content"].(string)

	err := t.locks.WithFile(path, func() error {
		if writeErr := os.WriteFile(path, []byte(content), 0o644); writeErr != nil {
			return types.WrapError(types.TOOL_FILESYSTEM_FAILED, "failed to write file", writeErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}
