// Package runtime assembles the process-wide object graph: logger,
// event bus, knowledge store, lock registry, resource manager, tool
// registry, planner, recovery manager, and the orchestrator on top.
// The runtime is built once at startup and passed by reference; there
// is no global state.
package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/config"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/engine"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/events"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/knowledge"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/locks"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/orchestrator"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/planner"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/recovery"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/resource"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/tool"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Runtime owns every long-lived component of the process.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Bus          *events.Bus
	Locks        *locks.Registry
	Resources    *resource.Manager
	Knowledge    *knowledge.Store
	Tools        *tool.Registry
	Planner      *planner.Static
	Recovery     *recovery.Manager
	Orchestrator *orchestrator.Orchestrator
}

// New builds the runtime from configuration. Components are constructed
// bottom-up; a failure tears down whatever was already opened.
func New(cfg *config.Config) (*Runtime, error) {
	logger := BuildLogger(cfg.Logging, cfg.Core.Debug)

	for _, dir := range []string{cfg.Core.HomeDir, cfg.Core.DataDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to create directory", err)
		}
	}

	bus := events.NewBus(events.WithErrorHandler(func(err error, attrs map[string]any) {
		logger.Debug("event dropped", "error", err, "attrs", attrs)
	}))

	lockReg := locks.NewRegistry()

	tools := tool.NewRegistry(logger)
	if err := tool.RegisterBuiltins(tools, lockReg); err != nil {
		bus.Close()
		return nil, err
	}

	resources := resource.NewManager(types.ResourceSpec{
		CPUPercent:  cfg.Resources.CPUPercent,
		MemoryMB:    cfg.Resources.MemoryMB,
		NetworkMbps: cfg.Resources.NetworkMbps,
	}, tools.IDs(), logger)

	kb, err := knowledge.Open(knowledge.Config{
		Path:         cfg.Knowledge.Path,
		MaxOpenConns: cfg.Knowledge.MaxConnections,
		MaxIdleConns: cfg.Knowledge.MaxConnections / 2,
		BusyTimeout:  cfg.Knowledge.BusyTimeout,
		MaxEntries:   cfg.Knowledge.MaxEntries,
	}, logger)
	if err != nil {
		bus.Close()
		return nil, err
	}

	plan := planner.NewStatic(logger)

	orch := orchestrator.New(orchestrator.Config{
		MaxAgents:    cfg.Orchestrator.MaxAgents,
		PollInterval: cfg.Orchestrator.PollInterval,
		Engine: engine.Config{
			ResourceBackoff: cfg.Engine.ResourceBackoff,
			IdleInterval:    cfg.Engine.IdleInterval,
		},
		Planner:   plan,
		Executor:  tools,
		Resources: resources,
		Knowledge: kb,
		Bus:       bus,
		Logger:    logger,
	})

	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Bus:          bus,
		Locks:        lockReg,
		Resources:    resources,
		Knowledge:    kb,
		Tools:        tools,
		Planner:      plan,
		Recovery:     recovery.NewManager(logger),
		Orchestrator: orch,
	}, nil
}

// Close tears the runtime down in reverse construction order.
func (r *Runtime) Close(ctx context.Context) error {
	if r.Orchestrator != nil {
		r.Orchestrator.CancelAllAgents(ctx)
	}

	var firstErr error
	if r.Knowledge != nil {
		if err := r.Knowledge.Close(); err != nil {
			firstErr = err
		}
	}
	if r.Bus != nil {
		if err := r.Bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildLogger creates an slog.Logger from logging configuration. Debug
// mode lowers the level to debug regardless of the configured level.
func BuildLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
