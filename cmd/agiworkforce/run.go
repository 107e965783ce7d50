package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/config"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/events"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/orchestrator"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/recovery"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/runtime"
	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run <goals-file>",
	Short: "Run every goal in a YAML goal file to completion",
	Long: `Run loads a goal file, spawns one agent per goal, streams lifecycle
events to the terminal, and waits for every agent to finish.`,
	Args: cobra.ExactArgs(1),
	RunE: runGoals,
}

func runGoals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loader := config.NewLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Core.Debug = true
	}
	if cfg.Core.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Core.Timeout)
		defer cancel()
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	specs, err := loadGoalFile(args[0])
	if err != nil {
		return err
	}

	goals := make([]types.Goal, 0, len(specs))
	for _, spec := range specs {
		rt.Planner.Define(spec.ID, spec.Steps)
		goals = append(goals, spec.Goal)
	}

	sub, cleanup := rt.Bus.Subscribe(ctx, events.Filter{}, 256)
	defer cleanup()

	var results []orchestrator.AgentResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case event, ok := <-sub:
				if !ok {
					return nil
				}
				printEvent(cmd, event)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		defer cleanup()
		if _, err := rt.Orchestrator.SpawnParallel(gctx, goals); err != nil {
			return err
		}
		results, err = rt.Orchestrator.WaitForAll(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	printResults(cmd, rt, results)

	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d agents failed", failed, len(results))
	}
	return nil
}

func printEvent(cmd *cobra.Command, event events.Event) {
	switch payload := event.Payload.(type) {
	case events.StepStartedPayload:
		cmd.Printf("  [%s] step %d (%s): %s\n",
			event.AgentID, payload.StepIndex+1, payload.ToolID, payload.Description)
	case events.StepCompletedPayload:
		if payload.Success {
			cmd.Printf("  [%s] step %d done in %s\n",
				event.AgentID, payload.StepIndex+1, payload.Duration.Round(time.Millisecond))
		} else {
			cmd.Printf("  [%s] step %d failed: %s\n",
				event.AgentID, payload.StepIndex+1, payload.Error)
		}
	case events.GoalAchievedPayload:
		cmd.Printf("  [%s] goal achieved after %d steps\n", event.AgentID, payload.StepsExecuted)
	case events.GoalFailedPayload:
		cmd.Printf("  [%s] goal failed: %s\n", event.AgentID, payload.Error)
	case events.AgentSpawnedPayload:
		cmd.Printf("[%s] %s pursuing goal %s\n", payload.AgentID, payload.AgentName, payload.GoalID.Short())
	case events.AgentCancelledPayload:
		cmd.Printf("[%s] cancelled: %s\n", payload.AgentID, payload.Reason)
	default:
		if verbose {
			cmd.Printf("  [%s] %s\n", event.AgentID, event.Type)
		}
	}
}

func printResults(cmd *cobra.Command, rt *runtime.Runtime, results []orchestrator.AgentResult) {
	cmd.Println()
	for _, result := range results {
		status := "OK"
		if !result.Success {
			status = "FAILED"
		} else if !result.Achieved {
			status = "DONE (criteria unmet)"
		}
		cmd.Printf("%-14s goal=%s %-22s %s\n",
			result.AgentID, result.GoalID.Short(), status, result.Duration.Round(time.Millisecond))

		if result.Error != "" {
			action := rt.Recovery.Recover(cmd.Context(), errors.New(result.Error))
			if action.Kind != recovery.ActionAbort {
				cmd.Printf("%-14s   suggested recovery: %s\n", "", action)
			}
		}
	}
}
