package cli

import (
	"context"
	"fmt"

	"github.com/centinela-ac/centinela/internal/app"
)

// Run dispatches a management subcommand. Supported:
//
//	jobs trigger <task>   enqueue a background task by type
//	jobs inspect          print default queue statistics
func Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("cli: missing subcommand")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	switch args[0] {
	case "jobs":
		return runJobs(cfg, args[1:])
	default:
		return fmt.Errorf("cli: unknown subcommand %q", args[0])
	}
}

func runJobs(cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("cli: jobs requires an action (trigger, inspect)")
	}

	cli, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	ctx := context.Background()
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("cli: jobs trigger requires a task type")
		}
		info, err := cli.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "inspect":
		stats, err := cli.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("cli: unknown jobs action %q", args[0])
	}
}
