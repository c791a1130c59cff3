package runnercli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/midoriai/agents-runner/internal/recovery"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run one reconciliation pass over persisted active tasks",
	Long: `recover reconciles persisted active tasks against live container
state: still-alive containers are re-attached to supervision, genuinely
gone containers are marked failed, and stuck finalizations are requeued.

It is the same pass runnerctl runs automatically on startup and on every
recovery tick while a runnerctl process is supervising tasks; this command
exists to trigger it out-of-band, e.g. after a host reboot when no runnerctl
process is currently running.`,
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	rec := recovery.New(rt.Store, rt.Driver, rt.Supervisor, rt.Finalizer, rt.Logger)
	if err := rec.Reconcile(cmd.Context()); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Println("recovery pass complete")
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Request a graceful stop of a running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runStopOrKill(false),
}

var killCmd = &cobra.Command{
	Use:   "kill <task-id>",
	Short: "Forcefully kill a running task's container",
	Args:  cobra.ExactArgs(1),
	RunE:  runStopOrKill(true),
}

func init() {
	rootCmd.AddCommand(stopCmd, killCmd)
}

func runStopOrKill(kill bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		taskID := args[0]
		task, err := rt.Store.LoadTask(taskID)
		if err != nil {
			return fmt.Errorf("load task %s: %w", taskID, err)
		}

		ctx := context.Background()
		if kill {
			err = rt.Supervisor.RequestKill(ctx, task)
		} else {
			err = rt.Supervisor.RequestStop(ctx, task)
		}
		if err != nil {
			return err
		}
		fmt.Printf("task %s: request accepted\n", taskID)
		return nil
	}
}
