package runnercli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/midoriai/agents-runner/internal/recovery"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the recovery loop in the foreground until interrupted",
	Long: `daemon runs an initial reconciliation pass immediately, then repeats
it on the configured recovery.interval tick, re-attaching supervision to
containers that are still alive and requeuing finalization for tasks stuck
mid-drain. It exits on SIGINT/SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	rec := recovery.New(rt.Store, rt.Driver, rt.Supervisor, rt.Finalizer, rt.Logger)
	rec.Interval = rt.Config.RecoveryInterval()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		rt.Logger.Info("daemon", "", "received signal %v, shutting down", sig)
		cancel()
	}()

	fmt.Println("runnerctl daemon started, recovery interval", rec.Interval)
	rec.Run(ctx)
	fmt.Println("runnerctl daemon stopped")
	return nil
}
