// Package recovery implements the Recovery Loop (C12): on startup, and on
// a periodic tick thereafter, it reconciles every persisted active task
// against live container state, so a process restart never strands a task
// that is still actually running, and never leaves a finalization stuck
// half-done.
//
// Grounded on the teacher's controller.go signal-handling goroutine
// (setupShutdownHandler's `select { case <-sigChan: ...; case <-ctx.Done():
// ... }` loop), inverted: instead of detaching work on shutdown, Recovery
// re-attaches work on boot and on every tick after.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/midoriai/agents-runner/internal/container"
	"github.com/midoriai/agents-runner/internal/finalizer"
	"github.com/midoriai/agents-runner/internal/logging"
	"github.com/midoriai/agents-runner/internal/persistence"
	"github.com/midoriai/agents-runner/internal/supervisor"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// DefaultInterval is how often the periodic reconciliation tick runs when
// the caller does not override it.
const DefaultInterval = 30 * time.Second

// MissingContainerError is the error stamped onto a task whose container
// vanished across a restart (§4.11).
const MissingContainerError = "container missing on restart"

// Recovery owns the reconciliation loop. It is safe to construct with a nil
// Supervisor if the process only ever wants the finalization-requeue half
// of reconciliation (e.g. a one-shot `runnerctl recover` invocation).
type Recovery struct {
	Store      *persistence.Store
	Driver     *container.Driver
	Supervisor *supervisor.Supervisor
	Finalizer  *finalizer.Finalizer
	Logger     *logging.Logger
	Interval   time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

// New constructs a Recovery with DefaultInterval.
func New(store *persistence.Store, driver *container.Driver, sup *supervisor.Supervisor, fin *finalizer.Finalizer, logger *logging.Logger) *Recovery {
	return &Recovery{
		Store:      store,
		Driver:     driver,
		Supervisor: sup,
		Finalizer:  fin,
		Logger:     logger,
		Interval:   DefaultInterval,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run performs an immediate reconciliation pass and then repeats it every
// Interval until ctx is cancelled. Intended to be started once, early in
// process startup, in its own goroutine.
func (r *Recovery) Run(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Recovery) tick(ctx context.Context) {
	if err := r.Reconcile(ctx); err != nil {
		r.Logger.Warn("recovery", "", "reconciliation pass failed: %v", err)
	}
}

// Reconcile runs one reconciliation pass over every persisted active task,
// per §4.11. It is exported so `runnerctl recover` can run a single pass
// synchronously without starting the ticking loop.
func (r *Recovery) Reconcile(ctx context.Context) error {
	_, envs, err := r.Store.LoadState()
	if err != nil {
		return fmt.Errorf("recovery: load state: %w", err)
	}
	tasks, err := r.Store.ListActiveTasks()
	if err != nil {
		return fmt.Errorf("recovery: list active tasks: %w", err)
	}

	for _, t := range tasks {
		env := envs[t.EnvironmentID]
		r.reconcileOne(ctx, t, env)
	}
	return nil
}

func (r *Recovery) reconcileOne(ctx context.Context, t *taskmodel.Task, env *taskmodel.Environment) {
	if t.Status.IsTerminal() {
		if t.FinalizationState != taskmodel.FinalizationDone {
			r.requeueFinalization(t, env)
		}
		return
	}

	if t.ContainerID != "" {
		state, err := r.Driver.InspectState(ctx, t.ContainerID)
		if err == nil {
			r.Logger.Info("recovery", t.TaskID, "container %s still alive (status=%s), re-attaching", t.ContainerID, state.Status)
			r.reattach(t, env)
			return
		}
		if err != container.ErrNoSuchContainer {
			r.Logger.Warn("recovery", t.TaskID, "inspect failed, leaving task as-is this tick: %v", err)
			return
		}
	}

	// Container is missing (or was never assigned yet). An interactive
	// task in an active, pre-running status may still be launching; leave
	// it for the next tick rather than failing it prematurely.
	if t.Interactive && t.Status.IsActive() && t.Status != taskmodel.StatusRunning {
		return
	}

	t.Status = taskmodel.StatusFailed
	t.Error = MissingContainerError
	if t.ExitCode == 0 {
		t.ExitCode = 1
	}
	t.FinishedAt = r.Now()
	if err := r.Store.SaveTask(t); err != nil {
		r.Logger.Warn("recovery", t.TaskID, "save after marking failed: %v", err)
	}
	r.requeueFinalization(t, env)
}

// reattach hands a still-alive container back to the Supervisor's
// log-follow/poll pair. A nil Supervisor means this Recovery instance only
// handles the finalization-requeue half of reconciliation; in that case the
// task is left exactly as found for a fuller process to pick up.
func (r *Recovery) reattach(t *taskmodel.Task, env *taskmodel.Environment) {
	if r.Supervisor == nil {
		return
	}
	go func() {
		if err := r.Supervisor.Resume(context.Background(), t, env); err != nil {
			r.Logger.Warn("recovery", t.TaskID, "resume failed: %v", err)
		}
	}()
}

// requeueFinalization starts (or re-starts) finalization for a terminal
// task whose finalization never reached "done", per §4.11's third bullet.
// RunRecovery's own two-guard dedup makes this safe to call redundantly on
// every tick.
func (r *Recovery) requeueFinalization(t *taskmodel.Task, env *taskmodel.Environment) {
	stagingDir := fmt.Sprintf("%s/artifacts/%s/staging", r.Store.DataDir, t.TaskID)
	go func() {
		finCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.Finalizer.RunRecovery(finCtx, t, env, stagingDir); err != nil && err != finalizer.ErrAlreadyFinalizing {
			r.Logger.Warn("recovery", t.TaskID, "finalization requeue failed: %v", err)
		}
	}()
}
