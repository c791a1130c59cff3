package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/midoriai/agents-runner/internal/container"
	"github.com/midoriai/agents-runner/internal/events"
	"github.com/midoriai/agents-runner/internal/finalizer"
	"github.com/midoriai/agents-runner/internal/preflight"
	"github.com/midoriai/agents-runner/internal/selector"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// emitDone emits the exactly-once-per-attempt KindDone event (§9).
func (s *Supervisor) emitDone(taskID string, outcome attemptOutcome) {
	s.emit(events.NewDone(taskID, outcome.exitCode, string(outcome.class), "", s.Now()))
}

// emitRetry emits a KindRetryAttempt event announcing the next attempt.
func (s *Supervisor) emitRetry(taskID string, attempt int, agentID string, backoff time.Duration) {
	s.emit(events.NewRetryAttempt(taskID, attempt, agentID, int(backoff.Seconds()), s.Now()))
}

// emitSwitched emits a KindAgentSwitched fallback-hop event.
func (s *Supervisor) emitSwitched(taskID, from, to string) {
	s.emit(events.NewAgentSwitched(taskID, from, to, s.Now()))
}

// PollInterval is how often the supervisor polls container state while an
// attempt is running, per §4.8's "inspect-poll" supervising goroutine.
const PollInterval = 750 * time.Millisecond

// fallbackBackoff is the wait before a fallback hop's first attempt (§5,
// scenario S3: on_retry_attempt(2, B, 0s) fires immediately after
// on_agent_switched, with no backoff — the standard/rate-limit backoff
// tables apply only to same-agent retries).
const fallbackBackoff = 0 * time.Second

// Launch drives t through admission, attempt execution, retry/fallback,
// and finalization, per the state machine in §4.8. It blocks until the
// task reaches a terminal status and finalization has been started;
// callers run it in its own goroutine per task.
func (s *Supervisor) Launch(ctx context.Context, t *taskmodel.Task, env *taskmodel.Environment) error {
	defer s.closeBus(t.TaskID)

	instance, err := s.Selector.Select(env, true)
	if err != nil {
		return s.fail(t, env, fmt.Sprintf("agent selection: %v", err))
	}

	sameAgentAttempts := 0
	attempt := 0

	for {
		if status, stopped := s.stopRequest(t.TaskID); stopped {
			return s.finish(t, env, status, "")
		}

		s.incActive(env.EnvID, instance.AgentID)
		outcome, err := s.runOneAttempt(ctx, t, env, instance)
		s.decActive(env.EnvID, instance.AgentID)
		attempt++

		if err != nil {
			return s.fail(t, env, err.Error())
		}

		t.AttemptHistory = append(t.AttemptHistory, taskmodel.AttemptRecord{
			Agent:          instance.AgentID,
			StartedAt:      outcome.startedAt,
			FinishedAt:     outcome.finishedAt,
			ExitCode:       outcome.exitCode,
			Classification: string(outcome.class),
		})
		s.emitDone(t.TaskID, outcome)
		_ = s.Store.SaveTask(t)

		if status, stopped := s.stopRequest(t.TaskID); stopped {
			return s.finish(t, env, status, "")
		}

		if outcome.class == ClassSuccess {
			return s.finish(t, env, taskmodel.StatusDone, "")
		}
		if !outcome.class.Retryable() {
			return s.finish(t, env, taskmodel.StatusFailed, fmt.Sprintf("attempt classified %s", outcome.class))
		}

		if outcome.class.SameAgentRetryAllowed() && sameAgentAttempts < s.Policy.MaxRetriesPerAgent {
			sameAgentAttempts++
			wait := backoffFor(s.Policy, outcome.class, sameAgentAttempts-1)
			s.emitRetry(t.TaskID, attempt+1, instance.AgentID, wait)
			s.sleepBackoff(ctx, wait)
			continue
		}

		if !s.Policy.FallbackEnabled {
			return s.finish(t, env, taskmodel.StatusFailed, fmt.Sprintf("attempt classified %s, no retries remaining", outcome.class))
		}
		next, ok := selector.FallbackNextHop(env, instance.AgentID)
		if !ok {
			return s.finish(t, env, taskmodel.StatusFailed, fmt.Sprintf("attempt classified %s, no fallback configured", outcome.class))
		}
		s.emitSwitched(t.TaskID, instance.AgentID, next.AgentID)
		instance = next
		sameAgentAttempts = 0
		s.emitRetry(t.TaskID, attempt+1, instance.AgentID, fallbackBackoff)
		s.sleepBackoff(ctx, fallbackBackoff)
	}
}

type attemptOutcome struct {
	startedAt, finishedAt time.Time
	exitCode              int
	class                 Classification
}

// runOneAttempt executes exactly one launch: prepare, run, supervise to
// completion, classify, and clean up. A non-nil error means the attempt
// could not even start (workspace/image/plugin failure) and is not
// classification-retryable.
func (s *Supervisor) runOneAttempt(ctx context.Context, t *taskmodel.Task, env *taskmodel.Environment, instance taskmodel.AgentInstance) (attemptOutcome, error) {
	la, err := s.prepare(ctx, t, env, instance, false)
	if err != nil {
		return attemptOutcome{}, err
	}
	defer preflight.Cleanup(la.compiled)

	s.emitState(t.TaskID, taskmodel.StatusStarting)
	id, err := s.runContainer(ctx, t, la)
	if err != nil {
		return attemptOutcome{}, fmt.Errorf("run container: %w", err)
	}
	t.StartedAt = s.Now()
	_ = s.Store.SaveTask(t)
	s.emitState(t.TaskID, taskmodel.StatusRunning)

	logsDone := s.followLogs(ctx, t, id)
	state := s.pollUntilExited(ctx, id)
	<-logsDone

	_ = s.Driver.Rm(ctx, id, true)

	lines := append([]string(nil), t.Logs...)
	class := Classify(state, lines)

	return attemptOutcome{
		startedAt:  t.StartedAt,
		finishedAt: s.Now(),
		exitCode:   state.ExitCode,
		class:      class,
	}, nil
}

// followLogs drains a container's LogsFollow stream into t.Logs and the
// task's event bus, returning a channel closed once the stream ends.
func (s *Supervisor) followLogs(ctx context.Context, t *taskmodel.Task, containerID string) <-chan struct{} {
	done := make(chan struct{})
	ch, err := s.Driver.LogsFollow(ctx, containerID, 0)
	if err != nil {
		s.Logger.Warn("supervisor", t.TaskID, "logs follow failed to start: %v", err)
		close(done)
		return done
	}
	go func() {
		defer close(done)
		for line := range ch {
			t.AppendLog(line.Text)
			s.emitLog(t.TaskID, line.Text)
		}
	}()
	return done
}

// pollUntilExited inspects container state every PollInterval until the
// container leaves the running/created state or ctx is cancelled.
func (s *Supervisor) pollUntilExited(ctx context.Context, containerID string) container.State {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state, _ := s.Driver.InspectState(context.Background(), containerID)
			return state
		case <-ticker.C:
			state, err := s.Driver.InspectState(ctx, containerID)
			if err != nil {
				continue
			}
			switch state.Status {
			case "exited", "dead":
				return state
			}
		}
	}
}

// sleepBackoff waits d or until ctx is cancelled, whichever comes first.
func (s *Supervisor) sleepBackoff(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// fail marks t failed with a setup-time error (no container ever ran) and
// finishes.
func (s *Supervisor) fail(t *taskmodel.Task, env *taskmodel.Environment, errMsg string) error {
	return s.finish(t, env, taskmodel.StatusFailed, errMsg)
}

// finish stamps the task's terminal status, persists it, and starts the
// Finalizer, per §4.9. Finalization runs against its own timeout,
// independent of the launch context that got the task here, so a
// cancelled/killed task still finalizes.
func (s *Supervisor) finish(t *taskmodel.Task, env *taskmodel.Environment, status taskmodel.TaskStatus, errMsg string) error {
	t.Status = status
	t.Error = errMsg
	t.FinishedAt = s.Now()
	if status == taskmodel.StatusCancelled || status == taskmodel.StatusKilled {
		t.UserStopped = true
	}
	_ = s.Store.SaveTask(t)
	s.emitState(t.TaskID, status)

	finCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := s.Finalizer.Start(finCtx, t, env, s.StagingDir(t.TaskID)); err != nil && err != finalizer.ErrAlreadyFinalizing {
		s.Logger.Warn("supervisor", t.TaskID, "finalizer start failed: %v", err)
	}
	return nil
}
