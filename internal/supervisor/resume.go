package supervisor

import (
	"context"
	"fmt"

	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// Resume re-attaches supervision to a task whose container survived a
// process restart (§4.11): it re-enters the log-follow/inspect-poll pair
// against the already-running container, classifies the eventual exit, and
// finalizes exactly once. It does not retry or fall back on failure --
// recovery observes the attempt that was already in flight, it does not
// start a new one.
func (s *Supervisor) Resume(ctx context.Context, t *taskmodel.Task, env *taskmodel.Environment) error {
	defer s.closeBus(t.TaskID)
	if t.ContainerID == "" {
		return fmt.Errorf("supervisor: resume requires a known container id")
	}

	s.emitState(t.TaskID, t.Status)
	logsDone := s.followLogs(ctx, t, t.ContainerID)
	state := s.pollUntilExited(ctx, t.ContainerID)
	<-logsDone
	_ = s.Driver.Rm(ctx, t.ContainerID, true)

	lines := append([]string(nil), t.Logs...)
	class := Classify(state, lines)
	now := s.Now()
	t.AttemptHistory = append(t.AttemptHistory, taskmodel.AttemptRecord{
		Agent:          t.AgentInstanceID,
		StartedAt:      t.StartedAt,
		FinishedAt:     now,
		ExitCode:       state.ExitCode,
		Classification: string(class),
	})
	s.emitDone(t.TaskID, attemptOutcome{startedAt: t.StartedAt, finishedAt: now, exitCode: state.ExitCode, class: class})
	_ = s.Store.SaveTask(t)

	if class == ClassSuccess {
		return s.finish(t, env, taskmodel.StatusDone, "")
	}
	return s.finish(t, env, taskmodel.StatusFailed, fmt.Sprintf("attempt classified %s (resumed after restart)", class))
}
