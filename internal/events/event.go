// Package events implements the TaskEvent tagged union described in
// SPEC_FULL.md §9: a replacement for the source's on_state/on_log/on_done
// callback triplet, delivered in submission order over a per-task channel
// instead of crossing thread boundaries as independent callbacks.
//
// Grounded on the teacher's own internal/events/event.go + filesink.go
// (AgentEvent struct, FileSink JSONL writer, FilterByType/FilterByIteration),
// generalized here from agent-internal tool-use events to task-lifecycle
// events; the JSONL file sink is reused almost verbatim as the on-disk
// debug trail for a task's event stream.
package events

import "time"

// Kind identifies which variant of TaskEvent is populated.
type Kind string

const (
	KindState         Kind = "state"
	KindLog           Kind = "log"
	KindDone          Kind = "done"
	KindRetryAttempt  Kind = "retry_attempt"
	KindAgentSwitched Kind = "agent_switched"
)

// StatePayload reports a Task.Status transition.
type StatePayload struct {
	Status string `json:"status"`
}

// LogPayload carries one canonical-format log line.
type LogPayload struct {
	Line string `json:"line"`
}

// DonePayload reports the terminal outcome of one launch attempt. Fired
// exactly once per attempt, per SPEC_FULL.md §5.
type DonePayload struct {
	ExitCode       int    `json:"exit_code"`
	Classification string `json:"classification"`
	Status         string `json:"status"`
}

// RetryAttemptPayload announces a fresh attempt about to start, after a
// retry or fallback decision.
type RetryAttemptPayload struct {
	Attempt        int    `json:"attempt"`
	Agent          string `json:"agent"`
	BackoffSeconds int    `json:"backoff_seconds"`
}

// AgentSwitchedPayload announces a fallback hop from one agent instance to
// another.
type AgentSwitchedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TaskEvent is one item in a task's ordered event stream. Exactly one of
// the payload pointers is non-nil, selected by Kind.
type TaskEvent struct {
	Kind      Kind      `json:"kind"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`

	State         *StatePayload         `json:"state,omitempty"`
	Log           *LogPayload           `json:"log,omitempty"`
	Done          *DonePayload          `json:"done,omitempty"`
	RetryAttempt  *RetryAttemptPayload  `json:"retry_attempt,omitempty"`
	AgentSwitched *AgentSwitchedPayload `json:"agent_switched,omitempty"`
}

// NewState builds a KindState TaskEvent.
func NewState(taskID string, status string, ts time.Time) TaskEvent {
	return TaskEvent{Kind: KindState, TaskID: taskID, Timestamp: ts, State: &StatePayload{Status: status}}
}

// NewLog builds a KindLog TaskEvent.
func NewLog(taskID, line string, ts time.Time) TaskEvent {
	return TaskEvent{Kind: KindLog, TaskID: taskID, Timestamp: ts, Log: &LogPayload{Line: line}}
}

// NewDone builds a KindDone TaskEvent. Exactly one must be delivered per
// launch attempt.
func NewDone(taskID string, exitCode int, classification, status string, ts time.Time) TaskEvent {
	return TaskEvent{
		Kind:   KindDone,
		TaskID: taskID,
		Timestamp: ts,
		Done:   &DonePayload{ExitCode: exitCode, Classification: classification, Status: status},
	}
}

// NewRetryAttempt builds a KindRetryAttempt TaskEvent.
func NewRetryAttempt(taskID string, attempt int, agentID string, backoffSeconds int, ts time.Time) TaskEvent {
	return TaskEvent{
		Kind:   KindRetryAttempt,
		TaskID: taskID,
		Timestamp: ts,
		RetryAttempt: &RetryAttemptPayload{Attempt: attempt, Agent: agentID, BackoffSeconds: backoffSeconds},
	}
}

// NewAgentSwitched builds a KindAgentSwitched TaskEvent.
func NewAgentSwitched(taskID, from, to string, ts time.Time) TaskEvent {
	return TaskEvent{
		Kind:   KindAgentSwitched,
		TaskID: taskID,
		Timestamp: ts,
		AgentSwitched: &AgentSwitchedPayload{From: from, To: to},
	}
}

// FilterByKind filters events down to the given kinds. No kinds means no
// filtering.
func FilterByKind(evts []TaskEvent, kinds ...Kind) []TaskEvent {
	if len(kinds) == 0 {
		return evts
	}
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []TaskEvent
	for _, e := range evts {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// FilterByTask filters events down to a single task ID. An empty taskID
// means no filtering.
func FilterByTask(evts []TaskEvent, taskID string) []TaskEvent {
	if taskID == "" {
		return evts
	}
	var out []TaskEvent
	for _, e := range evts {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}
