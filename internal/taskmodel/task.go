package taskmodel

import "time"

// TaskStatus is the Task Supervisor's state machine position (§4.8).
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusPulling   TaskStatus = "pulling"
	StatusCloning   TaskStatus = "cloning"
	StatusCreated   TaskStatus = "created"
	StatusStarting  TaskStatus = "starting"
	StatusRunning   TaskStatus = "running"
	StatusPaused    TaskStatus = "paused"
	StatusExited    TaskStatus = "exited"
	StatusDone      TaskStatus = "done"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
	StatusKilled    TaskStatus = "killed"
	StatusUnknown   TaskStatus = "unknown"
	StatusDiscarded TaskStatus = "discarded"
)

// terminalStatuses are re-launch terminal per the data model invariants.
var terminalStatuses = map[TaskStatus]bool{
	StatusDone:      true,
	StatusFailed:    true,
	StatusCancelled: true,
	StatusKilled:    true,
	StatusDiscarded: true,
}

// IsTerminal reports whether a task in this status is terminal for
// re-launch purposes.
func (s TaskStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// activeStatuses are statuses where the task is considered to (possibly)
// hold a live container, per invariant 1 in §8.
var activeStatuses = map[TaskStatus]bool{
	StatusPulling:  true,
	StatusCloning:  true,
	StatusCreated:  true,
	StatusStarting: true,
	StatusRunning:  true,
	StatusPaused:   true,
}

// IsActive reports whether this status is in the active set used by
// invariant 1 (a task must never be active and finalization-complete
// simultaneously).
func (s TaskStatus) IsActive() bool {
	return activeStatuses[s]
}

// FinalizationState is the Finalizer's (C10) per-task progress marker.
type FinalizationState string

const (
	FinalizationPending FinalizationState = "pending"
	FinalizationRunning FinalizationState = "running"
	FinalizationDone    FinalizationState = "done"
	FinalizationError   FinalizationState = "error"
)

// AttemptRecord captures one launch of a task with one agent.
type AttemptRecord struct {
	Agent          string     `toml:"agent"`
	StartedAt      time.Time  `toml:"started_at"`
	FinishedAt     time.Time  `toml:"finished_at,omitempty"`
	ExitCode       int        `toml:"exit_code"`
	Classification string     `toml:"classification,omitempty"`
}

// Task is a single submission, tracked from queued through a terminal
// status and finalization.
type Task struct {
	TaskID        string     `toml:"task_id"`
	Prompt        string     `toml:"prompt"`
	EnvironmentID string     `toml:"environment_id"`
	Image         string     `toml:"image,omitempty"`
	HostWorkdir   string     `toml:"host_workdir,omitempty"`
	HostConfigDir string     `toml:"host_config_dir,omitempty"`
	CreatedAt     time.Time  `toml:"created_at"`
	StartedAt     time.Time  `toml:"started_at,omitempty"`
	FinishedAt    time.Time  `toml:"finished_at,omitempty"`

	Status   TaskStatus `toml:"status"`
	ExitCode int        `toml:"exit_code"`
	Error    string     `toml:"error,omitempty"`

	ContainerID   string        `toml:"container_id,omitempty"`
	WorkspaceType WorkspaceType `toml:"workspace_type"`

	GHRepoRoot   string `toml:"gh_repo_root,omitempty"`
	GHBaseBranch string `toml:"gh_base_branch,omitempty"`
	GHBranch     string `toml:"gh_branch,omitempty"`
	GHPRURL      string `toml:"gh_pr_url,omitempty"`

	AgentCLI        string          `toml:"agent_cli,omitempty"`
	AgentInstanceID string          `toml:"agent_instance_id,omitempty"`
	AttemptHistory  []AttemptRecord `toml:"attempt_history,omitempty"`

	Artifacts []string `toml:"artifacts,omitempty"`
	Logs      []string `toml:"logs,omitempty"` // capped ring, <= MaxLogLines after trim

	FinalizationState FinalizationState `toml:"finalization_state"`
	FinalizationError string            `toml:"finalization_error,omitempty"`

	// PackagePath narrows the container working directory for a monorepo
	// package-scoped task (SPEC_FULL.md supplemented feature #2). Empty
	// for non-monorepo tasks.
	PackagePath string `toml:"package_path,omitempty"`

	// UserStopped records whether the task's terminal state was reached via
	// requestStop/requestKill, so the Finalizer can skip PR creation.
	UserStopped bool `toml:"user_stopped,omitempty"`

	// Interactive records whether this task was launched with a keepalive
	// container for exec-attach rather than a direct agent-CLI entrypoint.
	// The Recovery Loop (C12) uses this to tell a still-launching
	// interactive task apart from one whose container is genuinely gone.
	Interactive bool `toml:"interactive,omitempty"`
}

// MaxLogLines is the cap on Task.Logs after trimming (§3).
const MaxLogLines = 5000

// AppendLog appends a line to the capped ring, trimming the oldest lines
// once the cap is exceeded.
func (t *Task) AppendLog(line string) {
	t.Logs = append(t.Logs, line)
	if len(t.Logs) > MaxLogLines {
		t.Logs = t.Logs[len(t.Logs)-MaxLogLines:]
	}
}

// NewTask constructs a queued Task ready for admission.
func NewTask(taskID, environmentID, prompt string, now time.Time) *Task {
	return &Task{
		TaskID:            taskID,
		Prompt:            prompt,
		EnvironmentID:     environmentID,
		CreatedAt:         now,
		Status:            StatusQueued,
		FinalizationState: FinalizationPending,
	}
}

// Settings is the process-wide record persisted alongside Environments.
type Settings struct {
	DataDir          string           `toml:"data_dir"`
	SchemaVersion    int              `toml:"schema_version"`
	GlobalAgentWatch map[string]int   `toml:"global_agent_watch,omitempty"`
}

// CurrentSchemaVersion is written into Settings.SchemaVersion on save.
// state.toml is ignored on load when this does not match (task files are
// independent of state.toml and are unaffected).
const CurrentSchemaVersion = 1
