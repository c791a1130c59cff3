package taskmodel

import "time"

// RunRequest is derived from a Task + Environment at launch time. It is
// pure data; the Supervisor consults it when composing a RunPlan.
type RunRequest struct {
	Task        *Task
	Environment *Environment
	Agent       AgentInstance
	Interactive bool
}

// RunPlan contains the exact container image, mounts, env map, workdir,
// the argv to exec, and the keepalive argv used for interactive mode.
// RunPlan is pure data; side effects happen only in the Container Driver.
type RunPlan struct {
	Image         string
	ContainerName string
	Mounts        []Mount
	Env           map[string]string
	Workdir       string
	Argv          []string // entrypoint + args to exec non-interactively
	KeepaliveArgv []string // e.g. ["sleep", "infinity"], used for interactive mode
	Interactive   bool
}

// CompletionMarker is the JSON record written by the in-container
// entrypoint on exit. When present it is authoritative over `docker wait`.
type CompletionMarker struct {
	TaskID        string    `json:"task_id"`
	ContainerName string    `json:"container_name"`
	ExitCode      int       `json:"exit_code"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Reason        string    `json:"reason"`
}
