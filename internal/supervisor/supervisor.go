// Package supervisor implements the Task Supervisor (C9): the engine that
// owns the task state machine, composes the Workspace Resolver, Git
// Workspace Manager, Preflight Compiler, Image Cache, Agent Selector, and
// Container Driver, and drives a task from admission through a terminal
// status, handling retries, fallback, and user-initiated stop/kill.
//
// Grounded on the teacher's controller.go Run/runIteration/
// updateTaskPhase/shouldTerminate and fallback.go's
// isAdapterExecutionFailure/getFallbackAdapter/canFallback, whose
// string-pattern classification heuristics are generalized near-literally
// into Classify (classify.go).
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/midoriai/agents-runner/internal/agent"
	"github.com/midoriai/agents-runner/internal/container"
	"github.com/midoriai/agents-runner/internal/events"
	"github.com/midoriai/agents-runner/internal/finalizer"
	"github.com/midoriai/agents-runner/internal/github"
	"github.com/midoriai/agents-runner/internal/gitworkspace"
	"github.com/midoriai/agents-runner/internal/imagecache"
	"github.com/midoriai/agents-runner/internal/logging"
	"github.com/midoriai/agents-runner/internal/persistence"
	"github.com/midoriai/agents-runner/internal/platform"
	"github.com/midoriai/agents-runner/internal/selector"
	"github.com/midoriai/agents-runner/internal/taskmodel"
	"github.com/midoriai/agents-runner/internal/workspace"
)

// Policy is the retry/fallback configuration (§4.8, defaults per spec.md).
type Policy struct {
	MaxRetriesPerAgent  int
	FallbackEnabled     bool
	StandardBackoff     []time.Duration
	RateLimitBackoff    []time.Duration
	StopGrace           time.Duration
	GlobalCapacity      int // <= 0 means unbounded
}

// DefaultPolicy returns the spec.md §4.8 defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetriesPerAgent: 0,
		FallbackEnabled:    true,
		StandardBackoff:    []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second},
		RateLimitBackoff:   []time.Duration{60 * time.Second, 120 * time.Second, 300 * time.Second},
		StopGrace:          10 * time.Second,
	}
}

// Supervisor composes C1-C8 to drive tasks through the lifecycle state
// machine described in spec.md §4.8.
type Supervisor struct {
	Driver      *container.Driver
	Resolver    *workspace.Resolver
	GitManager  *gitworkspace.Manager
	ImageCache  *imagecache.Cache
	Selector    *selector.Selector
	Store       *persistence.Store
	Finalizer   *finalizer.Finalizer
	CredResolver *github.CredentialResolver
	Logger      *logging.Logger
	Policy      Policy
	DataDir     string
	BaseImage   string
	Platform    platform.Info

	// Now is overridable in tests.
	Now func() time.Time

	mu      sync.Mutex
	active  map[string]map[string]int // env_id -> agent_id -> active task count
	buses   map[string]*events.Bus
	cancels map[string]context.CancelFunc
	stopped map[string]string // task_id -> "cancelled" | "killed", once requested
}

// New constructs a Supervisor. Selector's ActiveCounter is wired back to
// this Supervisor's own active-task bookkeeping so least-used selection
// and admission control share one source of truth.
func New(driver *container.Driver, resolver *workspace.Resolver, gitMgr *gitworkspace.Manager, cache *imagecache.Cache, store *persistence.Store, fin *finalizer.Finalizer, cred *github.CredentialResolver, logger *logging.Logger) *Supervisor {
	s := &Supervisor{
		Driver:       driver,
		Resolver:     resolver,
		GitManager:   gitMgr,
		ImageCache:   cache,
		Store:        store,
		Finalizer:    fin,
		CredResolver: cred,
		Logger:       logger,
		Policy:       DefaultPolicy(),
		Platform:     platform.Detect(),
		Now:          func() time.Time { return time.Now().UTC() },
		active:       make(map[string]map[string]int),
		buses:        make(map[string]*events.Bus),
		cancels:      make(map[string]context.CancelFunc),
		stopped:      make(map[string]string),
	}
	s.Selector = selector.New(s.activeCount)
	return s
}

// activeCount implements selector.ActiveCounter, scoped to the requesting
// environment per SPEC_FULL.md's Open Question #3 decision.
func (s *Supervisor) activeCount(envID, agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[envID][agentID]
}

func (s *Supervisor) incActive(envID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[envID] == nil {
		s.active[envID] = make(map[string]int)
	}
	s.active[envID][agentID]++
}

func (s *Supervisor) decActive(envID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[envID] == nil {
		return
	}
	s.active[envID][agentID]--
	if s.active[envID][agentID] <= 0 {
		delete(s.active[envID], agentID)
	}
}

// nonTerminalCount counts this environment's currently non-terminal tasks,
// for admission control against MaxAgentsRunning.
func (s *Supervisor) nonTerminalCount(envID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.active[envID] {
		total += n
	}
	return total
}

// globalNonTerminalCount sums nonTerminalCount across all environments.
func (s *Supervisor) globalNonTerminalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, perAgent := range s.active {
		for _, n := range perAgent {
			total += n
		}
	}
	return total
}

// Admit reports whether a task in env may leave `queued`, per §4.8's
// admission rule: below max_agents_running (-1 = unbounded) and below any
// configured global capacity.
func (s *Supervisor) Admit(env *taskmodel.Environment) bool {
	if env.MaxAgentsRunning >= 0 && s.nonTerminalCount(env.EnvID) >= env.MaxAgentsRunning {
		return false
	}
	if s.Policy.GlobalCapacity > 0 && s.globalNonTerminalCount() >= s.Policy.GlobalCapacity {
		return false
	}
	return true
}

// NewTaskID generates an opaque task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// Events returns the event bus for a task, creating one if this is the
// first observer. Callers drain Events().Events() in submission order.
func (s *Supervisor) Events(taskID string) *events.Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[taskID]
	if !ok {
		b = events.NewBus(64)
		s.buses[taskID] = b
	}
	return b
}

func (s *Supervisor) emit(evt events.TaskEvent) {
	s.mu.Lock()
	b, ok := s.buses[evt.TaskID]
	s.mu.Unlock()
	if ok {
		b.Emit(evt)
	}
}

func (s *Supervisor) emitState(taskID string, status taskmodel.TaskStatus) {
	s.emit(events.NewState(taskID, string(status), s.Now()))
}

func (s *Supervisor) emitLog(taskID, line string) {
	s.emit(events.NewLog(taskID, line, s.Now()))
}

// closeBus closes and forgets a task's event bus once it is fully
// finalized (no further events will be delivered).
func (s *Supervisor) closeBus(taskID string) {
	s.mu.Lock()
	b, ok := s.buses[taskID]
	delete(s.buses, taskID)
	s.mu.Unlock()
	if ok {
		b.Close()
	}
}

// RequestStop implements the graceful-stop path (§4.8): stop with grace,
// then kill on failure. Final status is "cancelled".
func (s *Supervisor) RequestStop(ctx context.Context, t *taskmodel.Task) error {
	s.mu.Lock()
	s.stopped[t.TaskID] = string(taskmodel.StatusCancelled)
	cancel := s.cancels[t.TaskID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if t.ContainerID == "" {
		return nil
	}
	if err := s.Driver.Stop(ctx, t.ContainerID, int(s.Policy.StopGrace.Seconds())); err != nil {
		s.Logger.Warn("supervisor", t.TaskID, "stop failed, falling back to kill: %v", err)
		return s.Driver.Kill(ctx, t.ContainerID)
	}
	return nil
}

// RequestKill implements the immediate-kill path. Final status is
// "killed".
func (s *Supervisor) RequestKill(ctx context.Context, t *taskmodel.Task) error {
	s.mu.Lock()
	s.stopped[t.TaskID] = string(taskmodel.StatusKilled)
	cancel := s.cancels[t.TaskID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if t.ContainerID == "" {
		return nil
	}
	return s.Driver.Kill(ctx, t.ContainerID)
}

// stopRequest reports whether a stop/kill was requested for this task, and
// which terminal status it maps to.
func (s *Supervisor) stopRequest(taskID string) (taskmodel.TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.stopped[taskID]
	return taskmodel.TaskStatus(status), ok
}

// StagingDir is the host path mounted read-write at /tmp/agents-artifacts
// in the container (§6), rooted under the data directory and keyed by
// task ID.
func (s *Supervisor) StagingDir(taskID string) string {
	return fmt.Sprintf("%s/artifacts/%s/staging", s.DataDir, taskID)
}

// resolveAgentPlugin is a small indirection point kept separate from
// agent.Get so tests can stub plugin resolution without touching the
// global registry.
var resolveAgentPlugin = agent.Get

// StartTask runs Launch in its own goroutine under a cancellable context
// registered for RequestStop/RequestKill, and returns a channel that
// receives Launch's result once the task reaches a terminal status and
// finalization has started. Callers that already manage their own
// goroutine and cancellation may call Launch directly instead.
func (s *Supervisor) StartTask(t *taskmodel.Task, env *taskmodel.Environment) <-chan error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[t.TaskID] = cancel
	s.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, t.TaskID)
			delete(s.stopped, t.TaskID)
			s.mu.Unlock()
			cancel()
		}()
		result <- s.Launch(ctx, t, env)
	}()
	return result
}
