// Package selector implements the Agent Selector (C8): given an
// environment, pick the next agent instance per its selection mode,
// advance cursors on commitment, and compute fallback next-hops.
//
// Grounded on the teacher's internal/routing/router.go nil-safe wrapper
// (NewRouter, IsConfigured, dedup-adapters pattern), generalized from
// phase-keyed model lookup to environment-keyed agent-instance cursors.
package selector

import (
	"fmt"
	"sync"

	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// ActiveCounter reports how many tasks are currently active for a given
// agent instance within an environment, for the least-used mode's tie
// break. Per SPEC_FULL.md's Open Question #3, counts are scoped to the
// environment being selected for, not process-wide.
type ActiveCounter func(envID, agentID string) int

// Selector holds per-environment round-robin cursors, guarded by a mutex
// per the concurrency model (§5: "Agent Selector cursors are per-environment
// and guarded").
type Selector struct {
	mu      sync.Mutex
	cursors map[string]int // env_id -> round-robin cursor
	active  ActiveCounter
}

// New creates a Selector. active may be nil if the caller never uses
// least-used mode (Select will error in that case).
func New(active ActiveCounter) *Selector {
	return &Selector{cursors: make(map[string]int), active: active}
}

// ErrNoAgents is returned when an environment has no configured agents.
var ErrNoAgents = fmt.Errorf("selector: environment has no agent instances")

// Select picks the next agent instance for env per its selection mode.
// commit, when true, advances the round-robin cursor (only call with
// commit=true once a launch has actually started, per §4.7).
func (s *Selector) Select(env *taskmodel.Environment, commit bool) (taskmodel.AgentInstance, error) {
	agents := env.AgentSelectionCfg.Agents
	if len(agents) == 0 {
		return taskmodel.AgentInstance{}, ErrNoAgents
	}

	switch env.AgentSelectionCfg.SelectionMode {
	case taskmodel.SelectionLeastUsed:
		return s.selectLeastUsed(env)
	case taskmodel.SelectionFallback:
		return agents[0], nil
	default: // round-robin, including an unset/unknown mode
		return s.selectRoundRobin(env, commit)
	}
}

func (s *Selector) selectRoundRobin(env *taskmodel.Environment, commit bool) (taskmodel.AgentInstance, error) {
	agents := env.AgentSelectionCfg.Agents
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.cursors[env.EnvID]
	chosen := agents[cursor%len(agents)]
	if commit {
		s.cursors[env.EnvID] = (cursor + 1) % len(agents)
	}
	return chosen, nil
}

func (s *Selector) selectLeastUsed(env *taskmodel.Environment) (taskmodel.AgentInstance, error) {
	if s.active == nil {
		return taskmodel.AgentInstance{}, fmt.Errorf("selector: least-used mode requires an ActiveCounter")
	}
	agents := env.AgentSelectionCfg.Agents

	best := agents[0]
	bestCount := s.active(env.EnvID, best.AgentID)
	for _, a := range agents[1:] {
		count := s.active(env.EnvID, a.AgentID)
		if count < bestCount {
			best, bestCount = a, count
		}
	}
	return best, nil
}

// NextAgentHint computes what Select would return, without mutating cursor
// state — for UI tooltips (§4.7).
func (s *Selector) NextAgentHint(env *taskmodel.Environment) (taskmodel.AgentInstance, error) {
	agents := env.AgentSelectionCfg.Agents
	if len(agents) == 0 {
		return taskmodel.AgentInstance{}, ErrNoAgents
	}
	switch env.AgentSelectionCfg.SelectionMode {
	case taskmodel.SelectionLeastUsed:
		return s.selectLeastUsed(env)
	case taskmodel.SelectionFallback:
		return agents[0], nil
	default:
		s.mu.Lock()
		cursor := s.cursors[env.EnvID]
		s.mu.Unlock()
		return agents[cursor%len(agents)], nil
	}
}

// FallbackNextHop computes the next agent to try after currentAgentID
// failed, per the environment's agent_fallbacks map. Returns ok=false when
// no fallback is configured for the current agent.
func FallbackNextHop(env *taskmodel.Environment, currentAgentID string) (taskmodel.AgentInstance, bool) {
	nextID, ok := env.AgentSelectionCfg.AgentFallbacks[currentAgentID]
	if !ok || nextID == "" {
		return taskmodel.AgentInstance{}, false
	}
	for _, a := range env.AgentSelectionCfg.Agents {
		if a.AgentID == nextID {
			return a, true
		}
	}
	return taskmodel.AgentInstance{}, false
}
