// Package taskmodel defines the persisted entities of the task supervisor:
// Environment, AgentInstance, Task, RunRequest/RunPlan, and CompletionMarker.
package taskmodel

import "fmt"

// WorkspaceType identifies how an Environment's workspace is materialized.
type WorkspaceType string

const (
	WorkspaceMounted WorkspaceType = "mounted"
	WorkspaceCloned  WorkspaceType = "cloned"
	WorkspaceNone    WorkspaceType = "none"
)

// SelectionMode identifies the Agent Selector (C8) policy for an environment.
type SelectionMode string

const (
	SelectionRoundRobin SelectionMode = "round-robin"
	SelectionLeastUsed  SelectionMode = "least-used"
	SelectionFallback   SelectionMode = "fallback"
)

// AgentInstance is a concrete (CLI, config_dir) pair inside an environment's
// agent selection list.
type AgentInstance struct {
	AgentID   string `toml:"agent_id" yaml:"agent_id"`
	AgentCLI  string `toml:"agent_cli" yaml:"agent_cli"`
	ConfigDir string `toml:"config_dir,omitempty" yaml:"config_dir,omitempty"`
}

// AgentSelection describes how an environment picks among its agent instances.
type AgentSelection struct {
	SelectionMode  SelectionMode     `toml:"selection_mode" yaml:"selection_mode"`
	Agents         []AgentInstance   `toml:"agents" yaml:"agents"`
	AgentFallbacks map[string]string `toml:"agent_fallbacks,omitempty" yaml:"agent_fallbacks,omitempty"`
}

// Environment is a user-configured template binding a workspace, an image,
// an agent selection, and the scripts/limits that govern a run.
type Environment struct {
	EnvID          string            `toml:"env_id" yaml:"env_id"`
	Name           string            `toml:"name" yaml:"name"`
	WorkspaceType   WorkspaceType    `toml:"workspace_type" yaml:"workspace_type"`
	WorkspaceTarget string           `toml:"workspace_target" yaml:"workspace_target"`
	// WorkspaceLocked transitions once from false to true and never back;
	// mutate only via LockWorkspace to preserve that invariant.
	WorkspaceLocked bool `toml:"workspace_locked" yaml:"workspace_locked"`

	AgentSelectionCfg AgentSelection `toml:"agent_selection" yaml:"agent_selection"`

	EnvVars                map[string]string `toml:"env_vars,omitempty" yaml:"env_vars,omitempty"`
	ExtraMounts            []Mount           `toml:"extra_mounts,omitempty" yaml:"extra_mounts,omitempty"`
	PreflightScript        string            `toml:"preflight_script,omitempty" yaml:"preflight_script,omitempty"`
	HeadlessDesktopEnabled bool              `toml:"headless_desktop_enabled" yaml:"headless_desktop_enabled"`
	DesktopCacheEnabled    bool              `toml:"desktop_cache_enabled" yaml:"desktop_cache_enabled"`
	ContainerCachingEnabled bool             `toml:"container_caching_enabled" yaml:"container_caching_enabled"`
	GHContextEnabled       bool              `toml:"gh_context_enabled" yaml:"gh_context_enabled"`
	CrossAgentAllowlist    []string          `toml:"cross_agent_allowlist,omitempty" yaml:"cross_agent_allowlist,omitempty"`
	MaxAgentsRunning       int               `toml:"max_agents_running" yaml:"max_agents_running"` // -1 = unbounded
	ColorStain             string            `toml:"color_stain,omitempty" yaml:"color_stain,omitempty"`

	// PackageTiers maps a tier name to the pnpm workspace package paths it
	// contains, consulted by the Workspace Resolver when a Task's
	// PackagePath must be classified and validated against a monorepo
	// layout instead of taken as a literal path.
	PackageTiers map[string][]string `toml:"package_tiers,omitempty" yaml:"package_tiers,omitempty"`
}

// Mount is a host-to-container bind mount.
type Mount struct {
	Source      string `toml:"source" yaml:"source"`
	Destination string `toml:"destination" yaml:"destination"`
	Mode        string `toml:"mode" yaml:"mode"` // "ro" or "rw"
}

// NewEnvironment constructs an Environment with defaulted fields.
func NewEnvironment(envID, name string) *Environment {
	return &Environment{
		EnvID:            envID,
		Name:             name,
		WorkspaceType:    WorkspaceNone,
		MaxAgentsRunning: -1,
		AgentSelectionCfg: AgentSelection{
			SelectionMode: SelectionRoundRobin,
		},
	}
}

// Validate enforces the Environment invariants from the data model: a
// non-none workspace type requires a non-empty target.
func (e *Environment) Validate() error {
	if e.WorkspaceType != WorkspaceNone && e.WorkspaceTarget == "" {
		return fmt.Errorf("environment %s: workspace_target is required when workspace_type != none", e.EnvID)
	}
	return nil
}

// LockWorkspace transitions WorkspaceLocked from false to true. It is a
// no-op once already locked; the field never transitions back to false.
func (e *Environment) LockWorkspace() {
	e.WorkspaceLocked = true
}
