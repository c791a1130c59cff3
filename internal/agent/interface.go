// Package agent implements the Agent Plugin Registry (C7): each plugin
// declares its identity, config mount points, and how to build interactive
// and non-interactive argv from a prompt plus extra args.
package agent

// Mount is a host-to-container bind mount contributed by a plugin (e.g. its
// config directory).
type Mount struct {
	Source      string
	Destination string
	ReadOnly    bool
}

// Capabilities advertises cross-cutting behavior the Task Supervisor must
// account for when launching this plugin.
type Capabilities struct {
	// RequiresGitHubToken, when true, causes the supervisor to forward a
	// resolved credential as both GH_TOKEN and GITHUB_TOKEN (§6).
	RequiresGitHubToken bool
}

// BuildContext carries launch-time facts a plugin's argv builder may need.
type BuildContext struct {
	// WorkspaceIsRepo is false when the container workdir is not inside a
	// git repository; plugins that require `--skip-git-repo-check` (or
	// their CLI's equivalent) should add that flag in this case.
	WorkspaceIsRepo bool
	// CrossAgentContext holds other allowlisted agents' CLI context
	// (config-directory content or session summary), keyed by agent_id,
	// to be injected into the prompt per the cross_agent_allowlist (§3).
	CrossAgentContext map[string]string
}

// Plugin is the contract every registered agent CLI must satisfy (C7).
type Plugin interface {
	// Name is the registry key and the CLI binary name expected on $PATH.
	Name() string

	// DisplayName is a human-readable label for UI/log purposes.
	DisplayName() string

	// ContainerConfigDir is the canonical in-container path this CLI reads
	// its configuration from (e.g. "/home/agent/.codex").
	ContainerConfigDir() string

	// DefaultHostConfigDir is used when an AgentInstance does not specify
	// its own config_dir.
	DefaultHostConfigDir() string

	// Capabilities reports cross-cutting launch requirements.
	Capabilities() Capabilities

	// AdditionalConfigMounts returns any extra mounts (beyond the single
	// host-config-dir -> ContainerConfigDir bind) this plugin needs, given
	// the resolved host config directory.
	AdditionalConfigMounts(hostConfigDir string) []Mount

	// BuildNonInteractiveArgv constructs the argv to exec for a detached,
	// non-interactive run.
	BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx BuildContext) []string

	// BuildInteractiveCommandParts constructs the argv for an interactive
	// `exec -it` attach. Flags that force non-interactive output (e.g.
	// -p/--print, --output-format) are stripped even if present in
	// userParts or extraArgs. helpMode requests the CLI's own --help
	// output instead of a prompt-bearing invocation.
	BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string
}
