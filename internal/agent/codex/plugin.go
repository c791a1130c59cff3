// Package codex implements the Agent Plugin (C7) for OpenAI's Codex CLI.
package codex

import (
	"strings"

	"github.com/midoriai/agents-runner/internal/agent"
)

// Plugin implements agent.Plugin for the Codex CLI.
type Plugin struct{}

// New creates a Codex Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return "codex" }
func (p *Plugin) DisplayName() string { return "Codex" }

// ContainerConfigDir is where the Codex CLI reads its config from inside
// the container.
func (p *Plugin) ContainerConfigDir() string { return "/home/agent/.codex" }

// DefaultHostConfigDir is used when an AgentInstance omits config_dir.
func (p *Plugin) DefaultHostConfigDir() string { return "~/.codex" }

func (p *Plugin) Capabilities() agent.Capabilities {
	return agent.Capabilities{RequiresGitHubToken: true}
}

func (p *Plugin) AdditionalConfigMounts(hostConfigDir string) []agent.Mount {
	return nil
}

// BuildNonInteractiveArgv builds `codex exec --json --yolo --skip-git-repo-check
// --cd <workdir> <prompt>`, adding the skip-repo-check flag only when the
// workspace is not a git repository.
func (p *Plugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx agent.BuildContext) []string {
	argv := []string{"codex", "exec", "--json", "--yolo"}
	if !ctx.WorkspaceIsRepo {
		argv = append(argv, "--skip-git-repo-check")
	}
	argv = append(argv, extraArgs...)
	argv = append(argv, agent.SanitizePrompt(prompt))
	return argv
}

// nonInteractiveFlags are stripped when building an interactive command:
// flags (with or without a following value) that force non-interactive
// output.
var nonInteractiveFlags = map[string]bool{
	"--json": true, "--yolo": true,
}

// BuildInteractiveCommandParts strips flags that force non-interactive
// output and returns an argv for an interactive `codex` session.
func (p *Plugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{"codex", "--help"}
	}
	argv := []string{"codex"}
	argv = append(argv, stripNonInteractiveFlags(userParts)...)
	argv = append(argv, stripNonInteractiveFlags(extraArgs)...)
	if prompt != "" {
		argv = append(argv, agent.SanitizePrompt(prompt))
	}
	return argv
}

func stripNonInteractiveFlags(parts []string) []string {
	var out []string
	for _, part := range parts {
		flag := part
		if idx := strings.Index(part, "="); idx != -1 {
			flag = part[:idx]
		}
		if nonInteractiveFlags[flag] {
			continue
		}
		out = append(out, part)
	}
	return out
}

func init() {
	agent.Register("codex", func() agent.Plugin { return New() })
}
