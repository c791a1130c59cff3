// Package claudecode implements the Agent Plugin (C7) for Claude Code.
package claudecode

import (
	"strings"

	"github.com/midoriai/agents-runner/internal/agent"
)

// Plugin implements agent.Plugin for the Claude Code CLI.
type Plugin struct{}

// New creates a Claude Code Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string                 { return "claude-code" }
func (p *Plugin) DisplayName() string          { return "Claude Code" }
func (p *Plugin) ContainerConfigDir() string    { return "/home/agent/.claude" }
func (p *Plugin) DefaultHostConfigDir() string  { return "~/.claude" }

func (p *Plugin) Capabilities() agent.Capabilities {
	return agent.Capabilities{RequiresGitHubToken: true}
}

func (p *Plugin) AdditionalConfigMounts(hostConfigDir string) []agent.Mount {
	return nil
}

// BuildNonInteractiveArgv builds `claude --print --dangerously-skip-permissions
// <extra args> <prompt>`.
func (p *Plugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx agent.BuildContext) []string {
	argv := []string{"claude", "--print", "--dangerously-skip-permissions"}
	argv = append(argv, extraArgs...)
	argv = append(argv, agent.SanitizePrompt(prompt))
	return argv
}

// nonInteractiveFlagsWithValue force non-interactive output and take a
// following value that must be stripped alongside them.
var nonInteractiveFlagsWithValue = map[string]bool{
	"--output-format": true,
}

var nonInteractiveFlags = map[string]bool{
	"-p": true, "--print": true, "--dangerously-skip-permissions": true,
}

// BuildInteractiveCommandParts strips -p/--print and --output-format (and
// its value) before returning an interactive `claude` argv.
func (p *Plugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{"claude", "--help"}
	}
	argv := []string{"claude"}
	argv = append(argv, stripNonInteractiveFlags(userParts)...)
	argv = append(argv, stripNonInteractiveFlags(extraArgs)...)
	if prompt != "" {
		argv = append(argv, agent.SanitizePrompt(prompt))
	}
	return argv
}

func stripNonInteractiveFlags(parts []string) []string {
	var out []string
	skipNext := false
	for _, part := range parts {
		if skipNext {
			skipNext = false
			continue
		}
		flag := part
		if idx := strings.Index(part, "="); idx != -1 {
			flag = part[:idx]
		}
		if nonInteractiveFlags[flag] {
			continue
		}
		if nonInteractiveFlagsWithValue[flag] {
			if !strings.Contains(part, "=") {
				skipNext = true
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

func init() {
	agent.Register("claude-code", func() agent.Plugin { return New() })
}
