// Package copilot implements the Agent Plugin (C7) for GitHub Copilot CLI,
// templated on the codex plugin per DESIGN.md.
package copilot

import (
	"strings"

	"github.com/midoriai/agents-runner/internal/agent"
)

// Plugin implements agent.Plugin for the `copilot` CLI.
type Plugin struct{}

// New creates a Copilot Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string                 { return "copilot" }
func (p *Plugin) DisplayName() string          { return "GitHub Copilot" }
func (p *Plugin) ContainerConfigDir() string   { return "/home/agent/.copilot" }
func (p *Plugin) DefaultHostConfigDir() string { return "~/.copilot" }

func (p *Plugin) Capabilities() agent.Capabilities {
	return agent.Capabilities{RequiresGitHubToken: true}
}

func (p *Plugin) AdditionalConfigMounts(hostConfigDir string) []agent.Mount {
	return nil
}

// BuildNonInteractiveArgv builds `copilot --allow-all-tools --log-level info
// -p <prompt>`.
func (p *Plugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx agent.BuildContext) []string {
	argv := []string{"copilot", "--allow-all-tools", "--log-level", "info"}
	argv = append(argv, extraArgs...)
	argv = append(argv, "-p", agent.SanitizePrompt(prompt))
	return argv
}

var nonInteractiveFlags = map[string]bool{"--allow-all-tools": true, "-p": true, "--prompt": true}

// BuildInteractiveCommandParts strips --allow-all-tools/-p/--prompt before
// returning an interactive `copilot` argv.
func (p *Plugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{"copilot", "--help"}
	}
	argv := []string{"copilot"}
	argv = append(argv, stripFlags(userParts)...)
	argv = append(argv, stripFlags(extraArgs)...)
	if prompt != "" {
		argv = append(argv, agent.SanitizePrompt(prompt))
	}
	return argv
}

func stripFlags(parts []string) []string {
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
			if flag == "-p" || flag == "--prompt" {
				if !strings.Contains(part, "=") {
					skipNext = true
				}
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

func init() {
	agent.Register("copilot", func() agent.Plugin { return New() })
}
