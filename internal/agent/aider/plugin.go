// Package aider implements the Agent Plugin (C7) for Aider.
package aider

import "github.com/midoriai/agents-runner/internal/agent"

// Plugin implements agent.Plugin for the Aider CLI.
type Plugin struct{}

// New creates an Aider Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string                { return "aider" }
func (p *Plugin) DisplayName() string         { return "Aider" }
func (p *Plugin) ContainerConfigDir() string  { return "/home/agent/.aider" }
func (p *Plugin) DefaultHostConfigDir() string { return "~/.aider" }

func (p *Plugin) Capabilities() agent.Capabilities {
	return agent.Capabilities{RequiresGitHubToken: false}
}

func (p *Plugin) AdditionalConfigMounts(hostConfigDir string) []agent.Mount {
	return nil
}

// BuildNonInteractiveArgv builds `aider --yes-always --message <prompt>`.
func (p *Plugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx agent.BuildContext) []string {
	argv := []string{"aider", "--yes-always"}
	argv = append(argv, extraArgs...)
	argv = append(argv, "--message", agent.SanitizePrompt(prompt))
	return argv
}

var nonInteractiveFlags = map[string]bool{"--yes-always": true, "--message": true}

// BuildInteractiveCommandParts strips --yes-always/--message (auto-accept,
// forced single-shot prompt) before returning an interactive `aider` argv.
func (p *Plugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{"aider", "--help"}
	}
	argv := []string{"aider"}
	argv = append(argv, stripFlags(userParts)...)
	argv = append(argv, stripFlags(extraArgs)...)
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
		if nonInteractiveFlags[part] {
			if part == "--message" {
				skipNext = true
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

func init() {
	agent.Register("aider", func() agent.Plugin { return New() })
}
