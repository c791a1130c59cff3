// Package gemini implements the Agent Plugin (C7) for the Gemini CLI,
// templated on the codex plugin per DESIGN.md.
package gemini

import (
	"strings"

	"github.com/midoriai/agents-runner/internal/agent"
)

// Plugin implements agent.Plugin for the `gemini` CLI.
type Plugin struct{}

// New creates a Gemini Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string                 { return "gemini" }
func (p *Plugin) DisplayName() string          { return "Gemini CLI" }
func (p *Plugin) ContainerConfigDir() string   { return "/home/agent/.gemini" }
func (p *Plugin) DefaultHostConfigDir() string { return "~/.gemini" }

func (p *Plugin) Capabilities() agent.Capabilities {
	return agent.Capabilities{RequiresGitHubToken: true}
}

func (p *Plugin) AdditionalConfigMounts(hostConfigDir string) []agent.Mount {
	return nil
}

// BuildNonInteractiveArgv builds `gemini --yolo --prompt <prompt>`.
func (p *Plugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, ctx agent.BuildContext) []string {
	argv := []string{"gemini", "--yolo"}
	argv = append(argv, extraArgs...)
	argv = append(argv, "--prompt", agent.SanitizePrompt(prompt))
	return argv
}

var nonInteractiveFlags = map[string]bool{"--yolo": true, "--prompt": true, "-p": true}

// BuildInteractiveCommandParts strips --yolo/--prompt/-p before returning
// an interactive `gemini` argv.
func (p *Plugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{"gemini", "--help"}
	}
	argv := []string{"gemini"}
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
			if (flag == "--prompt" || flag == "-p") && !strings.Contains(part, "=") {
				skipNext = true
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

func init() {
	agent.Register("gemini", func() agent.Plugin { return New() })
}
