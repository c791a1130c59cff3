package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// RunEnvironmentWizard interactively builds an Environment through a
// charmbracelet/huh form, asking only the questions relevant to the
// workspace type the user picks.
func RunEnvironmentWizard(envID string) (*taskmodel.Environment, error) {
	env := taskmodel.NewEnvironment(envID, "")

	var workspaceType string
	var agentsRaw string
	var maxRunningRaw string
	var selectionMode string

	basics := huh.NewGroup(
		huh.NewInput().
			Title("Environment name").
			Value(&env.Name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			}),
		huh.NewSelect[string]().
			Title("Workspace type").
			Options(
				huh.NewOption("mounted (bind-mount a host directory)", string(taskmodel.WorkspaceMounted)),
				huh.NewOption("cloned (git clone into the container)", string(taskmodel.WorkspaceCloned)),
				huh.NewOption("none (no workspace)", string(taskmodel.WorkspaceNone)),
			).
			Value(&workspaceType),
	)

	target := huh.NewGroup(
		huh.NewInput().
			Title("Workspace target (host path or git URL)").
			Value(&env.WorkspaceTarget),
	).WithHideFunc(func() bool {
		return workspaceType == string(taskmodel.WorkspaceNone)
	})

	agents := huh.NewGroup(
		huh.NewInput().
			Title("Agents (agent_id=agent_cli pairs, comma-separated)").
			Description("example: primary=claude-code,fallback=codex").
			Value(&agentsRaw).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("at least one agent is required")
				}
				return nil
			}),
		huh.NewSelect[string]().
			Title("Selection mode").
			Options(
				huh.NewOption("round-robin", string(taskmodel.SelectionRoundRobin)),
				huh.NewOption("least-used", string(taskmodel.SelectionLeastUsed)),
				huh.NewOption("fallback", string(taskmodel.SelectionFallback)),
			).
			Value(&selectionMode),
	)

	limits := huh.NewGroup(
		huh.NewInput().
			Title("Max agents running concurrently (-1 for unbounded)").
			Value(&maxRunningRaw).
			Placeholder("-1"),
		huh.NewConfirm().
			Title("Bake the preflight script into a cached image layer?").
			Value(&env.ContainerCachingEnabled),
		huh.NewConfirm().
			Title("Resolve and forward a GitHub token on every launch?").
			Value(&env.GHContextEnabled),
	)

	form := huh.NewForm(basics, target, agents, limits)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}

	env.WorkspaceType = taskmodel.WorkspaceType(workspaceType)
	env.AgentSelectionCfg.SelectionMode = taskmodel.SelectionMode(selectionMode)
	env.AgentSelectionCfg.Agents = parseAgentPairs(agentsRaw)

	if maxRunningRaw == "" {
		env.MaxAgentsRunning = -1
	} else if n, err := strconv.Atoi(strings.TrimSpace(maxRunningRaw)); err == nil {
		env.MaxAgentsRunning = n
	} else {
		env.MaxAgentsRunning = -1
	}

	return env, nil
}

func parseAgentPairs(raw string) []taskmodel.AgentInstance {
	var out []taskmodel.AgentInstance
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, taskmodel.AgentInstance{AgentID: strings.TrimSpace(parts[0]), AgentCLI: strings.TrimSpace(parts[1])})
	}
	return out
}
