package runnercli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/midoriai/agents-runner/internal/cli/wizard"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage environments (workspace + agent selection templates)",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured environments",
	RunE:  envList,
}

var envAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an environment non-interactively",
	RunE:  envAdd,
}

var envWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactively author a new environment",
	RunE:  envWizard,
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envListCmd, envAddCmd, envWizardCmd)

	envAddCmd.Flags().String("name", "", "environment display name (required)")
	envAddCmd.Flags().String("workspace-type", "mounted", "mounted|cloned|none")
	envAddCmd.Flags().String("workspace-target", "", "host path (mounted) or remote URL (cloned)")
	envAddCmd.Flags().StringSlice("agent", nil, "agent_id=agent_cli pairs, repeatable")
	envAddCmd.Flags().Int("max-agents-running", -1, "admission cap for this environment, -1 = unbounded")
	envAddCmd.Flags().Bool("container-caching", false, "bake the preflight script into a cached image layer")
	envAddCmd.Flags().Bool("gh-context", false, "resolve and forward a GitHub token for every launch")
	_ = envAddCmd.MarkFlagRequired("name")
}

func envList(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	_, envs, err := rt.Store.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if len(envs) == 0 {
		fmt.Println("no environments configured. Use `runnerctl env add` or `runnerctl env wizard`.")
		return nil
	}
	fmt.Printf("%-24s %-20s %-10s %-10s %s\n", "ENV ID", "NAME", "WORKSPACE", "AGENTS", "MAX_RUNNING")
	for id, env := range envs {
		fmt.Printf("%-24s %-20s %-10s %-10d %d\n", id, env.Name, env.WorkspaceType, len(env.AgentSelectionCfg.Agents), env.MaxAgentsRunning)
	}
	return nil
}

func envAdd(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	workspaceType, _ := cmd.Flags().GetString("workspace-type")
	workspaceTarget, _ := cmd.Flags().GetString("workspace-target")
	agentPairs, _ := cmd.Flags().GetStringSlice("agent")
	maxRunning, _ := cmd.Flags().GetInt("max-agents-running")
	containerCaching, _ := cmd.Flags().GetBool("container-caching")
	ghContext, _ := cmd.Flags().GetBool("gh-context")

	envID := uuid.NewString()
	env := taskmodel.NewEnvironment(envID, name)
	env.WorkspaceType = taskmodel.WorkspaceType(workspaceType)
	env.WorkspaceTarget = workspaceTarget
	env.MaxAgentsRunning = maxRunning
	env.ContainerCachingEnabled = containerCaching
	env.GHContextEnabled = ghContext

	for _, pair := range agentPairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --agent value %q: expected agent_id=agent_cli", pair)
		}
		env.AgentSelectionCfg.Agents = append(env.AgentSelectionCfg.Agents, taskmodel.AgentInstance{AgentID: parts[0], AgentCLI: parts[1]})
	}
	if err := env.Validate(); err != nil {
		return err
	}

	settings, envs, err := rt.Store.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	envs[envID] = env
	if err := rt.Store.SaveState(settings, envs); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	fmt.Printf("environment %s created (id=%s)\n", name, envID)
	return nil
}

func envWizard(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	settings, envs, err := rt.Store.LoadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	env, err := wizard.RunEnvironmentWizard(uuid.NewString())
	if err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return err
	}

	envs[env.EnvID] = env
	if err := rt.Store.SaveState(settings, envs); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	fmt.Printf("environment %s created (id=%s)\n", env.Name, env.EnvID)
	return nil
}
