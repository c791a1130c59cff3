package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/midoriai/agents-runner/internal/agent"
	"github.com/midoriai/agents-runner/internal/container"
	"github.com/midoriai/agents-runner/internal/imagecache"
	"github.com/midoriai/agents-runner/internal/preflight"
	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// launchAttempt is the per-attempt working state built by prepare and
// consumed by the run loop. It owns the preflight temp files and must be
// cleaned up on every exit path via preflight.Cleanup.
type launchAttempt struct {
	plugin    agent.Plugin
	instance  taskmodel.AgentInstance
	plan      *taskmodel.RunPlan
	compiled  *preflight.Compiled
}

// prepare resolves the workspace, the image (via the Image Cache), and the
// agent plugin, and compiles the RunPlan for one attempt, following the
// launch sequence in §4.8 step by step: select agent -> resolve/validate
// workspace -> build image -> compose preflight+mounts -> ready to run.
func (s *Supervisor) prepare(ctx context.Context, t *taskmodel.Task, env *taskmodel.Environment, instance taskmodel.AgentInstance, interactive bool) (*launchAttempt, error) {
	plugin, err := resolveAgentPlugin(instance.AgentCLI)
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve agent plugin: %w", err)
	}

	var mounts []taskmodel.Mount
	var containerWorkdir string

	switch env.WorkspaceType {
	case taskmodel.WorkspaceMounted:
		res, err := s.Resolver.Resolve(env.WorkspaceTarget)
		if err != nil {
			return nil, fmt.Errorf("supervisor: resolve workspace: %w", err)
		}
		if _, err := s.GitManager.PrepareMounted(res.MountRoot); err != nil {
			return nil, fmt.Errorf("supervisor: prepare mounted workspace: %w", err)
		}
		mounts = append(mounts, taskmodel.Mount{Source: res.MountRoot, Destination: res.ContainerCWD, Mode: "rw"})
		packagePath, err := resolvePackagePath(res.MountRoot, env, t)
		if err != nil {
			return nil, err
		}
		containerWorkdir = joinPackagePath(res.ContainerCWD, packagePath)

	case taskmodel.WorkspaceCloned:
		s.emitState(t.TaskID, taskmodel.StatusCloning)
		prepared, err := s.GitManager.PrepareCloned(ctx, env.EnvID, t.TaskID, env.WorkspaceTarget, "", true)
		if err != nil {
			return nil, fmt.Errorf("supervisor: prepare cloned workspace: %w", err)
		}
		t.GHRepoRoot = prepared.RepoRoot
		t.GHBaseBranch = prepared.BaseBranch
		t.GHBranch = prepared.Branch
		packagePath, err := resolvePackagePath(prepared.RepoRoot, env, t)
		if err != nil {
			return nil, err
		}
		containerWorkdir = joinPackagePath("/workspace", packagePath)
		mounts = append(mounts, taskmodel.Mount{Source: prepared.RepoRoot, Destination: "/workspace", Mode: "rw"})
	}

	mounts = append(mounts, env.ExtraMounts...)

	hostConfigDir := instance.ConfigDir
	if hostConfigDir == "" {
		hostConfigDir = plugin.DefaultHostConfigDir()
	}
	if hostConfigDir != "" {
		mounts = append(mounts, taskmodel.Mount{Source: hostConfigDir, Destination: plugin.ContainerConfigDir(), Mode: "ro"})
		for _, m := range plugin.AdditionalConfigMounts(hostConfigDir) {
			mode := "rw"
			if m.ReadOnly {
				mode = "ro"
			}
			mounts = append(mounts, taskmodel.Mount{Source: m.Source, Destination: m.Destination, Mode: mode})
		}
	}

	stagingDir := s.StagingDir(t.TaskID)
	mounts = append(mounts, taskmodel.Mount{Source: stagingDir, Destination: "/tmp/agents-artifacts", Mode: "rw"})

	s.emitState(t.TaskID, taskmodel.StatusPulling)
	image, err := s.resolveImage(ctx, env)
	if err != nil {
		return nil, err
	}

	compiler := preflight.NewCompiler(plugin.Name())
	compiled, err := compiler.Compile(t.TaskID, preflight.ScriptSet{
		Scripts:     map[preflight.Phase]string{preflight.PhaseEnvironment: env.PreflightScript},
		RuntimeOnly: map[preflight.Phase]bool{preflight.PhaseEnvironment: true},
	})
	if err != nil {
		return nil, fmt.Errorf("supervisor: compile preflight: %w", err)
	}

	envVars := map[string]string{}
	for k, v := range env.EnvVars {
		envVars[k] = v
	}
	if plugin.Capabilities().RequiresGitHubToken || env.GHContextEnabled {
		if tok, source, ok := s.CredResolver.Resolve(ctx); ok {
			envVars["GH_TOKEN"] = tok
			envVars["GITHUB_TOKEN"] = tok
			s.Logger.Info("supervisor", t.TaskID, "resolved github credential from %s", source)
		}
	}

	prompt := agent.SanitizePrompt(t.Prompt)
	buildCtx := agent.BuildContext{WorkspaceIsRepo: env.WorkspaceType != taskmodel.WorkspaceNone}
	argv := plugin.BuildNonInteractiveArgv(prompt, nil, buildCtx)

	plan := &taskmodel.RunPlan{
		Image:         image,
		ContainerName: fmt.Sprintf("agents-runner-%s", t.TaskID),
		Mounts:        mounts,
		Env:           envVars,
		Workdir:       containerWorkdir,
		Argv:          preflight.EntrypointCommand(compiled.Prelude, argv),
		KeepaliveArgv: []string{"sleep", "infinity"},
		Interactive:   interactive,
	}

	return &launchAttempt{plugin: plugin, instance: instance, plan: plan, compiled: compiled}, nil
}

// resolveImage pulls the environment's base image if needed and resolves
// it through the Image Cache when container caching is enabled.
func (s *Supervisor) resolveImage(ctx context.Context, env *taskmodel.Environment) (string, error) {
	base := s.BaseImage
	forced := s.Platform.ContainerPlatform()
	has, _ := s.Driver.HasImage(ctx, base, forced)
	if !has {
		if err := s.Driver.Pull(ctx, base, forced); err != nil {
			return "", fmt.Errorf("supervisor: pull base image: %w", err)
		}
	}
	if !env.ContainerCachingEnabled {
		return base, nil
	}
	return s.ImageCache.Resolve(ctx, base, []imagecache.LayerSpec{
		{Name: "environment", Script: env.PreflightScript},
	})
}

// joinPackagePath appends a monorepo package_path scope (SPEC_FULL.md
// supplemented feature #2) to a container workdir.
func joinPackagePath(workdir, packagePath string) string {
	if packagePath == "" {
		return workdir
	}
	return strings.TrimRight(workdir, "/") + "/" + strings.TrimLeft(packagePath, "/")
}

// runContainer starts the attempt's container, following §4.8 step 5:
// interactive runs are started with a keepalive command and the agent CLI
// is attached via Exec; non-interactive runs exec the agent CLI directly
// as the container's command.
func (s *Supervisor) runContainer(ctx context.Context, t *taskmodel.Task, la *launchAttempt) (string, error) {
	spec := container.Spec{
		Image:    la.plan.Image,
		Name:     la.plan.ContainerName,
		Workdir:  la.plan.Workdir,
		Env:      la.plan.Env,
		Platform: s.Platform.ContainerPlatform(),
	}
	for _, m := range la.plan.Mounts {
		spec.Mounts = append(spec.Mounts, container.MountSpec{Source: m.Source, Destination: m.Destination, ReadOnly: m.Mode == "ro"})
	}
	for _, m := range la.compiled.Mounts {
		spec.Mounts = append(spec.Mounts, container.MountSpec{Source: m.HostPath, Destination: m.ContainerPath, ReadOnly: true})
	}

	if la.plan.Interactive {
		spec.KeepaliveArgv = la.plan.KeepaliveArgv
	} else {
		spec.Command = la.plan.Argv
	}

	id, err := s.Driver.Run(ctx, spec)
	if err != nil {
		return "", err
	}
	t.ContainerID = id
	return id, nil
}

// backoffFor returns the standard or rate-limit backoff for the given
// zero-based attempt index, clamped to the last configured tier.
func backoffFor(policy Policy, class Classification, attemptIndex int) time.Duration {
	table := policy.StandardBackoff
	if class == ClassRateLimited {
		table = policy.RateLimitBackoff
	}
	if len(table) == 0 {
		return 0
	}
	if attemptIndex >= len(table) {
		attemptIndex = len(table) - 1
	}
	return table[attemptIndex]
}
