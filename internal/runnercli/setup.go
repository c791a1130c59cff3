package runnercli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/midoriai/agents-runner/internal/container"
	"github.com/midoriai/agents-runner/internal/finalizer"
	"github.com/midoriai/agents-runner/internal/github"
	"github.com/midoriai/agents-runner/internal/gitworkspace"
	"github.com/midoriai/agents-runner/internal/imagecache"
	"github.com/midoriai/agents-runner/internal/logging"
	"github.com/midoriai/agents-runner/internal/persistence"
	"github.com/midoriai/agents-runner/internal/runnerconfig"
	"github.com/midoriai/agents-runner/internal/supervisor"
	"github.com/midoriai/agents-runner/internal/workspace"
)

// runtime bundles everything a command needs to act on tasks/environments.
type runtime struct {
	Config     *runnerconfig.Config
	Store      *persistence.Store
	Supervisor *supervisor.Supervisor
	Finalizer  *finalizer.Finalizer
	Driver     *container.Driver
	Logger     *logging.Logger
}

// newRuntime loads config and wires the Supervisor exactly as §4 composes
// C1-C11: Container Driver, Workspace Resolver, Git Workspace Manager,
// Image Cache, Persistence, GitHub credential resolver, Finalizer.
func newRuntime() (*runtime, error) {
	cfg, err := runnerconfig.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dataDir, err := expandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir

	logger := logging.New(os.Stderr)
	store, err := persistence.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("persistence.New: %w", err)
	}

	var tokenManager *github.TokenManager
	if cfg.GitHubApp.AppID != 0 {
		key, err := os.ReadFile(cfg.GitHubApp.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read github_app.private_key_path: %w", err)
		}
		tokenManager, err = github.NewTokenManager(fmt.Sprintf("%d", cfg.GitHubApp.AppID), cfg.GitHubApp.InstallationID, key)
		if err != nil {
			return nil, fmt.Errorf("github.NewTokenManager: %w", err)
		}
	}
	credResolver := github.NewCredentialResolver(tokenManager)

	driver := container.New("docker")
	resolver := workspace.NewResolver(cfg.MountRoot)
	gitMgr := gitworkspace.NewManager(cfg.DataDir)
	cache := imagecache.New(driver, logger)
	fin := finalizer.New(store, credResolver, logger)

	sup := supervisor.New(driver, resolver, gitMgr, cache, store, fin, credResolver, logger)
	policy, err := cfg.ToSupervisorPolicy()
	if err != nil {
		return nil, err
	}
	sup.Policy = policy
	sup.DataDir = cfg.DataDir
	sup.BaseImage = cfg.BaseImage

	return &runtime{Config: cfg, Store: store, Supervisor: sup, Finalizer: fin, Driver: driver, Logger: logger}, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
