// Package runnerconfig loads the process-wide settings runnerctl needs
// before it can construct a Supervisor: the data directory, the base
// container image, retry/fallback policy overrides, the recovery tick
// interval, and an optional GitHub App credential.
//
// Grounded on the teacher's internal/config/config.go: the same
// viper-Unmarshal-then-applyDefaults-then-Validate shape, retargeted from
// VM/cloud-provider fields to the runner's own domain.
package runnerconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/midoriai/agents-runner/internal/supervisor"
)

// PolicyConfig mirrors supervisor.Policy in a YAML/env-friendly shape;
// durations are strings (e.g. "5s") rather than time.Duration so viper's
// default decoder (no custom hooks configured) can unmarshal them.
type PolicyConfig struct {
	MaxRetriesPerAgent int      `mapstructure:"max_retries_per_agent"`
	FallbackEnabled    bool     `mapstructure:"fallback_enabled"`
	StandardBackoff    []string `mapstructure:"standard_backoff"`
	RateLimitBackoff   []string `mapstructure:"rate_limit_backoff"`
	StopGrace          string   `mapstructure:"stop_grace"`
	GlobalCapacity     int      `mapstructure:"global_capacity"`
}

// RecoveryConfig controls the Recovery Loop's periodic tick.
type RecoveryConfig struct {
	Interval string `mapstructure:"interval"`
}

// GitHubAppConfig configures the GitHub App fallback in the credential
// chain (§6). Optional -- most deployments rely on GH_TOKEN/gh CLI instead.
type GitHubAppConfig struct {
	AppID            int64  `mapstructure:"app_id"`
	InstallationID   int64  `mapstructure:"installation_id"`
	PrivateKeyPath   string `mapstructure:"private_key_path"`
}

// Config is runnerctl's top-level settings document.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	BaseImage string          `mapstructure:"base_image"`
	MountRoot string          `mapstructure:"mount_root"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
	GitHubApp GitHubAppConfig `mapstructure:"github_app"`
}

// Load reads runnerctl's settings from viper (config file + env + flags
// already bound by the caller) and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("runnerconfig: unmarshal: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "~/.midoriai/agents-runner"
	}
	if cfg.BaseImage == "" {
		cfg.BaseImage = "ghcr.io/midoriai/agents-runner-base:latest"
	}
	if cfg.MountRoot == "" {
		cfg.MountRoot = "/workspace"
	}
	if len(cfg.Policy.StandardBackoff) == 0 {
		cfg.Policy.StandardBackoff = []string{"5s", "15s", "45s"}
	}
	if len(cfg.Policy.RateLimitBackoff) == 0 {
		cfg.Policy.RateLimitBackoff = []string{"60s", "120s", "300s"}
	}
	if cfg.Policy.StopGrace == "" {
		cfg.Policy.StopGrace = "10s"
	}
	if !cfg.Policy.FallbackEnabled {
		cfg.Policy.FallbackEnabled = true
	}
	if cfg.Recovery.Interval == "" {
		cfg.Recovery.Interval = "30s"
	}
}

// Validate checks the settings that must hold before any command runs.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.BaseImage == "" {
		return fmt.Errorf("base_image is required")
	}
	if _, err := c.Policy.toSupervisorPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if _, err := time.ParseDuration(c.Recovery.Interval); err != nil {
		return fmt.Errorf("recovery.interval: %w", err)
	}
	if c.GitHubApp.AppID != 0 && (c.GitHubApp.InstallationID == 0 || c.GitHubApp.PrivateKeyPath == "") {
		return fmt.Errorf("github_app.app_id is set but installation_id or private_key_path is missing")
	}
	return nil
}

// ToSupervisorPolicy converts the YAML-friendly PolicyConfig into a
// supervisor.Policy, parsing every backoff string.
func (c *Config) ToSupervisorPolicy() (supervisor.Policy, error) {
	return c.Policy.toSupervisorPolicy()
}

func (p PolicyConfig) toSupervisorPolicy() (supervisor.Policy, error) {
	standard, err := parseDurations(p.StandardBackoff)
	if err != nil {
		return supervisor.Policy{}, fmt.Errorf("standard_backoff: %w", err)
	}
	rateLimit, err := parseDurations(p.RateLimitBackoff)
	if err != nil {
		return supervisor.Policy{}, fmt.Errorf("rate_limit_backoff: %w", err)
	}
	stopGrace, err := time.ParseDuration(p.StopGrace)
	if err != nil {
		return supervisor.Policy{}, fmt.Errorf("stop_grace: %w", err)
	}
	return supervisor.Policy{
		MaxRetriesPerAgent: p.MaxRetriesPerAgent,
		FallbackEnabled:    p.FallbackEnabled,
		StandardBackoff:    standard,
		RateLimitBackoff:   rateLimit,
		StopGrace:          stopGrace,
		GlobalCapacity:     p.GlobalCapacity,
	}, nil
}

func parseDurations(raw []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(raw))
	for _, s := range raw {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RecoveryInterval parses Recovery.Interval, which Validate already
// guarantees is well-formed by the time a command acts on it.
func (c *Config) RecoveryInterval() time.Duration {
	d, err := time.ParseDuration(c.Recovery.Interval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
