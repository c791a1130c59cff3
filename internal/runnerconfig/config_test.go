package runnerconfig

import "testing"

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.DataDir == "" {
		t.Error("expected a default data_dir")
	}
	if cfg.BaseImage == "" {
		t.Error("expected a default base_image")
	}
	if !cfg.Policy.FallbackEnabled {
		t.Error("expected fallback_enabled to default true")
	}
	if len(cfg.Policy.StandardBackoff) != 3 {
		t.Errorf("expected 3 standard backoff tiers, got %d", len(cfg.Policy.StandardBackoff))
	}
	if cfg.Recovery.Interval != "30s" {
		t.Errorf("expected default recovery interval 30s, got %s", cfg.Recovery.Interval)
	}
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Policy.StandardBackoff = []string{"not-a-duration"}

	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject an unparseable backoff string")
	}
}

func TestValidateRejectsIncompleteGitHubApp(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.GitHubApp.AppID = 12345

	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject a GitHub App config missing installation_id/private_key_path")
	}
}

func TestToSupervisorPolicyRoundTrip(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	policy, err := cfg.ToSupervisorPolicy()
	if err != nil {
		t.Fatalf("ToSupervisorPolicy: %v", err)
	}
	if len(policy.StandardBackoff) != 3 {
		t.Errorf("expected 3 standard backoff tiers, got %d", len(policy.StandardBackoff))
	}
	if policy.StopGrace.Seconds() != 10 {
		t.Errorf("expected stop grace 10s, got %v", policy.StopGrace)
	}
}

func TestRecoveryIntervalParsesDefault(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if got := cfg.RecoveryInterval(); got.Seconds() != 30 {
		t.Errorf("expected 30s, got %v", got)
	}
}
