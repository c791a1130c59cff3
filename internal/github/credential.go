package github

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// CredentialSource identifies which fallback resolved a token, for logging.
type CredentialSource string

const (
	SourceGHToken     CredentialSource = "GH_TOKEN"
	SourceGitHubToken CredentialSource = "GITHUB_TOKEN"
	SourceGHCLI       CredentialSource = "gh-cli"
	SourceApp         CredentialSource = "github-app"
)

// CredentialResolver implements the §6 Credentials fallback chain:
// GH_TOKEN, then GITHUB_TOKEN, then `gh auth token -h github.com`, then a
// configured GitHub App's TokenManager.
type CredentialResolver struct {
	// AppTokenManager is consulted last, when a GitHub App is configured.
	// May be nil.
	AppTokenManager *TokenManager

	// LookPath is overridable in tests to avoid depending on a real `gh`
	// binary being installed.
	LookPath func(string) (string, error)
	// RunGHAuthToken is overridable in tests.
	RunGHAuthToken func(ctx context.Context) (string, error)

	getenv func(string) string
}

// NewCredentialResolver creates a resolver with the default environment
// and `gh` CLI lookups.
func NewCredentialResolver(appTokenManager *TokenManager) *CredentialResolver {
	return &CredentialResolver{
		AppTokenManager: appTokenManager,
		LookPath:        exec.LookPath,
		getenv:          os.Getenv,
		RunGHAuthToken: func(ctx context.Context) (string, error) {
			out, err := exec.CommandContext(ctx, "gh", "auth", "token", "-h", "github.com").Output()
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(out)), nil
		},
	}
}

// Resolve returns a token and the source that produced it. It returns
// ("", "", false) when no source yields a token.
func (r *CredentialResolver) Resolve(ctx context.Context) (string, CredentialSource, bool) {
	getenv := r.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if tok := getenv("GH_TOKEN"); tok != "" {
		return tok, SourceGHToken, true
	}
	if tok := getenv("GITHUB_TOKEN"); tok != "" {
		return tok, SourceGitHubToken, true
	}
	if r.LookPath != nil && r.RunGHAuthToken != nil {
		if _, err := r.LookPath("gh"); err == nil {
			if tok, err := r.RunGHAuthToken(ctx); err == nil && tok != "" {
				return tok, SourceGHCLI, true
			}
		}
	}
	if r.AppTokenManager != nil {
		if tok, err := r.AppTokenManager.Token(); err == nil && tok != "" {
			return tok, SourceApp, true
		}
	}
	return "", "", false
}

// NeedsToken reports whether a credential should be resolved at all for a
// given launch, per §6: the chosen agent requires it, the environment has
// gh_context_enabled, or any cross-agent allowlist member requires it.
func NeedsToken(agentRequires, ghContextEnabled, anyCrossAgentRequires bool) bool {
	return agentRequires || ghContextEnabled || anyCrossAgentRequires
}
