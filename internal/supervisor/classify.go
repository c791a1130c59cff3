package supervisor

import (
	"strings"

	"github.com/midoriai/agents-runner/internal/container"
)

// Classification is the outcome of applying the §4.8 exit classification
// table to a finished attempt.
type Classification string

const (
	ClassSuccess      Classification = "success"
	ClassContainerCrash Classification = "container_crash"
	ClassRateLimited  Classification = "rate_limited"
	ClassFatal        Classification = "fatal"
	ClassAgentFailure Classification = "agent_failure"
	ClassRetryable    Classification = "retryable"
)

// Retryable reports whether this classification's default policy permits
// a same-agent retry or a fallback attempt at all (§4.8/§7).
func (c Classification) Retryable() bool {
	switch c {
	case ClassFatal:
		return false
	default:
		return true
	}
}

// SameAgentRetryAllowed reports whether the classification allows the
// default same-agent retry path (subject to max_retries_per_agent); agent
// failures (126/127) go straight to fallback with no same-agent retry.
func (c Classification) SameAgentRetryAllowed() bool {
	switch c {
	case ClassAgentFailure, ClassFatal:
		return false
	default:
		return true
	}
}

var rateLimitPatterns = []string{"rate limit", "429", "too many requests", "quota exceeded"}
var authPatterns = []string{"authentication failed", "invalid api key", "permission denied"}

// Classify applies the §4.8 exit classification table to a finished
// attempt's runtime state and accumulated log lines.
func Classify(state container.State, logLines []string) Classification {
	if state.OOMKilled || state.ExitCode == 137 {
		return ClassContainerCrash
	}

	body := strings.ToLower(strings.Join(logLines, "\n"))
	for _, p := range rateLimitPatterns {
		if strings.Contains(body, p) {
			return ClassRateLimited
		}
	}
	for _, p := range authPatterns {
		if strings.Contains(body, p) {
			return ClassFatal
		}
	}

	switch state.ExitCode {
	case 126, 127:
		return ClassAgentFailure
	case 0:
		return ClassSuccess
	default:
		return ClassRetryable
	}
}
