// Package logging provides the canonical log-line format and secret
// redaction used throughout the task supervisor.
package logging

import (
	"regexp"
	"strings"
)

// Patterns for sensitive data that must never reach a log sink.
var (
	githubTokenPattern = regexp.MustCompile(`(gh[ps]_[a-zA-Z0-9]{36}|github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59})`)
	apiKeyPattern       = regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|api[_-]?token)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9_\-]{16,})`)
	bearerTokenPattern  = regexp.MustCompile(`(?i)bearer[[:space:]]+([a-zA-Z0-9_\-\.]+)`)
	privateKeyPattern   = regexp.MustCompile(`(?s)-----BEGIN[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----.*?-----END[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----`)
	urlPasswordPattern  = regexp.MustCompile(`(?i)(https?|ftp)://[^:]+:([^@]+)@`)
	jwtPattern          = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
)

// Sanitizer redacts secrets from log messages before they reach a sink.
type Sanitizer struct {
	customPatterns []*regexp.Regexp
}

// NewSanitizer creates a Sanitizer with the built-in redaction patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// AddCustomPattern registers an additional pattern to redact; matches are
// replaced wholesale with "[REDACTED]".
func (s *Sanitizer) AddCustomPattern(pattern *regexp.Regexp) {
	s.customPatterns = append(s.customPatterns, pattern)
}

// Sanitize removes or masks sensitive information from a message.
func (s *Sanitizer) Sanitize(message string) string {
	message = githubTokenPattern.ReplaceAllString(message, "[REDACTED-GITHUB-TOKEN]")
	message = apiKeyPattern.ReplaceAllString(message, "${1}=[REDACTED]")
	message = bearerTokenPattern.ReplaceAllString(message, "Bearer [REDACTED]")
	message = privateKeyPattern.ReplaceAllString(message, "[REDACTED-PRIVATE-KEY]")
	message = urlPasswordPattern.ReplaceAllString(message, "${1}://[REDACTED]@")
	message = jwtPattern.ReplaceAllString(message, "[REDACTED-JWT]")

	for _, pattern := range s.customPatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}

	return message
}

// PathSanitizer masks home-directory components out of file paths before
// they are logged.
type PathSanitizer struct {
	homeDir string
}

// NewPathSanitizer creates a PathSanitizer.
func NewPathSanitizer() *PathSanitizer {
	return &PathSanitizer{homeDir: "[HOME]"}
}

var homeDirPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/]+`),
	regexp.MustCompile(`/Users/[^/]+`),
}

// Sanitize replaces home-directory-derived path components.
func (p *PathSanitizer) Sanitize(path string) string {
	for _, pattern := range homeDirPatterns {
		path = pattern.ReplaceAllString(path, p.homeDir)
	}
	return strings.Replace(path, "~", p.homeDir, 1)
}
