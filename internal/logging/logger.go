package logging

import (
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"
)

// Level is a canonical log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// canonicalHeader matches a `[scope/subscope][LEVEL] ` prefix anywhere in a
// string, used to strip nested headers from message bodies (§8 invariant 8).
var canonicalHeader = regexp.MustCompile(`\[[^/\]]+/[^\]]+\]\[(?:DEBUG|INFO|WARN|ERROR)\]\s*`)

var validLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}

// normalizeLevel falls back to INFO for any unrecognized level string.
func normalizeLevel(level Level) Level {
	if validLevels[string(level)] {
		return level
	}
	return LevelInfo
}

// Logger writes canonical `[scope/subscope][LEVEL] message` lines to an
// underlying writer, sanitizing secrets out of every message first.
type Logger struct {
	mu        sync.Mutex
	out       *log.Logger
	sanitizer *Sanitizer
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		out:       log.New(w, "", 0),
		sanitizer: NewSanitizer(),
	}
}

// Line formats a canonical log line without writing it, for callers that
// need the string itself (e.g. to append to Task.Logs).
func Line(scope, subscope string, level Level, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	msg = canonicalHeader.ReplaceAllString(msg, "")
	msg = strings.TrimRight(msg, "\n")
	return fmt.Sprintf("[%s/%s][%s] %s", scope, subscope, normalizeLevel(level), msg)
}

// Log writes a sanitized, canonical line for the given scope/subscope/level.
func (l *Logger) Log(scope, subscope string, level Level, format string, args ...interface{}) {
	line := Line(scope, subscope, level, format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Print(l.sanitizer.Sanitize(line))
}

func (l *Logger) Debug(scope, subscope, format string, args ...interface{}) {
	l.Log(scope, subscope, LevelDebug, format, args...)
}

func (l *Logger) Info(scope, subscope, format string, args ...interface{}) {
	l.Log(scope, subscope, LevelInfo, format, args...)
}

func (l *Logger) Warn(scope, subscope, format string, args ...interface{}) {
	l.Log(scope, subscope, LevelWarn, format, args...)
}

func (l *Logger) Error(scope, subscope, format string, args ...interface{}) {
	l.Log(scope, subscope, LevelError, format, args...)
}

// ContainerLine wraps a line of container output per §6: scope is the
// first four characters of the container ID, subscope is "stdout" or
// "stderr", and stderr lines become WARN.
func ContainerLine(containerID, stream, text string) string {
	cid4 := containerID
	if len(cid4) > 4 {
		cid4 = cid4[:4]
	}
	level := LevelInfo
	if stream == "stderr" {
		level = LevelWarn
	}
	return Line(cid4, stream, level, "%s", text)
}

// canonicalLinePattern is the full-line validator for §8 invariant 8.
var canonicalLinePattern = regexp.MustCompile(`^\[[^/\]]+/[^\]]+\]\[(DEBUG|INFO|WARN|ERROR)\] .*$`)

// IsCanonical reports whether a line matches the canonical format and its
// message body does not itself start with a nested canonical header.
func IsCanonical(line string) bool {
	if !canonicalLinePattern.MatchString(line) {
		return false
	}
	idx := strings.Index(line, "] ")
	if idx == -1 {
		return false
	}
	body := line[idx+2:]
	loc := canonicalHeader.FindStringIndex(body)
	return loc == nil || loc[0] != 0
}
