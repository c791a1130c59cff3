package supervisor

import (
	"testing"

	"github.com/midoriai/agents-runner/internal/container"
)

func TestClassifyOOMKilled(t *testing.T) {
	state := container.State{OOMKilled: true, ExitCode: 1}
	if got := Classify(state, nil); got != ClassContainerCrash {
		t.Errorf("Classify = %s, want %s", got, ClassContainerCrash)
	}
}

func TestClassifyExit137(t *testing.T) {
	state := container.State{ExitCode: 137}
	if got := Classify(state, nil); got != ClassContainerCrash {
		t.Errorf("Classify = %s, want %s", got, ClassContainerCrash)
	}
}

func TestClassifyRateLimited(t *testing.T) {
	state := container.State{ExitCode: 1}
	lines := []string{"some output", "Error: Rate limit exceeded, try later"}
	if got := Classify(state, lines); got != ClassRateLimited {
		t.Errorf("Classify = %s, want %s", got, ClassRateLimited)
	}
}

func TestClassifyFatalAuth(t *testing.T) {
	state := container.State{ExitCode: 1}
	lines := []string{"Authentication failed: invalid API key"}
	if got := Classify(state, lines); got != ClassFatal {
		t.Errorf("Classify = %s, want %s", got, ClassFatal)
	}
}

func TestClassifyAgentFailure(t *testing.T) {
	for _, code := range []int{126, 127} {
		state := container.State{ExitCode: code}
		if got := Classify(state, nil); got != ClassAgentFailure {
			t.Errorf("Classify(%d) = %s, want %s", code, got, ClassAgentFailure)
		}
	}
}

func TestClassifySuccess(t *testing.T) {
	state := container.State{ExitCode: 0}
	if got := Classify(state, nil); got != ClassSuccess {
		t.Errorf("Classify = %s, want %s", got, ClassSuccess)
	}
}

func TestClassifyRetryableDefault(t *testing.T) {
	state := container.State{ExitCode: 1}
	if got := Classify(state, nil); got != ClassRetryable {
		t.Errorf("Classify = %s, want %s", got, ClassRetryable)
	}
}

func TestSameAgentRetryAllowed(t *testing.T) {
	cases := []struct {
		class Classification
		want  bool
	}{
		{ClassSuccess, true},
		{ClassRetryable, true},
		{ClassContainerCrash, true},
		{ClassRateLimited, true},
		{ClassAgentFailure, false},
		{ClassFatal, false},
	}
	for _, c := range cases {
		if got := c.class.SameAgentRetryAllowed(); got != c.want {
			t.Errorf("%s.SameAgentRetryAllowed() = %v, want %v", c.class, got, c.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if ClassFatal.Retryable() {
		t.Errorf("ClassFatal.Retryable() should be false")
	}
	if !ClassRetryable.Retryable() {
		t.Errorf("ClassRetryable.Retryable() should be true")
	}
}
