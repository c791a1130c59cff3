package platform

import (
	"os"
	"runtime"
	"testing"
)

func TestDetectReportsHostArch(t *testing.T) {
	info := Detect()
	if info.HostOS != runtime.GOOS || info.HostArch != runtime.GOARCH {
		t.Fatalf("Detect() = %+v, want HostOS=%s HostArch=%s", info, runtime.GOOS, runtime.GOARCH)
	}
}

func TestDetectHonorsForceEnvVar(t *testing.T) {
	t.Setenv(ForceEnvVar, "linux/amd64")
	info := Detect()
	if info.Forced != "linux/amd64" {
		t.Fatalf("Forced = %q, want linux/amd64", info.Forced)
	}
	if info.ContainerPlatform() != "linux/amd64" {
		t.Fatalf("ContainerPlatform() = %q, want linux/amd64", info.ContainerPlatform())
	}
}

func TestContainerPlatformEmptyWhenNotForced(t *testing.T) {
	os.Unsetenv(ForceEnvVar)
	info := Detect()
	if info.ContainerPlatform() != "" {
		t.Fatalf("ContainerPlatform() = %q, want empty when not forced", info.ContainerPlatform())
	}
}
