// Package platform implements the Platform Probe (C2): detection of host
// architecture, a forced-platform override, and whether nested-virt assist
// is available for the container runtime.
//
// Grounded on the scattered `--platform` argv construction in the teacher's
// container spec assembly, pulled out into its own probe so the Container
// Driver and Image Cache can both consult it.
package platform

import (
	"os"
	"runtime"
)

// Info describes the platform a container should be run under.
type Info struct {
	// HostOS/HostArch are runtime.GOOS/runtime.GOARCH.
	HostOS   string
	HostArch string
	// Forced is a non-empty "os/arch" string when AGENTS_RUNNER_PLATFORM
	// (or an explicit override) pins the container platform, overriding
	// host detection — e.g. to run amd64 images on an arm64 host.
	Forced string
	// NestedVirtAssist reports whether the host can accelerate nested
	// virtualization (informational only; the runner never fails a run
	// for its absence, it only no longer suggests KVM-backed options).
	NestedVirtAssist bool
}

// ForceEnvVar is the environment variable consulted for a platform override.
const ForceEnvVar = "AGENTS_RUNNER_PLATFORM"

// Detect probes the host for its architecture, any forced-platform
// override, and nested-virt assist availability.
func Detect() Info {
	info := Info{
		HostOS:   runtime.GOOS,
		HostArch: runtime.GOARCH,
		Forced:   os.Getenv(ForceEnvVar),
	}
	info.NestedVirtAssist = detectNestedVirtAssist()
	return info
}

// detectNestedVirtAssist is a best-effort, informational check: it looks
// for /dev/kvm, the usual signal that the host can accelerate nested
// virtualization. Its absence is never fatal — it only means the runner
// will not advertise a kvm-accelerated option when assembling a spec.
func detectNestedVirtAssist() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := os.Stat("/dev/kvm")
	return err == nil
}

// ContainerPlatform returns the --platform argument the Container Driver
// should pass for a run: the forced override when set, else empty (let the
// runtime pick the host's native platform).
func (i Info) ContainerPlatform() string {
	return i.Forced
}
