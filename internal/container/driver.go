// Package container provides a typed wrapper over the OCI CLI (docker or
// podman). No daemon socket is accessed directly: every operation shells
// out to the runtime binary, per the contract in SPEC_FULL.md §6.
package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoSuchContainer is returned by operations whose target container does
// not exist.
var ErrNoSuchContainer = errors.New("container: no such container")

// ErrImageUnavailable is returned by Pull when the image cannot be fetched.
var ErrImageUnavailable = errors.New("container: image unavailable")

// Spec describes a detached run (§4.1).
type Spec struct {
	Image         string
	Name          string
	Workdir       string
	Env           map[string]string
	Mounts        []MountSpec
	Platform      string
	Ports         []string
	TTY           bool
	Entrypoint    []string // overrides the image entrypoint
	Command       []string // argv passed after the image name
	KeepaliveArgv []string // e.g. ["sleep", "infinity"]; mutually exclusive with Command
}

// MountSpec is an ordered host->container bind mount. Duplicates are
// allowed but destinations must be unique within a Spec.
type MountSpec struct {
	Source      string
	Destination string
	ReadOnly    bool
}

// State is the result of InspectState (§4.1).
type State struct {
	Status     string // lowercased
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	OOMKilled  bool
}

// execFunc builds the *exec.Cmd for a runtime invocation. Overridable in
// tests to avoid shelling out to a real `docker` binary, mirroring the
// teacher's ContainerPool.cmdRunner seam.
type execFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Driver is a typed wrapper over the `docker` (or `podman`) CLI.
type Driver struct {
	Binary string // "docker" or "podman"
	run    execFunc
}

// New creates a Driver that shells to the named OCI CLI binary.
func New(binary string) *Driver {
	if binary == "" {
		binary = "docker"
	}
	return &Driver{
		Binary: binary,
		run:    exec.CommandContext,
	}
}

// WithExecFunc overrides the process-spawning seam, for tests.
func (d *Driver) WithExecFunc(fn execFunc) *Driver {
	d.run = fn
	return d
}

func (d *Driver) cmd(ctx context.Context, args ...string) *exec.Cmd {
	return d.run(ctx, d.Binary, args...)
}

// Pull fetches an image, optionally for a forced platform. Returns
// ErrImageUnavailable when the pull fails for any reason (auth, network,
// not found) — the caller decides retry policy.
func (d *Driver) Pull(ctx context.Context, image, platform string) error {
	args := []string{"pull"}
	if platform != "" {
		args = append(args, "--platform", platform)
	}
	args = append(args, image)
	out, err := d.cmd(ctx, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrImageUnavailable, image, strings.TrimSpace(string(out)))
	}
	return nil
}

// HasImage reports whether the image is present locally and, when
// platform is non-empty, whether its architecture matches (compared
// case-insensitively).
func (d *Driver) HasImage(ctx context.Context, image, platform string) (bool, error) {
	out, err := d.cmd(ctx, "image", "inspect", "--format", "{{.Architecture}}", image).CombinedOutput()
	if err != nil {
		return false, nil
	}
	if platform == "" {
		return true, nil
	}
	arch := strings.TrimSpace(string(out))
	want := platformArch(platform)
	return strings.EqualFold(arch, want), nil
}

func platformArch(platform string) string {
	parts := strings.Split(platform, "/")
	if len(parts) == 2 {
		return parts[1]
	}
	return platform
}

// Run starts a detached container per spec and returns its ID.
func (d *Driver) Run(ctx context.Context, spec Spec) (string, error) {
	args := []string{"run", "-d"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	if spec.Platform != "" {
		args = append(args, "--platform", spec.Platform)
	}
	if spec.TTY {
		args = append(args, "-t")
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", formatMount(m))
	}
	for _, p := range spec.Ports {
		args = append(args, "-p", p)
	}
	for k, v := range spec.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if len(spec.Entrypoint) > 0 {
		args = append(args, "--entrypoint", spec.Entrypoint[0])
	}
	args = append(args, spec.Image)
	if len(spec.Entrypoint) > 1 {
		args = append(args, spec.Entrypoint[1:]...)
	}
	if len(spec.KeepaliveArgv) > 0 {
		args = append(args, spec.KeepaliveArgv...)
	} else {
		args = append(args, spec.Command...)
	}

	out, err := d.cmd(ctx, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("container run: %w: %s", err, strings.TrimSpace(string(out)))
	}
	id := strings.TrimSpace(string(out))
	// `docker run -d` may emit extra lines (e.g. pull progress); the
	// container ID is always the last line.
	if idx := strings.LastIndex(id, "\n"); idx != -1 {
		id = id[idx+1:]
	}
	return id, nil
}

func formatMount(m MountSpec) string {
	spec := fmt.Sprintf("%s:%s", m.Source, m.Destination)
	if m.ReadOnly {
		spec += ":ro"
	}
	return spec
}

// ExecOptions configures a foreground Exec call.
type ExecOptions struct {
	TTY         bool
	Interactive bool
	Cwd         string
	Env         map[string]string
}

// Exec runs argv inside an already-running container, in the foreground.
func (d *Driver) Exec(ctx context.Context, id string, argv []string, opts ExecOptions) (stdout, stderr string, exitCode int, err error) {
	args := []string{"exec"}
	if opts.TTY {
		args = append(args, "-t")
	}
	if opts.Interactive {
		args = append(args, "-i")
	}
	if opts.Cwd != "" {
		args = append(args, "-w", opts.Cwd)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, id)
	args = append(args, argv...)

	cmd := d.cmd(ctx, args...)
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return outBuf.String(), errBuf.String(), 0, fmt.Errorf("container exec: %w", runErr)
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// InspectState reports the container's lifecycle state.
func (d *Driver) InspectState(ctx context.Context, id string) (State, error) {
	format := "{{.State.Status}}|{{.State.StartedAt}}|{{.State.FinishedAt}}|{{.State.ExitCode}}|{{.State.OOMKilled}}"
	out, err := d.cmd(ctx, "inspect", "--format", format, id).CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "no such") {
			return State{}, ErrNoSuchContainer
		}
		return State{}, fmt.Errorf("inspect state: %w", err)
	}
	fields := strings.Split(strings.TrimSpace(string(out)), "|")
	if len(fields) != 5 {
		return State{}, fmt.Errorf("inspect state: unexpected output %q", string(out))
	}
	state := State{Status: strings.ToLower(fields[0])}
	state.StartedAt, _ = time.Parse(time.RFC3339Nano, fields[1])
	state.FinishedAt, _ = time.Parse(time.RFC3339Nano, fields[2])
	state.ExitCode, _ = strconv.Atoi(fields[3])
	state.OOMKilled = fields[4] == "true"
	return state, nil
}

// Wait blocks until the container exits and returns the runtime's integer
// exit code.
func (d *Driver) Wait(ctx context.Context, id string) (int, error) {
	out, err := d.cmd(ctx, "wait", id).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("container wait: %w", err)
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(string(out)))
	if convErr != nil {
		return 0, fmt.Errorf("container wait: unexpected output %q", string(out))
	}
	return code, nil
}

// Pause pauses a running container.
func (d *Driver) Pause(ctx context.Context, id string) error {
	return d.simple(ctx, "pause", id)
}

// Unpause resumes a paused container.
func (d *Driver) Unpause(ctx context.Context, id string) error {
	return d.simple(ctx, "unpause", id)
}

// Stop stops a container, giving it graceSeconds to exit before the
// runtime force-kills it.
func (d *Driver) Stop(ctx context.Context, id string, graceSeconds int) error {
	return d.simple(ctx, "stop", "-t", strconv.Itoa(graceSeconds), id)
}

// Kill sends SIGKILL to the container's main process.
func (d *Driver) Kill(ctx context.Context, id string) error {
	return d.simple(ctx, "kill", id)
}

// Rm removes a container. "no such container" is swallowed and treated as
// success, per §4.1's contract.
func (d *Driver) Rm(ctx context.Context, id string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, id)
	out, err := d.cmd(ctx, args...).CombinedOutput()
	if err != nil && !strings.Contains(strings.ToLower(string(out)), "no such") {
		return fmt.Errorf("container rm: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Build runs an image build from a Dockerfile, tagging the result. Used by
// the Image Cache (C6) to materialize each layer.
func (d *Driver) Build(ctx context.Context, tag, dockerfilePath, contextDir string) error {
	args := []string{"build", "-t", tag, "-f", dockerfilePath, contextDir}
	out, err := d.cmd(ctx, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("container build %s: %w: %s", tag, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// InspectDigest returns the content digest of a local image, used to key
// the first image-cache layer off the base image's content rather than its
// tag (which can move).
func (d *Driver) InspectDigest(ctx context.Context, image string) (string, error) {
	out, err := d.cmd(ctx, "image", "inspect", "--format", "{{.Id}}", image).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("inspect digest: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *Driver) simple(ctx context.Context, args ...string) error {
	lastArg := args[len(args)-1]
	out, err := d.cmd(ctx, args...).CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "no such") {
			return fmt.Errorf("%w: %s", ErrNoSuchContainer, lastArg)
		}
		return fmt.Errorf("container %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
