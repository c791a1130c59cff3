// Package imagecache implements the Image Cache (C6): layered cache-image
// builds keyed by content hashes (base -> system -> desktop ->
// settings/environment), serialized process-wide so concurrent tasks never
// launch redundant builds for the same layer.
//
// Grounded on the mutex-serialized build pattern already present for
// container lifecycle around container starts in the teacher's
// container_pool.go.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/midoriai/agents-runner/internal/logging"
)

// Builder is the subset of the Container Driver the cache needs to build
// and query images.
type Builder interface {
	Build(ctx context.Context, tag, dockerfilePath, contextDir string) error
	HasImage(ctx context.Context, image, platform string) (bool, error)
	InspectDigest(ctx context.Context, image string) (string, error)
}

// LayerBuildTimeout bounds a single layer build (§4.5); desktop layers use
// DesktopBuildTimeout instead.
const (
	LayerBuildTimeout   = 900 * time.Second
	DesktopBuildTimeout = 600 * time.Second
)

// LayerSpec describes one layer's inputs: the script that, when non-empty,
// is baked into this layer via a generated Dockerfile `RUN` step, plus any
// extra content (e.g. a bundled preflight dir, a Dockerfile template) whose
// bytes also feed the cache key.
type LayerSpec struct {
	Name        string   // "system", "desktop", "settings", "environment"
	Script      string   // empty => pass-through layer
	ExtraHashes []string // additional content hashes folded into the key
}

// Cache builds and reuses layered cache images. Builds for a given cache
// key are serialized by a single process-wide mutex (§5: "Image Cache
// builds are guarded by a process-wide mutex").
type Cache struct {
	mu       sync.Mutex
	driver   Builder
	logger   *logging.Logger
	tempDir  string
	building map[string]bool // tag -> build in flight (defensive re-entrancy guard)
}

// New creates a Cache backed by driver.
func New(driver Builder, logger *logging.Logger) *Cache {
	return &Cache{driver: driver, logger: logger, building: make(map[string]bool)}
}

// hashString returns a hex-encoded sha256 of s.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// layerKey computes a layer's cache key per the table in §4.5: a hash of
// the previous layer's digest plus this layer's script and any extra
// content hashes. An empty script makes the layer a pass-through: its key
// equals the previous digest so no build is attempted.
func layerKey(prevDigest string, spec LayerSpec) (key string, passThrough bool) {
	if spec.Script == "" && len(spec.ExtraHashes) == 0 {
		return prevDigest, true
	}
	h := sha256.New()
	h.Write([]byte(prevDigest))
	h.Write([]byte(hashString(spec.Script)))
	for _, extra := range spec.ExtraHashes {
		h.Write([]byte(extra))
	}
	return hex.EncodeToString(h.Sum(nil))[:16], false
}

// Tag formats the cache tag for a layer per §4.5's naming convention.
func Tag(name, key string) string {
	switch name {
	case "desktop":
		return fmt.Sprintf("agent-runner-desktop:%s", key)
	case "environment":
		return fmt.Sprintf("agent-runner-env:%s", key)
	default:
		return fmt.Sprintf("agent-runner-phase-%s:%s", name, key)
	}
}

// Resolve walks the layer chain starting from baseImage, building each
// non-pass-through layer that is not already present, and returns the
// final runtime image tag to use for the container.
//
// A layer build failure is non-fatal (§4.5, §7 LayerBuildFailed): it is
// logged at WARN and the previous layer's image is used instead, with the
// failed layer's script expected to re-run at container start via the
// Preflight Compiler.
func (c *Cache) Resolve(ctx context.Context, baseImage string, layers []LayerSpec) (string, error) {
	digest, err := c.driver.InspectDigest(ctx, baseImage)
	if err != nil {
		// Base image digest lookup failing is not a cache-layer concern;
		// the caller's Pull step will have already surfaced ImageUnavailable.
		digest = baseImage
	}

	currentImage := baseImage
	currentDigest := digest

	for _, layer := range layers {
		key, passThrough := layerKey(currentDigest, layer)
		if passThrough {
			continue
		}
		tag := Tag(layer.Name, key)

		built, err := c.ensureBuilt(ctx, tag, currentImage, layer)
		if err != nil {
			c.logger.Warn("imagecache", layer.Name, "layer build failed, continuing with previous layer: %v", err)
			continue
		}
		if built {
			currentImage = tag
			currentDigest = key
		}
	}

	return currentImage, nil
}

// ensureBuilt builds the layer if its tag is not already present,
// serialized by the process-wide mutex. Returns true when the tag is (now)
// usable.
func (c *Cache) ensureBuilt(ctx context.Context, tag, fromImage string, layer LayerSpec) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if has, _ := c.driver.HasImage(ctx, tag, ""); has {
		return true, nil
	}

	timeout := LayerBuildTimeout
	if layer.Name == "desktop" {
		timeout = DesktopBuildTimeout
	}
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp(c.tempDir, "agents-runner-layer-*")
	if err != nil {
		return false, fmt.Errorf("imagecache: temp build context: %w", err)
	}
	defer os.RemoveAll(dir)

	dockerfile := filepath.Join(dir, "Dockerfile")
	content := fmt.Sprintf("FROM %s\nRUN %s\n", fromImage, shellEscapeRun(layer.Script))
	if err := os.WriteFile(dockerfile, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("imagecache: write dockerfile: %w", err)
	}

	if err := c.driver.Build(buildCtx, tag, dockerfile, dir); err != nil {
		return false, fmt.Errorf("imagecache: build %s: %w", tag, err)
	}
	return true, nil
}

// shellEscapeRun wraps a multi-line script in a single RUN instruction.
func shellEscapeRun(script string) string {
	return fmt.Sprintf("/bin/bash -c %q", script)
}
