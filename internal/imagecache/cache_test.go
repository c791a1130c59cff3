package imagecache

import (
	"context"
	"io"
	"testing"

	"github.com/midoriai/agents-runner/internal/logging"
)

type fakeBuilder struct {
	digest     string
	images     map[string]bool
	buildCalls int
	buildErr   error
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{digest: "sha256:base", images: make(map[string]bool)}
}

func (f *fakeBuilder) Build(ctx context.Context, tag, dockerfilePath, contextDir string) error {
	f.buildCalls++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.images[tag] = true
	return nil
}

func (f *fakeBuilder) HasImage(ctx context.Context, image, platform string) (bool, error) {
	return f.images[image], nil
}

func (f *fakeBuilder) InspectDigest(ctx context.Context, image string) (string, error) {
	return f.digest, nil
}

func newTestCache(b *fakeBuilder) *Cache {
	return New(b, logging.New(io.Discard))
}

func TestResolvePassThroughWhenAllScriptsEmpty(t *testing.T) {
	b := newFakeBuilder()
	c := newTestCache(b)

	image, err := c.Resolve(context.Background(), "base:latest", []LayerSpec{
		{Name: "system"}, {Name: "desktop"}, {Name: "settings"}, {Name: "environment"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if image != "base:latest" {
		t.Errorf("expected pass-through to base image, got %q", image)
	}
	if b.buildCalls != 0 {
		t.Errorf("expected no builds, got %d", b.buildCalls)
	}
}

func TestResolveBuildsEachNonEmptyLayer(t *testing.T) {
	b := newFakeBuilder()
	c := newTestCache(b)

	image, err := c.Resolve(context.Background(), "base:latest", []LayerSpec{
		{Name: "system", Script: "apt-get install -y curl"},
		{Name: "desktop"},
		{Name: "settings", Script: "echo settings"},
		{Name: "environment"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.buildCalls != 2 {
		t.Errorf("expected 2 builds (system, settings), got %d", b.buildCalls)
	}
	if image == "base:latest" {
		t.Errorf("expected final image to be a built layer tag")
	}
}

func TestResolveReusesAlreadyBuiltLayer(t *testing.T) {
	b := newFakeBuilder()
	c := newTestCache(b)
	layers := []LayerSpec{{Name: "system", Script: "apt-get install -y curl"}}

	img1, err := c.Resolve(context.Background(), "base:latest", layers)
	if err != nil {
		t.Fatalf("Resolve #1: %v", err)
	}
	img2, err := c.Resolve(context.Background(), "base:latest", layers)
	if err != nil {
		t.Fatalf("Resolve #2: %v", err)
	}
	if img1 != img2 {
		t.Errorf("expected identical cache key to reuse the same tag: %q vs %q", img1, img2)
	}
	if b.buildCalls != 1 {
		t.Errorf("expected exactly 1 build across two resolves, got %d", b.buildCalls)
	}
}

func TestResolveSkipsFailedLayerAndContinues(t *testing.T) {
	b := newFakeBuilder()
	b.buildErr = context.DeadlineExceeded
	c := newTestCache(b)

	image, err := c.Resolve(context.Background(), "base:latest", []LayerSpec{
		{Name: "system", Script: "apt-get install -y curl"},
	})
	if err != nil {
		t.Fatalf("Resolve should not propagate a layer build failure: %v", err)
	}
	if image != "base:latest" {
		t.Errorf("expected fallback to base image on build failure, got %q", image)
	}
}

func TestDifferentScriptsProduceDifferentKeys(t *testing.T) {
	keyA, _ := layerKey("sha256:base", LayerSpec{Name: "system", Script: "a"})
	keyB, _ := layerKey("sha256:base", LayerSpec{Name: "system", Script: "b"})
	if keyA == keyB {
		t.Errorf("expected distinct keys for distinct scripts")
	}
}

func TestTagFormats(t *testing.T) {
	if got := Tag("desktop", "abc123"); got != "agent-runner-desktop:abc123" {
		t.Errorf("desktop tag: got %q", got)
	}
	if got := Tag("environment", "abc123"); got != "agent-runner-env:abc123" {
		t.Errorf("environment tag: got %q", got)
	}
	if got := Tag("system", "abc123"); got != "agent-runner-phase-system:abc123" {
		t.Errorf("system tag: got %q", got)
	}
}
