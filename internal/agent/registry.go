package agent

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var (
	registry     = make(map[string]func() Plugin)
	registryLock sync.RWMutex
)

// Register adds a plugin factory to the registry under name.
func Register(name string, factory func() Plugin) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[name] = factory
}

// Get retrieves a plugin by name, constructing a fresh instance. Passthrough
// test commands (§4.6) bypass the registry entirely.
func Get(name string) (Plugin, error) {
	if p, ok := passthrough(name); ok {
		return p, nil
	}

	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent: unknown plugin %q", name)
	}
	return factory(), nil
}

// List returns all registered plugin names (passthrough test commands are
// never listed).
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Exists reports whether name resolves to a registered plugin or a
// passthrough test command.
func Exists(name string) bool {
	if _, ok := passthrough(name); ok {
		return true
	}
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registry[name]
	return ok
}

// passthroughNames is the small set of test commands that bypass the
// registry (§4.6): their bare names and absolute paths under common shell
// locations.
var passthroughNames = map[string]bool{
	"echo": true, "sh": true, "bash": true, "true": true, "false": true,
}

// passthrough resolves a bare or absolute-path test command to a trivial
// Plugin that execs the named binary directly with the prompt as a single
// argument, used only in tests.
func passthrough(name string) (Plugin, bool) {
	base := filepath.Base(name)
	if !passthroughNames[base] {
		return nil, false
	}
	bin := name
	if !strings.HasPrefix(name, "/") {
		bin = base
	}
	return &passthroughPlugin{bin: bin, name: base}, true
}

// passthroughPlugin is a trivial Plugin wrapping a shell test command.
type passthroughPlugin struct {
	bin  string
	name string
}

func (p *passthroughPlugin) Name() string                                  { return p.name }
func (p *passthroughPlugin) DisplayName() string                           { return p.name }
func (p *passthroughPlugin) ContainerConfigDir() string                    { return "" }
func (p *passthroughPlugin) DefaultHostConfigDir() string                  { return "" }
func (p *passthroughPlugin) Capabilities() Capabilities                    { return Capabilities{} }
func (p *passthroughPlugin) AdditionalConfigMounts(string) []Mount         { return nil }

func (p *passthroughPlugin) BuildNonInteractiveArgv(prompt string, extraArgs []string, _ BuildContext) []string {
	argv := []string{p.bin}
	argv = append(argv, extraArgs...)
	if prompt != "" {
		argv = append(argv, prompt)
	}
	return argv
}

func (p *passthroughPlugin) BuildInteractiveCommandParts(userParts []string, extraArgs []string, prompt string, helpMode bool) []string {
	if helpMode {
		return []string{p.bin, "--help"}
	}
	argv := []string{p.bin}
	argv = append(argv, userParts...)
	argv = append(argv, extraArgs...)
	if prompt != "" {
		argv = append(argv, prompt)
	}
	return argv
}
