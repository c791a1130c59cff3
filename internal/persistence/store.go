// Package persistence implements Persistence (C11): atomic temp-file+
// rename TOML encoding/decoding of Task and Environment/Settings records
// to the on-disk layout in SPEC_FULL.md §4.10:
//
//	state.toml
//	tasks/<task-id>.toml
//	tasks/done/<task-id>.toml
//	artifacts/<env>/<content-hash>/...
//
// Grounded stylistically in the teacher's config-loading conventions
// (internal/config/config.go's defaults-then-validate structuring),
// adapted from read-only viper config to a read/write record store because
// the runner itself owns and mutates this state.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/midoriai/agents-runner/internal/taskmodel"
)

// Store is rooted at a data directory and owns the on-disk task/settings
// layout.
type Store struct {
	DataDir string
}

// New creates a Store rooted at dataDir, creating the directory tree if
// absent.
func New(dataDir string) (*Store, error) {
	s := &Store{DataDir: dataDir}
	for _, dir := range []string{s.tasksDir(), s.tasksDoneDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("persistence: create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) tasksDir() string     { return filepath.Join(s.DataDir, "tasks") }
func (s *Store) tasksDoneDir() string { return filepath.Join(s.DataDir, "tasks", "done") }
func (s *Store) stateFile() string    { return filepath.Join(s.DataDir, "state.toml") }

func (s *Store) activeTaskFile(taskID string) string {
	return filepath.Join(s.tasksDir(), taskID+".toml")
}

func (s *Store) doneTaskFile(taskID string) string {
	return filepath.Join(s.tasksDoneDir(), taskID+".toml")
}

// artifactDir is the content-addressed artifact store root for envID.
func (s *Store) artifactDir(envID, contentHash string) string {
	return filepath.Join(s.DataDir, "artifacts", envID, contentHash)
}

// ArtifactDir exposes artifactDir to the Finalizer (C10).
func (s *Store) ArtifactDir(envID, contentHash string) string {
	return s.artifactDir(envID, contentHash)
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a reader never observes a partial write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persistence: rename into place: %w", err)
	}
	return nil
}

// SaveTask writes an active task record. Terminal+finalized tasks should
// be archived via ArchiveTask instead, never left in the active directory.
func (s *Store) SaveTask(t *taskmodel.Task) error {
	data, err := toml.Marshal(t)
	if err != nil {
		return fmt.Errorf("persistence: marshal task %s: %w", t.TaskID, err)
	}
	return writeAtomic(s.activeTaskFile(t.TaskID), data)
}

// LoadTask reads an active task record by ID.
func (s *Store) LoadTask(taskID string) (*taskmodel.Task, error) {
	data, err := os.ReadFile(s.activeTaskFile(taskID))
	if err != nil {
		return nil, fmt.Errorf("persistence: read task %s: %w", taskID, err)
	}
	var t taskmodel.Task
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal task %s: %w", taskID, err)
	}
	return &t, nil
}

// ListActiveTasks returns every task currently under tasks/ (not yet
// archived to tasks/done/).
func (s *Store) ListActiveTasks() ([]*taskmodel.Task, error) {
	entries, err := os.ReadDir(s.tasksDir())
	if err != nil {
		return nil, fmt.Errorf("persistence: list active tasks: %w", err)
	}
	var tasks []*taskmodel.Task
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		taskID := e.Name()[:len(e.Name())-len(".toml")]
		t, err := s.LoadTask(taskID)
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// ArchiveTask moves a terminal, fully-finalized task's active file into
// tasks/done/. Per §4.10, a name collision in the destination is resolved
// by renaming with a nanosecond suffix rather than overwriting, to avoid
// data loss.
func (s *Store) ArchiveTask(t *taskmodel.Task, now time.Time) error {
	if !t.Status.IsTerminal() || t.FinalizationState != taskmodel.FinalizationDone {
		return fmt.Errorf("persistence: task %s is not terminal-and-finalized, refusing to archive", t.TaskID)
	}
	// Ensure the active file reflects the final record before the move.
	if err := s.SaveTask(t); err != nil {
		return err
	}

	dest := s.doneTaskFile(t.TaskID)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(s.tasksDoneDir(), fmt.Sprintf("%s.dup-%s.toml", t.TaskID, strconv.FormatInt(now.UnixNano(), 10)))
	}
	if err := os.Rename(s.activeTaskFile(t.TaskID), dest); err != nil {
		return fmt.Errorf("persistence: archive task %s: %w", t.TaskID, err)
	}
	return nil
}

// settingsDoc is the on-disk shape of state.toml: Settings plus the
// Environments map and a schema version, all versioned together.
type settingsDoc struct {
	SchemaVersion int                               `toml:"schema_version"`
	Settings      taskmodel.Settings                `toml:"settings"`
	Environments  map[string]*taskmodel.Environment `toml:"environments"`
}

// SaveState atomically writes Settings and Environments to state.toml.
func (s *Store) SaveState(settings *taskmodel.Settings, envs map[string]*taskmodel.Environment) error {
	settings.SchemaVersion = taskmodel.CurrentSchemaVersion
	doc := settingsDoc{
		SchemaVersion: taskmodel.CurrentSchemaVersion,
		Settings:      *settings,
		Environments:  envs,
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persistence: marshal state: %w", err)
	}
	return writeAtomic(s.stateFile(), data)
}

// LoadState reads state.toml. A schema version mismatch causes the file to
// be ignored (returns empty Settings/Environments, no error) per §4.10 --
// task files are independent of state.toml and are unaffected.
func (s *Store) LoadState() (*taskmodel.Settings, map[string]*taskmodel.Environment, error) {
	data, err := os.ReadFile(s.stateFile())
	if err != nil {
		if os.IsNotExist(err) {
			return &taskmodel.Settings{DataDir: s.DataDir, SchemaVersion: taskmodel.CurrentSchemaVersion}, map[string]*taskmodel.Environment{}, nil
		}
		return nil, nil, fmt.Errorf("persistence: read state: %w", err)
	}

	var doc settingsDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("persistence: unmarshal state: %w", err)
	}
	if doc.SchemaVersion != taskmodel.CurrentSchemaVersion {
		return &taskmodel.Settings{DataDir: s.DataDir, SchemaVersion: taskmodel.CurrentSchemaVersion}, map[string]*taskmodel.Environment{}, nil
	}
	if doc.Environments == nil {
		doc.Environments = map[string]*taskmodel.Environment{}
	}
	settings := doc.Settings
	settings.SchemaVersion = doc.SchemaVersion
	return &settings, doc.Environments, nil
}

// MigrateLegacyGHManagementMode translates the older `gh_management_mode`
// field (`github`/`local`) into `workspace_type` (`cloned`/`mounted`) on
// load, per spec.md §4.10's migration note. Callers pass the raw legacy
// value read from a pre-migration record; ok is false when no migration
// applies.
func MigrateLegacyGHManagementMode(legacy string) (taskmodel.WorkspaceType, bool) {
	switch legacy {
	case "github":
		return taskmodel.WorkspaceCloned, true
	case "local":
		return taskmodel.WorkspaceMounted, true
	default:
		return "", false
	}
}
