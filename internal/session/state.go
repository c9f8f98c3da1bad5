package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Aman-CERP/spanlabel/pkg/version"
)

const stateFileName = "session.json"

// State is what is remembered about a project between runs.
type State struct {
	// Project is the absolute project root the state belongs to.
	Project string `json:"project"`

	// Document is the name of the last opened document.
	Document string `json:"document"`

	// Cursor is the caret rune offset when the document was closed.
	Cursor int `json:"cursor"`

	LastUsed time.Time `json:"last_used"`
	Version  string    `json:"version"`
}

// StateStore keeps one State per project under a storage directory.
type StateStore struct {
	dir string
}

// NewStateStore creates the storage directory if needed.
func NewStateStore(dir string) (*StateStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session storage path is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}
	return &StateStore{dir: dir}, nil
}

// projectDir maps a project root to a stable directory name.
func (s *StateStore) projectDir(project string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(project)))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8]))
}

// Save writes st atomically (temp file + rename) and stamps LastUsed.
func (s *StateStore) Save(st State) error {
	st.LastUsed = time.Now().UTC()
	st.Version = version.Version

	dir := s.projectDir(st.Project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(dir, stateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Load returns the state of project. ok is false when nothing was saved.
func (s *StateStore) Load(project string) (State, bool, error) {
	return readState(filepath.Join(s.projectDir(project), stateFileName))
}

func readState(path string) (State, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("failed to read %s: %w", stateFileName, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("failed to parse %s: %w", stateFileName, err)
	}
	return st, true, nil
}

// List returns every saved state, most recently used first. Unreadable
// entries are skipped.
func (s *StateStore) List() ([]State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var out []State
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		st, ok, err := readState(filepath.Join(s.dir, entry.Name(), stateFileName))
		if err != nil || !ok {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out, nil
}

// Forget removes the state of project.
func (s *StateStore) Forget(project string) error {
	if err := os.RemoveAll(s.projectDir(project)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Prune removes states unused for longer than olderThan and returns how
// many were removed.
func (s *StateStore) Prune(olderThan time.Duration) (int, error) {
	states, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, st := range states {
		if time.Since(st.LastUsed) > olderThan {
			if err := s.Forget(st.Project); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
