// internal/cli/state.go
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dalemusser/campusdesk/internal/app/system/selection"
)

// stateData is the on-disk shape of the state file.
type stateData struct {
	Token      string `json:"token,omitempty"`
	SchoolCode string `json:"selected_school_code,omitempty"`
	YearID     string `json:"selected_academic_year_id,omitempty"`
}

// State is a small JSON file that keeps the API token and the school and
// year selection between runs. It is both the backend.TokenStore and the
// selection.Persister for the CLI. Every change is written immediately.
type State struct {
	path string

	mu   sync.Mutex
	data stateData
}

// DefaultStatePath is <user config dir>/campusdesk/state.json.
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "campusdesk", "state.json"), nil
}

// LoadState reads path. A missing file is an empty state.
func LoadState(path string) (*State, error) {
	s := &State{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file backing s.
func (s *State) Path() string { return s.path }

func (s *State) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Token
}

func (s *State) SetToken(token string) error {
	return s.update(func(d *stateData) { d.Token = token })
}

func (s *State) ClearToken() error { return s.SetToken("") }

// Get returns a persisted selection key.
func (s *State) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case selection.KeySchoolCode:
		return s.data.SchoolCode
	case selection.KeyYearID:
		return s.data.YearID
	}
	return ""
}

// Set persists a selection key. Unknown keys are ignored.
func (s *State) Set(key, value string) error {
	return s.update(func(d *stateData) {
		switch key {
		case selection.KeySchoolCode:
			d.SchoolCode = value
		case selection.KeyYearID:
			d.YearID = value
		}
	})
}

func (s *State) update(fn func(*stateData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data
	fn(&next)
	if next == s.data {
		return nil
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// write replaces the file through a temp file and rename.
func (s *State) write(d stateData) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
