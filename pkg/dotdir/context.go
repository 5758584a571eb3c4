package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	contextFile = "context.json"
)

// ContextState represents the persisted CLI context. It records the
// collection that "spool collection use" made active; commands fall back
// to it when no collection is set explicitly.
type ContextState struct {
	// Collection is the name of the active collection.
	Collection string `json:"collection"`
}

// LoadContextState loads the context state from a target .spool/context.json.
// Returns nil, nil if no context state exists.
// If overrideDir is non-empty, it is used instead of the default .spool/ location.
func (m *Manager) LoadContextState(overrideDir string) (*ContextState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, contextFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading context state: %w", err)
	}

	state := &ContextState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing context state: %w", err)
	}

	return state, nil
}

// SaveContext persists the context state to a target .spool/context.json.
func (m *Manager) SaveContext(state *ContextState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil context state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling context state: %w", err)
	}

	path := filepath.Join(dir, contextFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing context state: %w", err)
	}

	return nil
}

// ClearContext removes the context state file.
// The next command falls back to the configured collection.
// If overrideDir is non-empty, it is used instead of the default .spool/ location.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearContext(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, contextFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing context state: %w", err)
	}

	return nil
}
