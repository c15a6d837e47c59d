package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	stateFile = "state.json"
)

// State is the persisted chat session state: the conversation the user was
// last talking in, so the next "rolechat chat" can resume it.
type State struct {
	ConversationID int64     `json:"conversation_id"`
	CharacterID    int64     `json:"character_id,omitempty"`
	CharacterName  string    `json:"character_name,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LoadState loads the session state from a target .rolechat/state.json.
// Returns nil, nil if no state has been saved yet.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadState(overrideDir string) (*State, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveState persists the session state to a target .rolechat/state.json.
func (m *Manager) SaveState(state *State, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, stateFile), data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearState removes the session state file so the next chat starts fresh.
// Returns nil if the file doesn't exist.
func (m *Manager) ClearState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, stateFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
