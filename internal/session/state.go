package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookforge/internal/fileutil"
)

// Cookie is the persisted form of one browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is the on-disk session snapshot. Restoring it into a fresh browser
// lets a batch skip the login form when the cookies are still valid.
type State struct {
	Cookies    []Cookie  `json:"cookies"`
	CurrentURL string    `json:"current_url"`
	Timestamp  time.Time `json:"timestamp"`
	UserAgent  string    `json:"user_agent"`
}

// LoadState reads a session snapshot from path. A missing file returns
// (nil, nil): no saved session is a normal first-run condition.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &state, nil
}

// SaveState writes a session snapshot to path atomically.
func SaveState(path string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
