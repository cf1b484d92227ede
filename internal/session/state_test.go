package session_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookforge/internal/session"
)

func TestSaveAndLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session_data.json")
	state := &session.State{
		Cookies: []session.Cookie{
			{Name: "session-id", Value: "abc123", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1893456000},
		},
		CurrentURL: "https://example.com/dashboard",
		Timestamp:  time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		UserAgent:  "test-agent",
	}

	if err := session.SaveState(path, state); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded, err := session.LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected state, got nil")
	}
	if len(loaded.Cookies) != 1 || loaded.Cookies[0].Name != "session-id" {
		t.Fatalf("unexpected cookies: %+v", loaded.Cookies)
	}
	if loaded.CurrentURL != state.CurrentURL || loaded.UserAgent != state.UserAgent {
		t.Fatalf("unexpected state: %+v", loaded)
	}
	if !loaded.Timestamp.Equal(state.Timestamp) {
		t.Fatalf("timestamp mismatch: %v", loaded.Timestamp)
	}
}

func TestSaveStateFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_data.json")
	if err := session.SaveState(path, &session.State{UserAgent: "ua"}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, key := range []string{"cookies", "current_url", "timestamp", "user_agent"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("expected key %q in session file, got %v", key, raw)
		}
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	state, err := session.LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state for missing file, got %+v", state)
	}
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_data.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := session.LoadState(path); err == nil {
		t.Fatal("expected error for corrupt session file")
	}
}
