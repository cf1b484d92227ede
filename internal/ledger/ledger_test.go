package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bookforge/internal/ledger"
	"bookforge/internal/logging"
)

func ledgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "upload_ledger.json")
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	l, err := ledger.Load(ledgerPath(t), logging.NewNop())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(l.Entries()) != 0 {
		t.Fatalf("expected empty ledger, got %v", l.Entries())
	}
	if l.Contains("book_000_Anything") {
		t.Fatal("empty ledger must not contain entries")
	}
}

func TestMarkDoneWritesThroughAndSurvivesReload(t *testing.T) {
	path := ledgerPath(t)
	l, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := l.MarkDone("book_000_First"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := l.MarkDone("book_001_Second"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	// The file must already reflect both completions.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	var persisted struct {
		ProcessedDirectories []string `json:"processed_directories"`
		TotalProcessed       int      `json:"total_processed"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("parse ledger file: %v", err)
	}
	if persisted.TotalProcessed != 2 || len(persisted.ProcessedDirectories) != 2 {
		t.Fatalf("unexpected persisted state: %+v", persisted)
	}

	reloaded, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Contains("book_000_First") || !reloaded.Contains("book_001_Second") {
		t.Fatalf("reloaded ledger missing entries: %v", reloaded.Entries())
	}
	if reloaded.LastUpdated().IsZero() {
		t.Fatal("expected last updated timestamp after reload")
	}
}

func TestMarkDoneIsIdempotent(t *testing.T) {
	path := ledgerPath(t)
	l, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.MarkDone("book_002_Same"); err != nil {
			t.Fatalf("MarkDone attempt %d: %v", i, err)
		}
	}
	if got := l.Entries(); len(got) != 1 {
		t.Fatalf("expected one entry after repeated marks, got %v", got)
	}

	reloaded, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Entries(); len(got) != 1 || got[0] != "book_002_Same" {
		t.Fatalf("unexpected reloaded entries: %v", got)
	}
}

func TestLoadCorruptFileFallsBackToEmpty(t *testing.T) {
	path := ledgerPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	l, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Load should tolerate corrupt file, got %v", err)
	}
	if len(l.Entries()) != 0 {
		t.Fatalf("expected empty ledger after corrupt load, got %v", l.Entries())
	}

	// Marking after a corrupt load replaces the file with valid state.
	if err := l.MarkDone("book_000_Recovered"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	reloaded, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Contains("book_000_Recovered") {
		t.Fatal("expected recovered entry after corrupt load")
	}
}

func TestLoadDeduplicatesPersistedEntries(t *testing.T) {
	path := ledgerPath(t)
	content := `{"processed_directories":["book_000_A","book_000_A","book_001_B"],"last_updated":"2026-01-02T09:00:00Z","total_processed":3}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	l, err := ledger.Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := l.Entries(); len(got) != 2 {
		t.Fatalf("expected deduplicated entries, got %v", got)
	}
}
