// Package ledger persists which prepared books have completed the upload
// pipeline. The ledger is a small JSON file written through on every
// completion, so a crash between books loses at most the in-flight book.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bookforge/internal/fileutil"
	"bookforge/internal/logging"
)

// state is the on-disk shape of the ledger file.
type state struct {
	ProcessedDirectories []string  `json:"processed_directories"`
	LastUpdated          time.Time `json:"last_updated"`
	TotalProcessed       int       `json:"total_processed"`
}

// Ledger tracks completed book directories by name. Safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time

	entries []string
	index   map[string]struct{}
	updated time.Time
}

// Load opens the ledger at path, creating an empty in-memory ledger when the
// file does not exist. A file that cannot be parsed is treated as empty with
// a warning; completed books would then be re-published, which the upload
// pipeline tolerates.
func Load(path string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logging.NewComponentLogger(logger, "ledger"),
		now:    time.Now,
		index:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var persisted state
	if err := json.Unmarshal(data, &persisted); err != nil {
		l.logger.Warn("ledger file is corrupt, starting from an empty ledger",
			logging.String("path", path),
			logging.Error(err))
		return l, nil
	}

	for _, name := range persisted.ProcessedDirectories {
		if _, seen := l.index[name]; seen {
			continue
		}
		l.index[name] = struct{}{}
		l.entries = append(l.entries, name)
	}
	l.updated = persisted.LastUpdated
	return l, nil
}

// Contains reports whether the named book directory has already completed.
func (l *Ledger) Contains(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[name]
	return ok
}

// MarkDone records the named book directory as completed and writes the
// ledger file before returning. Marking an already-recorded name is a no-op.
func (l *Ledger) MarkDone(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[name]; ok {
		return nil
	}
	l.index[name] = struct{}{}
	l.entries = append(l.entries, name)
	l.updated = l.now()

	if err := l.persistLocked(); err != nil {
		return err
	}
	l.logger.Info("recorded completed book",
		logging.String("directory", name),
		logging.Int("total_processed", len(l.entries)))
	return nil
}

// Entries returns the completed directory names in completion order.
func (l *Ledger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// LastUpdated returns the time of the most recent completion, zero when the
// ledger is empty.
func (l *Ledger) LastUpdated() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updated
}

func (l *Ledger) persistLocked() error {
	persisted := state{
		ProcessedDirectories: l.entries,
		LastUpdated:          l.updated,
		TotalProcessed:       len(l.entries),
	}
	data, err := json.MarshalIndent(&persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
