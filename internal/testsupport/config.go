package testsupport

import (
	"path/filepath"
	"testing"

	"bookforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Publisher.Email = "test@example.com"
	cfg.Publisher.Password = "test-password"
	cfg.Paths.CatalogFile = filepath.Join(base, "catalog.csv")
	cfg.Paths.PreparedDir = filepath.Join(base, "prepared_books")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SessionFile = filepath.Join(base, "session_data.json")
	cfg.Browser.UserDataDir = filepath.Join(base, "browser_profile")
	cfg.Schedule.MinDelaySeconds = 0
	cfg.Schedule.MaxDelaySeconds = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBooksPerRun overrides the batch size on the test config.
func WithBooksPerRun(count int) ConfigOption {
	return func(c *config.Config) {
		c.Schedule.BooksPerRun = count
	}
}
