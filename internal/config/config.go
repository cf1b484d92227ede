package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Publisher contains credentials and endpoint settings for the external
// publishing console.
type Publisher struct {
	Email            string `toml:"email"`
	Password         string `toml:"password"`
	BaseURL          string `toml:"base_url"`
	MaxLoginAttempts int    `toml:"max_login_attempts"`
}

// Paths contains file and directory locations.
type Paths struct {
	CatalogFile      string `toml:"catalog_file"`
	CatalogSeparator string `toml:"catalog_separator"`
	PreparedDir      string `toml:"prepared_dir"`
	LogDir           string `toml:"log_dir"`
	SessionFile      string `toml:"session_file"`
	CategoryFile     string `toml:"category_file"`
}

// Schedule contains batch sizing and daily trigger settings.
type Schedule struct {
	BooksPerRun         int    `toml:"books_per_run"`
	UploadTime          string `toml:"upload_time"`
	MinDelaySeconds     int    `toml:"min_delay_seconds"`
	MaxDelaySeconds     int    `toml:"max_delay_seconds"`
	TriggerPollSeconds  int    `toml:"trigger_poll_seconds"`
	RunOnStartup        bool   `toml:"run_on_startup"`
	NotifyBatchComplete bool   `toml:"notify_batch_complete"`
}

// Browser contains settings for the driven browser instance.
type Browser struct {
	Headless        bool   `toml:"headless"`
	UserDataDir     string `toml:"user_data_dir"`
	WindowWidth     int    `toml:"window_width"`
	WindowHeight    int    `toml:"window_height"`
	UserAgent       string `toml:"user_agent"`
	PageLoadTimeout int    `toml:"page_load_timeout"`
	ElementTimeout  int    `toml:"element_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for bookforge.
//
// Configuration sections by subsystem:
//   - Publisher: console credentials and endpoint
//   - Paths: catalog, prepared books, logs, session state, category data
//   - Schedule: batch size, daily trigger, inter-book delay bounds
//   - Browser: headless flag, profile directory, wait timeouts
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Publisher     Publisher     `toml:"publisher"`
	Paths         Paths         `toml:"paths"`
	Schedule      Schedule      `toml:"schedule"`
	Browser       Browser       `toml:"browser"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// LedgerPath returns the location of the batch completion ledger.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "completed_books.json")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "bookforge.lock")
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bookforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PreparedDir, c.Paths.LogDir, c.Browser.UserDataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
