package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePublisher(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSchedule()
	c.normalizeBrowser()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePublisher() error {
	c.Publisher.Email = strings.TrimSpace(c.Publisher.Email)
	c.Publisher.Password = strings.TrimSpace(c.Publisher.Password)
	if c.Publisher.Email == "" {
		if value, ok := os.LookupEnv("PUBLISHER_EMAIL"); ok {
			c.Publisher.Email = strings.TrimSpace(value)
		}
	}
	if c.Publisher.Password == "" {
		if value, ok := os.LookupEnv("PUBLISHER_PASSWORD"); ok {
			c.Publisher.Password = strings.TrimSpace(value)
		}
	}
	c.Publisher.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.BaseURL), "/")
	if c.Publisher.BaseURL == "" {
		c.Publisher.BaseURL = defaultBaseURL
	}
	if c.Publisher.MaxLoginAttempts <= 0 {
		c.Publisher.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CatalogFile) != "" {
		if c.Paths.CatalogFile, err = expandPath(c.Paths.CatalogFile); err != nil {
			return fmt.Errorf("paths.catalog_file: %w", err)
		}
	}
	if c.Paths.PreparedDir, err = expandPath(c.Paths.PreparedDir); err != nil {
		return fmt.Errorf("paths.prepared_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SessionFile, err = expandPath(c.Paths.SessionFile); err != nil {
		return fmt.Errorf("paths.session_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.CategoryFile) != "" {
		if c.Paths.CategoryFile, err = expandPath(c.Paths.CategoryFile); err != nil {
			return fmt.Errorf("paths.category_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.CatalogSeparator) == "" {
		c.Paths.CatalogSeparator = defaultCatalogSeparator
	}
	return nil
}

func (c *Config) normalizeSchedule() {
	if c.Schedule.BooksPerRun <= 0 {
		c.Schedule.BooksPerRun = defaultBooksPerRun
	}
	if strings.TrimSpace(c.Schedule.UploadTime) == "" {
		c.Schedule.UploadTime = defaultUploadTime
	}
	// Zero is a valid operator choice for the inter-book delay; only
	// negative values fall back to the defaults.
	if c.Schedule.MinDelaySeconds < 0 {
		c.Schedule.MinDelaySeconds = defaultMinDelaySeconds
	}
	if c.Schedule.MaxDelaySeconds < 0 {
		c.Schedule.MaxDelaySeconds = defaultMaxDelaySeconds
	}
	if c.Schedule.TriggerPollSeconds <= 0 {
		c.Schedule.TriggerPollSeconds = defaultTriggerPollSeconds
	}
}

func (c *Config) normalizeBrowser() {
	if expanded, err := expandPath(c.Browser.UserDataDir); err == nil {
		c.Browser.UserDataDir = expanded
	}
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = defaultWindowWidth
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = defaultWindowHeight
	}
	if strings.TrimSpace(c.Browser.UserAgent) == "" {
		c.Browser.UserAgent = defaultUserAgent
	}
	if c.Browser.PageLoadTimeout <= 0 {
		c.Browser.PageLoadTimeout = defaultPageLoadTimeout
	}
	if c.Browser.ElementTimeout <= 0 {
		c.Browser.ElementTimeout = defaultElementTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
