package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validate checks semantic constraints across all sections. It assumes the
// config has already been normalized.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Publisher.Email) == "" {
		problems = append(problems, "publisher.email must be set (or PUBLISHER_EMAIL)")
	}
	if strings.TrimSpace(c.Publisher.Password) == "" {
		problems = append(problems, "publisher.password must be set (or PUBLISHER_PASSWORD)")
	}
	if !strings.HasPrefix(c.Publisher.BaseURL, "http://") && !strings.HasPrefix(c.Publisher.BaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("publisher.base_url %q must be an http(s) URL", c.Publisher.BaseURL))
	}

	if utf8.RuneCountInString(c.Paths.CatalogSeparator) != 1 {
		problems = append(problems, fmt.Sprintf("paths.catalog_separator %q must be a single character", c.Paths.CatalogSeparator))
	}
	if strings.TrimSpace(c.Paths.PreparedDir) == "" {
		problems = append(problems, "paths.prepared_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SessionFile) == "" {
		problems = append(problems, "paths.session_file must be set")
	}

	if c.Schedule.BooksPerRun < 1 {
		problems = append(problems, "schedule.books_per_run must be at least 1")
	}
	if _, _, err := ParseClock(c.Schedule.UploadTime); err != nil {
		problems = append(problems, fmt.Sprintf("schedule.upload_time: %v", err))
	}
	if c.Schedule.MinDelaySeconds > c.Schedule.MaxDelaySeconds {
		problems = append(problems, fmt.Sprintf("schedule.min_delay_seconds (%d) must not exceed schedule.max_delay_seconds (%d)",
			c.Schedule.MinDelaySeconds, c.Schedule.MaxDelaySeconds))
	}

	if c.Browser.PageLoadTimeout < 1 {
		problems = append(problems, "browser.page_load_timeout must be at least 1 second")
	}
	if c.Browser.ElementTimeout < 1 {
		problems = append(problems, "browser.element_timeout must be at least 1 second")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout < 1 {
		problems = append(problems, "notifications.request_timeout must be at least 1 second")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// ParseClock parses a wall-clock value in HH:MM form.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time %q must be in HH:MM form", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q has an invalid hour", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q has an invalid minute", value)
	}
	return hour, minute, nil
}
