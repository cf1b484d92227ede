package config

const (
	defaultBaseURL            = "https://kdp.amazon.com"
	defaultMaxLoginAttempts   = 3
	defaultCatalogSeparator   = ";"
	defaultPreparedDir        = "~/.local/share/bookforge/prepared_books"
	defaultLogDir             = "~/.local/share/bookforge/logs"
	defaultSessionFile        = "~/.local/share/bookforge/session_data.json"
	defaultUserDataDir        = "~/.local/share/bookforge/browser_profile"
	defaultBooksPerRun        = 3
	defaultUploadTime         = "09:00"
	defaultMinDelaySeconds    = 30
	defaultMaxDelaySeconds    = 120
	defaultTriggerPollSeconds = 60
	defaultWindowWidth        = 1366
	defaultWindowHeight       = 768
	defaultUserAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultPageLoadTimeout    = 30
	defaultElementTimeout     = 15
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Publisher: Publisher{
			BaseURL:          defaultBaseURL,
			MaxLoginAttempts: defaultMaxLoginAttempts,
		},
		Paths: Paths{
			CatalogSeparator: defaultCatalogSeparator,
			PreparedDir:      defaultPreparedDir,
			LogDir:           defaultLogDir,
			SessionFile:      defaultSessionFile,
		},
		Schedule: Schedule{
			BooksPerRun:         defaultBooksPerRun,
			UploadTime:          defaultUploadTime,
			MinDelaySeconds:     defaultMinDelaySeconds,
			MaxDelaySeconds:     defaultMaxDelaySeconds,
			TriggerPollSeconds:  defaultTriggerPollSeconds,
			RunOnStartup:        true,
			NotifyBatchComplete: true,
		},
		Browser: Browser{
			Headless:        false,
			UserDataDir:     defaultUserDataDir,
			WindowWidth:     defaultWindowWidth,
			WindowHeight:    defaultWindowHeight,
			UserAgent:       defaultUserAgent,
			PageLoadTimeout: defaultPageLoadTimeout,
			ElementTimeout:  defaultElementTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}
