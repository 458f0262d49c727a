package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Creatomate  CreatomateConfig `toml:"creatomate"`
	Drive       DriveConfig      `toml:"drive"`
	Schedule    ScheduleConfig   `toml:"schedule"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"required,min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig controls the dispatcher and backup poller cadences
type QueueConfig struct {
	DispatchSchedule string `toml:"dispatch_schedule"` // Cron expression for the dispatcher
	PollSchedule     string `toml:"poll_schedule"`     // Cron expression for the backup status poller
	DispatchLimit    int    `toml:"dispatch_limit" validate:"min=1"`
	StaleThreshold   string `toml:"stale_threshold"` // e.g. "15m" - processing jobs older than this get polled
	MaxRetries       int    `toml:"max_retries" validate:"min=1"`
}

// CreatomateConfig holds renderer API settings
type CreatomateConfig struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	WebhookURL      string `toml:"webhook_url"`      // Public URL Creatomate calls back on completion
	RatePerSecond   int    `toml:"rate_per_second"`  // Submission rate limit (provider allows ~30 req/10s)
	RequestTimeout  string `toml:"request_timeout"`  // e.g. "30s"
	DownloadTimeout string `toml:"download_timeout"` // e.g. "2m" - artifact downloads are large
}

// DriveConfig holds Google Drive settings for artifact storage
type DriveConfig struct {
	ServiceAccountEmail string `toml:"service_account_email"`
	PrivateKey          string `toml:"private_key"` // PEM, \n-escaped when set via env
	RootFolderID        string `toml:"root_folder_id"`
	DealersFolder       string `toml:"dealers_folder"` // Logical path segment under the root, default "Dealers"
}

// ScheduleConfig controls where the active post numbers come from
type ScheduleConfig struct {
	SpreadsheetID   string `toml:"spreadsheet_id"`
	Range           string `toml:"range"`            // e.g. "Schedule!A2:B"
	ActivePosts     []int  `toml:"active_posts"`     // Static fallback when no spreadsheet is configured
	RefreshInterval string `toml:"refresh_interval"` // Cache TTL for spreadsheet reads
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/renderd",
				ResetOnStartup: false,
			},
		},
		Queue: QueueConfig{
			DispatchSchedule: "*/1 * * * *",
			PollSchedule:     "*/5 * * * *",
			DispatchLimit:    25,
			StaleThreshold:   "15m",
			MaxRetries:       3,
		},
		Creatomate: CreatomateConfig{
			BaseURL:         "https://api.creatomate.com/v1",
			RatePerSecond:   3, // Well under the 30 req/10s provider limit
			RequestTimeout:  "30s",
			DownloadTimeout: "2m",
		},
		Drive: DriveConfig{
			DealersFolder: "Dealers",
		},
		Schedule: ScheduleConfig{
			Range:           "Schedule!A2:B",
			RefreshInterval: "5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for required values and ranges
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StaleThresholdDuration parses the stale threshold, falling back to 15m
func (c *QueueConfig) StaleThresholdDuration() time.Duration {
	d, err := time.ParseDuration(c.StaleThreshold)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RENDERD_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("RENDERD_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RENDERD_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("RENDERD_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Queue configuration
	if limit := os.Getenv("RENDERD_DISPATCH_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Queue.DispatchLimit = l
		}
	}
	if threshold := os.Getenv("RENDERD_STALE_THRESHOLD"); threshold != "" {
		config.Queue.StaleThreshold = threshold
	}

	// Creatomate credentials are env-only in production
	if apiKey := os.Getenv("CREATOMATE_API_KEY"); apiKey != "" {
		config.Creatomate.APIKey = apiKey
	}
	if webhookURL := os.Getenv("RENDERD_WEBHOOK_URL"); webhookURL != "" {
		config.Creatomate.WebhookURL = webhookURL
	}

	// Google service account credentials, matching the original deployment env names
	if email := os.Getenv("GOOGLE_SERVICE_ACCOUNT_EMAIL"); email != "" {
		config.Drive.ServiceAccountEmail = email
	}
	if key := os.Getenv("GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY"); key != "" {
		// Keys arrive \n-escaped from most secret stores
		config.Drive.PrivateKey = strings.ReplaceAll(key, `\n`, "\n")
	}
	if rootID := os.Getenv("RENDERD_DRIVE_ROOT_FOLDER_ID"); rootID != "" {
		config.Drive.RootFolderID = rootID
	}
	if sheetID := os.Getenv("RENDERD_SCHEDULE_SPREADSHEET_ID"); sheetID != "" {
		config.Schedule.SpreadsheetID = sheetID
	}

	// Logging configuration
	if level := os.Getenv("RENDERD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("RENDERD_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
