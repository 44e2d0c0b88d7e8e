package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Jobs        JobsConfig      `toml:"jobs"`
	Sync        SyncConfig      `toml:"sync"`
	Driver      DriverConfig    `toml:"driver"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for result history
type BadgerConfig struct {
	Enabled        bool   `toml:"enabled"`          // Persist sync results to Badger
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// JobsConfig contains configuration for job definition loading
type JobsConfig struct {
	DefinitionsDir string `toml:"definitions_dir"` // Directory containing job definition files (TOML/YAML)
}

// SyncConfig tunes the extraction pipeline and coordinator
type SyncConfig struct {
	MaxAttempts      int           `toml:"max_attempts"`       // Retry attempts per driver operation
	AttemptTimeout   time.Duration `toml:"attempt_timeout"`    // Hard timeout per attempt
	AuthPollAttempts int           `toml:"auth_poll_attempts"` // Polls waiting for authenticated markers
	AuthPollInterval time.Duration `toml:"auth_poll_interval"` // Spacing between auth polls
	MemberPacing     time.Duration `toml:"member_pacing"`      // Delay between member detail fetches
	JobPacing        time.Duration `toml:"job_pacing"`         // Delay between jobs in a batch
	RecoveryWait     time.Duration `toml:"recovery_wait"`      // Fixed delay used by recovery actions
	LoginPath        string        `toml:"login_path"`         // Path appended to source URL origin for the login surface
}

// DriverConfig contains chromedp browser driver configuration
type DriverConfig struct {
	UserAgent         string        `toml:"user_agent"`
	Headless          bool          `toml:"headless"`
	DisableGPU        bool          `toml:"disable_gpu"`
	NoSandbox         bool          `toml:"no_sandbox"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"`
	RenderWaitTime    time.Duration `toml:"render_wait_time"` // Time to wait for JavaScript to render
	ArtifactDir       string        `toml:"artifact_dir"`     // Directory for diagnostic screenshots
}

// SchedulerConfig controls cron-scheduled sync runs
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// WebSocketConfig contains configuration for progress event streaming
type WebSocketConfig struct {
	Enabled          bool   `toml:"enabled"`
	ProgressInterval string `toml:"progress_interval"` // Max one sync_progress broadcast per interval per client set
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data",
			},
		},
		Jobs: JobsConfig{
			DefinitionsDir: "./job-definitions",
		},
		Sync: SyncConfig{
			MaxAttempts:      3,
			AttemptTimeout:   30 * time.Second,
			AuthPollAttempts: 15, // 15 polls at 2s spacing = 30s budget
			AuthPollInterval: 2 * time.Second,
			MemberPacing:     500 * time.Millisecond,
			JobPacing:        5 * time.Second,
			RecoveryWait:     3 * time.Second,
			LoginPath:        "/login",
		},
		Driver: DriverConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headless:          true,
			DisableGPU:        true,
			NoSandbox:         false,
			NavigationTimeout: 30 * time.Second,
			RenderWaitTime:    3 * time.Second,
			ArtifactDir:       "./data/artifacts",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false, // Disabled by default - user must explicitly opt-in
			Schedule: "0 6 * * *",
		},
		WebSocket: WebSocketConfig{
			Enabled:          false,
			ProgressInterval: "1s",
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

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEAGUESYNC_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("LEAGUESYNC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LEAGUESYNC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("LEAGUESYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LEAGUESYNC_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if badgerPath := os.Getenv("LEAGUESYNC_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if enabled := os.Getenv("LEAGUESYNC_BADGER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Badger.Enabled = e
		}
	}

	if dir := os.Getenv("LEAGUESYNC_JOBS_DIR"); dir != "" {
		config.Jobs.DefinitionsDir = dir
	}

	if maxAttempts := os.Getenv("LEAGUESYNC_SYNC_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Sync.MaxAttempts = ma
		}
	}
	if timeout := os.Getenv("LEAGUESYNC_SYNC_ATTEMPT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Sync.AttemptTimeout = d
		}
	}
	if pacing := os.Getenv("LEAGUESYNC_SYNC_JOB_PACING"); pacing != "" {
		if d, err := time.ParseDuration(pacing); err == nil {
			config.Sync.JobPacing = d
		}
	}

	if userAgent := os.Getenv("LEAGUESYNC_DRIVER_USER_AGENT"); userAgent != "" {
		config.Driver.UserAgent = userAgent
	}
	if headless := os.Getenv("LEAGUESYNC_DRIVER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Driver.Headless = h
		}
	}
	if noSandbox := os.Getenv("LEAGUESYNC_DRIVER_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Driver.NoSandbox = ns
		}
	}

	if enabled := os.Getenv("LEAGUESYNC_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("LEAGUESYNC_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}

	if enabled := os.Getenv("LEAGUESYNC_WEBSOCKET_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.WebSocket.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
