package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all ascbridge configuration.
type Config struct {
	// AssemblyScript project layout
	Project ProjectConfig `yaml:"project"`

	// Dev server and artifact server
	Serve ServeConfig `yaml:"serve"`

	// Browser verification and retry
	Verify VerifyConfig `yaml:"verify"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServeConfig configures the host web root and the HTTP servers built on it.
type ServeConfig struct {
	WebRoot      string `yaml:"web_root"`      // directory holding index.html
	Host         string `yaml:"host"`          // bind address
	Port         int    `yaml:"port"`          // 0 picks an ephemeral port
	ReadyTimeout string `yaml:"ready_timeout"` // live server readiness budget
	PollInterval string `yaml:"poll_interval"` // readiness poll period
	CacheEntries int    `yaml:"cache_entries"` // dev server file cache size
}

// VerifyConfig configures browser sessions and the retry supervisor.
type VerifyConfig struct {
	BrowserBin     string `yaml:"browser_bin"` // empty lets rod find or fetch Chromium
	Headless       bool   `yaml:"headless"`
	NoSandbox      bool   `yaml:"no_sandbox"`
	SessionTimeout string `yaml:"session_timeout"`
	MaxAttempts    int    `yaml:"max_attempts"`
	Backoff        string `yaml:"backoff"`
	ShortCircuit   bool   `yaml:"short_circuit"` // stop retrying non-transport failures
	Parallel       int    `yaml:"parallel"`      // scenarios run at once
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: DefaultProject(),

		Serve: ServeConfig{
			WebRoot:      ".",
			Host:         "127.0.0.1",
			Port:         0,
			ReadyTimeout: "30s",
			PollInterval: "100ms",
			CacheEntries: 256,
		},

		Verify: VerifyConfig{
			Headless:       true,
			SessionTimeout: "60s",
			MaxAttempts:    10,
			Backoff:        "1s",
			Parallel:       1,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Dir:    ".ascbridge/logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. An optional .env next to the file is read first; variables
// already present in the environment win over it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		// Keys omitted from the file keep their defaults.
		cfg.Project = DefaultProject().Merge(cfg.Project)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies ASCBRIDGE_* environment variable overrides.
// Unparseable numeric or boolean values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASCBRIDGE_PROJECT_ROOT"); v != "" {
		c.Project.SourceRoot = v
	}
	if v := os.Getenv("ASCBRIDGE_ENTRY_FILE"); v != "" {
		c.Project.EntryFile = v
	}
	if v := os.Getenv("ASCBRIDGE_DIST_FOLDER"); v != "" {
		c.Project.DistRoot = v
	}
	if v := os.Getenv("ASCBRIDGE_COMPILER_BIN"); v != "" {
		c.Project.CompilerBin = v
	}

	if v := os.Getenv("ASCBRIDGE_WEB_ROOT"); v != "" {
		c.Serve.WebRoot = v
	}

	if v := os.Getenv("ASCBRIDGE_BROWSER_BIN"); v != "" {
		c.Verify.BrowserBin = v
	}
	if v := os.Getenv("ASCBRIDGE_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Verify.Headless = b
		}
	}
	if v := os.Getenv("ASCBRIDGE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Verify.MaxAttempts = n
		}
	}

	if v := os.Getenv("ASCBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetReadyTimeout returns the live server readiness budget.
func (c *Config) GetReadyTimeout() time.Duration {
	return parseDuration(c.Serve.ReadyTimeout, 30*time.Second)
}

// GetPollInterval returns the readiness poll period.
func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.Serve.PollInterval, 100*time.Millisecond)
}

// GetSessionTimeout returns the per-attempt browser session budget.
func (c *Config) GetSessionTimeout() time.Duration {
	return parseDuration(c.Verify.SessionTimeout, 60*time.Second)
}

// GetBackoff returns the wait between verification attempts.
func (c *Config) GetBackoff() time.Duration {
	return parseDuration(c.Verify.Backoff, time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Project.SourceRoot == "" {
		return fmt.Errorf("project.project_root must not be empty")
	}
	if c.Project.EntryFile == "" {
		return fmt.Errorf("project.src_entry_file must not be empty")
	}
	if c.Project.CompilerBin == "" {
		return fmt.Errorf("project.compiler_bin must not be empty")
	}
	if c.Serve.WebRoot == "" {
		return fmt.Errorf("serve.web_root must not be empty")
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port out of range: %d", c.Serve.Port)
	}
	if c.Verify.MaxAttempts < 1 {
		return fmt.Errorf("verify.max_attempts must be at least 1, got %d", c.Verify.MaxAttempts)
	}

	durations := map[string]string{
		"serve.ready_timeout":    c.Serve.ReadyTimeout,
		"serve.poll_interval":    c.Serve.PollInterval,
		"verify.session_timeout": c.Verify.SessionTimeout,
		"verify.backoff":         c.Verify.Backoff,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if strings.EqualFold(c.Logging.Level, l) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging.level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
