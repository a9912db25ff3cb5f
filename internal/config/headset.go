package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/banshee-data/mindflex/internal/thinkgear"
)

// DefaultConfigPath is the path to the canonical headset defaults file.
const DefaultConfigPath = "config/headset.defaults.json"

// ENV_PREFIX prefixes every environment override.
const ENV_PREFIX = "MINDFLEX_"

const (
	DEFAULT_PORT          = "/dev/cu.MINDFLEX-DevB"
	DEFAULT_THRESHOLD     = 65
	DEFAULT_WINDOW_SIZE   = 50
	DEFAULT_LISTEN        = "localhost:8080"
	DEFAULT_MOCK_INTERVAL = time.Second
)

// HeadsetConfig is the runtime configuration. Every field is optional; the
// Get* methods supply defaults for anything left unset, so partial files and
// sparse environments are safe.
type HeadsetConfig struct {
	// Serial link
	Port     *string `json:"port,omitempty" toml:"port" env:"PORT"`
	BaudRate *int    `json:"baud_rate,omitempty" toml:"baud_rate" env:"BAUD_RATE"`

	// Delivery policy
	Verbose    *bool `json:"verbose,omitempty" toml:"verbose" env:"VERBOSE"`
	Threshold  *int  `json:"threshold,omitempty" toml:"threshold" env:"THRESHOLD"`
	WindowSize *int  `json:"window_size,omitempty" toml:"window_size" env:"WINDOW_SIZE"`

	// Consumers and surfaces
	DBPath      *string `json:"db_path,omitempty" toml:"db_path" env:"DB_PATH"`
	CapturePath *string `json:"capture_path,omitempty" toml:"capture_path" env:"CAPTURE_PATH"`
	Listen      *string `json:"listen,omitempty" toml:"listen" env:"LISTEN"`

	// Diagnostics
	Debug        *bool   `json:"debug,omitempty" toml:"debug" env:"DEBUG"`
	LogFile      *string `json:"log_file,omitempty" toml:"log_file" env:"LOG_FILE"`
	MockInterval *string `json:"mock_interval,omitempty" toml:"mock_interval" env:"MOCK_INTERVAL"` // duration string like "1s"
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyHeadsetConfig returns a HeadsetConfig with all fields set to nil.
func EmptyHeadsetConfig() *HeadsetConfig {
	return &HeadsetConfig{}
}

// LoadHeadsetConfig loads a config file. The format follows the extension:
// .json or .toml. The result is validated.
func LoadHeadsetConfig(path string) (*HeadsetConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyHeadsetConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching parent directories so tests can run from any package.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *HeadsetConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadHeadsetConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ApplyEnv overlays MINDFLEX_* environment variables onto c. Unset variables
// leave fields untouched.
func (c *HeadsetConfig) ApplyEnv() error {
	return c.applyEnv(nil)
}

// applyEnv reads from environ instead of the process environment when it is
// non-nil.
func (c *HeadsetConfig) applyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: ENV_PREFIX}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return c.Validate()
}

// Validate checks that the configuration values are valid.
func (c *HeadsetConfig) Validate() error {
	if c.Port != nil && *c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *c.Threshold)
	}
	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", *c.WindowSize)
	}
	if c.MockInterval != nil && *c.MockInterval != "" {
		d, err := time.ParseDuration(*c.MockInterval)
		if err != nil {
			return fmt.Errorf("invalid mock_interval '%s': %w", *c.MockInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("mock_interval must be positive, got %s", d)
		}
	}
	return nil
}

func (c *HeadsetConfig) GetPort() string {
	if c.Port == nil {
		return DEFAULT_PORT
	}
	return *c.Port
}

func (c *HeadsetConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return thinkgear.BAUD_RATE
	}
	return *c.BaudRate
}

func (c *HeadsetConfig) GetVerbose() bool {
	return c.Verbose != nil && *c.Verbose
}

func (c *HeadsetConfig) GetThreshold() uint8 {
	if c.Threshold == nil {
		return DEFAULT_THRESHOLD
	}
	return uint8(*c.Threshold)
}

func (c *HeadsetConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return DEFAULT_WINDOW_SIZE
	}
	return *c.WindowSize
}

// GetDBPath returns the record store path; empty disables the store.
func (c *HeadsetConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetCapturePath returns the raw capture path; empty disables capture.
func (c *HeadsetConfig) GetCapturePath() string {
	if c.CapturePath == nil {
		return ""
	}
	return *c.CapturePath
}

func (c *HeadsetConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DEFAULT_LISTEN
	}
	return *c.Listen
}

func (c *HeadsetConfig) GetDebug() bool {
	return c.Debug != nil && *c.Debug
}

func (c *HeadsetConfig) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}

// GetMockInterval parses and returns the synthetic frame interval.
func (c *HeadsetConfig) GetMockInterval() time.Duration {
	if c.MockInterval == nil || *c.MockInterval == "" {
		return DEFAULT_MOCK_INTERVAL
	}
	d, err := time.ParseDuration(*c.MockInterval)
	if err != nil || d <= 0 {
		return DEFAULT_MOCK_INTERVAL
	}
	return d
}
