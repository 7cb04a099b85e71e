package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/transport"
)

const (
	DefaultConfigFile = "roboarm.json"
	DefaultEnvFile    = ".env"
	DefaultURL        = "http://roboarm.local"
)

// Environment variables that override the config file.
const (
	EnvURL      = "ROBOARM_URL"
	EnvTimeout  = "ROBOARM_TIMEOUT"
	EnvBaudRate = "ROBOARM_BAUD"
	EnvLogLevel = "ROBOARM_LOG_LEVEL"
)

// Config holds the connection settings and joint calibration.
type Config struct {
	URL            string      `json:"url"`
	TimeoutSeconds float64     `json:"timeout_seconds,omitempty"`
	BaudRate       int         `json:"baud_rate,omitempty"`
	LogLevel       string      `json:"log_level,omitempty"`
	Calibration    Calibration `json:"calibration,omitempty"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		URL:            DefaultURL,
		TimeoutSeconds: transport.DefaultTimeout.Seconds(),
		BaudRate:       transport.DefaultBaudRate,
		LogLevel:       "warn",
	}
}

// IsCalibrated returns true if the config has calibration data
func (c *Config) IsCalibrated() bool {
	return len(c.Calibration) > 0
}

// Timeout returns the configured timeout, or the transport default.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return transport.DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// ClientOptions returns the client options matching this config.
func (c *Config) ClientOptions(log logrus.FieldLogger) []Option {
	opts := []Option{WithTimeout(c.Timeout())}
	if c.BaudRate > 0 {
		opts = append(opts, WithBaudRate(c.BaudRate))
	}
	if log != nil {
		opts = append(opts, WithLogger(log))
	}
	return opts
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields the file
// leaves out keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault is LoadConfigFrom, returning the defaults when the file
// does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfigFrom(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

// ApplyEnv overrides fields from ROBOARM_* variables. Variables in envFile are
// used when the process environment does not set them; a missing envFile is
// not an error.
func (c *Config) ApplyEnv(envFile string) error {
	vars := map[string]string{}
	if envFile != "" {
		file, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", envFile, err)
		}
		maps.Copy(vars, file)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}

	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s: invalid timeout %q", EnvTimeout, v)
		}
		c.TimeoutSeconds = secs
	}
	if v, ok := lookup(EnvBaudRate); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil || baud <= 0 {
			return fmt.Errorf("%s: invalid baud rate %q", EnvBaudRate, v)
		}
		c.BaudRate = baud
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}
