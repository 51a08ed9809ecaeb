// Package config provides configuration management for the DubAlign Agent.
// Settings come from an optional YAML file overridden by environment
// variables, with sensible defaults underneath.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort       = 8591
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".dubalign"
	DefaultFrameRate  = 23.976
	DefaultSampleRate = 44100

	// Environment variable names
	EnvPort         = "DUBALIGN_PORT"
	EnvLogLevel     = "DUBALIGN_LOG_LEVEL"
	EnvDataDir      = "DUBALIGN_DATA_DIR"
	EnvConfigFile   = "DUBALIGN_CONFIG_FILE"
	EnvBackendURL   = "DUBALIGN_BACKEND_URL"
	EnvBackendToken = "DUBALIGN_BACKEND_TOKEN"
	EnvFrameRate    = "DUBALIGN_FRAME_RATE"
	EnvSampleRate   = "DUBALIGN_SAMPLE_RATE"
	EnvOutputDir    = "DUBALIGN_OUTPUT_DIR"
	EnvHeadless     = "DUBALIGN_HEADLESS"

	// Database filename
	DBFilename = "dubalign.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BackendURL() string
	BackendToken() string
	BackendEnabled() bool
	FrameRate() float64
	SampleRate() int
	OutputDir() string
	Headless() bool
}

// fileConfig is the optional YAML config file shape.
type fileConfig struct {
	Port         int     `yaml:"port"`
	LogLevel     string  `yaml:"log_level"`
	DataDir      string  `yaml:"data_dir"`
	BackendURL   string  `yaml:"backend_url"`
	BackendToken string  `yaml:"backend_token"`
	FrameRate    float64 `yaml:"frame_rate"`
	SampleRate   int     `yaml:"sample_rate"`
	OutputDir    string  `yaml:"output_dir"`
	Headless     bool    `yaml:"headless"`
}

// EnvConfig resolves configuration as env > yaml file > defaults.
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	backendURL   string
	backendToken string
	frameRate    float64
	sampleRate   int
	outputDir    string
	headless     bool
}

// New creates a new EnvConfig with defaults, optional YAML file values and
// environment variable overrides.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:       DefaultPort,
		logLevel:   DefaultLogLevel,
		dataDir:    defaultDataDir(),
		frameRate:  DefaultFrameRate,
		sampleRate: DefaultSampleRate,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.BackendURL != "" {
		c.backendURL = fc.BackendURL
	}
	if fc.BackendToken != "" {
		c.backendToken = fc.BackendToken
	}
	if fc.FrameRate > 0 {
		c.frameRate = fc.FrameRate
	}
	if fc.SampleRate > 0 {
		c.sampleRate = fc.SampleRate
	}
	if fc.OutputDir != "" {
		c.outputDir = fc.OutputDir
	}
	if fc.Headless {
		c.headless = true
	}
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if u := os.Getenv(EnvBackendURL); u != "" {
		c.backendURL = strings.TrimRight(u, "/")
	}
	if t := os.Getenv(EnvBackendToken); t != "" {
		c.backendToken = t
	}

	if fr := os.Getenv(EnvFrameRate); fr != "" {
		rate, err := strconv.ParseFloat(fr, 64)
		if err != nil || rate <= 0 {
			return fmt.Errorf("invalid %s: must be a positive number", EnvFrameRate)
		}
		c.frameRate = rate
	}

	if sr := os.Getenv(EnvSampleRate); sr != "" {
		rate, err := strconv.Atoi(sr)
		if err != nil || rate <= 0 {
			return fmt.Errorf("invalid %s: must be a positive integer", EnvSampleRate)
		}
		c.sampleRate = rate
	}

	if od := os.Getenv(EnvOutputDir); od != "" {
		c.outputDir = od
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		c.headless = h == "1" || strings.EqualFold(h, "true")
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// BackendURL returns the repair backend base URL
func (c *EnvConfig) BackendURL() string {
	return c.backendURL
}

// BackendToken returns the bearer token for the repair backend
func (c *EnvConfig) BackendToken() string {
	return c.backendToken
}

// BackendEnabled reports whether a real repair backend is configured
func (c *EnvConfig) BackendEnabled() bool {
	return c.backendURL != ""
}

// FrameRate returns the default frame rate for new sessions
func (c *EnvConfig) FrameRate() float64 {
	return c.frameRate
}

// SampleRate returns the default sample rate for new sessions
func (c *EnvConfig) SampleRate() int {
	return c.sampleRate
}

// OutputDir returns the directory watched for repaired output files.
// Empty means the watcher stays disabled.
func (c *EnvConfig) OutputDir() string {
	return c.outputDir
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
