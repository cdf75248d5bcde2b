// Package config provides configuration management for the clipforge server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8000
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "CLIPFORGE_PORT"
	EnvLogLevel = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir  = "CLIPFORGE_DATA_DIR"

	// Assembly environment variable names
	EnvFFmpegPath     = "CLIPFORGE_FFMPEG"
	EnvFetchTimeoutS  = "CLIPFORGE_FETCH_TIMEOUT_S"
	EnvConcatTimeoutS = "CLIPFORGE_CONCAT_TIMEOUT_S"
	EnvMuxTimeoutS    = "CLIPFORGE_MUX_TIMEOUT_S"

	// Database filename
	DBFilename = "clipforge.db"

	// Assembly defaults
	DefaultFetchTimeout  = 60  // seconds, per clip
	DefaultConcatTimeout = 300 // seconds, whole concat invocation
	DefaultMuxTimeout    = 120 // seconds, audio mux invocation
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	DownloadsDir() string
	OutputDir() string
	ScratchDir() string
	FFmpegPath() string
	FetchTimeout() time.Duration
	ConcatTimeout() time.Duration
	MuxTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	ffmpegPath     string
	fetchTimeoutS  int
	concatTimeoutS int
	muxTimeoutS    int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		fetchTimeoutS:  DefaultFetchTimeout,
		concatTimeoutS: DefaultConcatTimeout,
		muxTimeoutS:    DefaultMuxTimeout,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	var err error
	if cfg.fetchTimeoutS, err = timeoutFromEnv(EnvFetchTimeoutS, cfg.fetchTimeoutS); err != nil {
		return nil, err
	}
	if cfg.concatTimeoutS, err = timeoutFromEnv(EnvConcatTimeoutS, cfg.concatTimeoutS); err != nil {
		return nil, err
	}
	if cfg.muxTimeoutS, err = timeoutFromEnv(EnvMuxTimeoutS, cfg.muxTimeoutS); err != nil {
		return nil, err
	}

	return cfg, nil
}

func timeoutFromEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	s, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if s < 1 {
		return 0, fmt.Errorf("invalid %s: timeout must be at least 1 second", name)
	}
	return s, nil
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

// DownloadsDir returns the root for per-batch downloaded source clips
func (c *EnvConfig) DownloadsDir() string {
	return filepath.Join(c.dataDir, "downloads")
}

// OutputDir returns the root for finished combined outputs
func (c *EnvConfig) OutputDir() string {
	return filepath.Join(c.dataDir, "outputs")
}

// ScratchDir returns the root for transient per-batch artifacts
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, "tmp")
}

// FFmpegPath returns the configured ffmpeg binary path; empty means PATH lookup
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return time.Duration(c.fetchTimeoutS) * time.Second
}

func (c *EnvConfig) ConcatTimeout() time.Duration {
	return time.Duration(c.concatTimeoutS) * time.Second
}

func (c *EnvConfig) MuxTimeout() time.Duration {
	return time.Duration(c.muxTimeoutS) * time.Second
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
