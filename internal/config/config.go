package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
)

// reservedPaths are served by the HTTP API and cannot host the WebSocket endpoint
var reservedPaths = []string{"/health", "/sessions", "/recordings", "/config", "/metrics"}

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains WebSocket listener configuration
type ServerConfig struct {
	Address         string `yaml:"address"`
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
	MaxSessions     int    `yaml:"max_sessions"`
	MaxFrameBytes   int64  `yaml:"max_frame_bytes"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// AudioConfig contains capture parameters
type AudioConfig struct {
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	BitDepth      int    `yaml:"bit_depth"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
	WriteTimeout  int    `yaml:"write_timeout"`  // seconds, 0 disables
	OutputDir     string `yaml:"output_dir"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            3000,
			Path:            "/audio",
			MaxSessions:     16,
			MaxFrameBytes:   1 << 20,
			ShutdownTimeout: 10,
		},
		Audio: AudioConfig{
			SampleRate:    audio.DefaultFormat.SampleRate,
			Channels:      audio.DefaultFormat.Channels,
			BitDepth:      audio.DefaultFormat.BitsPerSample,
			FlushInterval: 10,
			WriteTimeout:  30,
			OutputDir:     ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path must start with '/', got '%s'", s.Path)
	}

	for _, reserved := range reservedPaths {
		if s.Path == reserved {
			return fmt.Errorf("path '%s' is reserved for the HTTP API", s.Path)
		}
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	if s.MaxFrameBytes < 1024 {
		return fmt.Errorf("max_frame_bytes must be at least 1024, got %d", s.MaxFrameBytes)
	}

	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", s.ShutdownTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if err := a.Format().Validate(); err != nil {
		return err
	}

	if a.FlushInterval < 1 {
		return fmt.Errorf("flush_interval must be at least 1 second, got %d", a.FlushInterval)
	}

	if a.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout cannot be negative, got %d", a.WriteTimeout)
	}

	if a.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout/stderr is treated as a file path
	return nil
}

// ListenAddress returns the host:port the server binds to
func (s *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// GetShutdownTimeoutDuration returns the shutdown timeout as a time.Duration
func (s *ServerConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// Format returns the capture format described by the audio section
func (a *AudioConfig) Format() audio.Format {
	return audio.Format{
		SampleRate:    a.SampleRate,
		Channels:      a.Channels,
		BitsPerSample: a.BitDepth,
	}
}

// GetFlushIntervalDuration returns the flush interval as a time.Duration
func (a *AudioConfig) GetFlushIntervalDuration() time.Duration {
	return time.Duration(a.FlushInterval) * time.Second
}

// GetWriteTimeoutDuration returns the write timeout as a time.Duration
func (a *AudioConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(a.WriteTimeout) * time.Second
}
