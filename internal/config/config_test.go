package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := Default()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	if config.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", config.Server.Port)
	}
	if config.Server.Path != "/audio" {
		t.Errorf("Expected path /audio, got %s", config.Server.Path)
	}
	if config.Audio.SampleRate != 16000 || config.Audio.Channels != 1 || config.Audio.BitDepth != 16 {
		t.Errorf("Expected 16000 Hz mono 16-bit, got %s", config.Audio.Format())
	}
	if config.Audio.GetFlushIntervalDuration() != 10*time.Second {
		t.Errorf("Expected 10s flush interval, got %v", config.Audio.GetFlushIntervalDuration())
	}
	if config.Server.ListenAddress() != "0.0.0.0:3000" {
		t.Errorf("Expected 0.0.0.0:3000, got %s", config.Server.ListenAddress())
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *config != *Default() {
		t.Errorf("Expected defaults, got %+v", config)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
audio:
  flush_interval: 5
  output_dir: /tmp/recordings
logging:
  level: debug
  format: json
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", config.Server.Port)
	}
	if config.Server.Path != "/audio" {
		t.Errorf("Expected default path to survive, got %s", config.Server.Path)
	}
	if config.Audio.FlushInterval != 5 {
		t.Errorf("Expected flush interval 5, got %d", config.Audio.FlushInterval)
	}
	if config.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate to survive, got %d", config.Audio.SampleRate)
	}
	if config.Audio.OutputDir != "/tmp/recordings" {
		t.Errorf("Expected output dir /tmp/recordings, got %s", config.Audio.OutputDir)
	}
	if config.Logging.Level != "debug" || config.Logging.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", config.Logging.Level, config.Logging.Format)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "malformed yaml",
			content: "server: [port",
			errText: "failed to parse",
		},
		{
			name:    "invalid port",
			content: "server:\n  port: 0\n",
			errText: "port must be between",
		},
		{
			name:    "unsupported bit depth",
			content: "audio:\n  bit_depth: 12\n",
			errText: "audio config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.errText)
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %v", tt.errText, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestServerConfigValidation(t *testing.T) {
	valid := Default().Server

	tests := []struct {
		name   string
		modify func(*ServerConfig)
		valid  bool
	}{
		{name: "valid config", modify: func(*ServerConfig) {}, valid: true},
		{name: "port too low", modify: func(s *ServerConfig) { s.Port = 0 }, valid: false},
		{name: "port too high", modify: func(s *ServerConfig) { s.Port = 70000 }, valid: false},
		{name: "empty address", modify: func(s *ServerConfig) { s.Address = "" }, valid: false},
		{name: "relative path", modify: func(s *ServerConfig) { s.Path = "audio" }, valid: false},
		{name: "root path", modify: func(s *ServerConfig) { s.Path = "/" }, valid: true},
		{name: "reserved path", modify: func(s *ServerConfig) { s.Path = "/metrics" }, valid: false},
		{name: "no sessions", modify: func(s *ServerConfig) { s.MaxSessions = 0 }, valid: false},
		{name: "frame limit too small", modify: func(s *ServerConfig) { s.MaxFrameBytes = 512 }, valid: false},
		{name: "zero shutdown timeout", modify: func(s *ServerConfig) { s.ShutdownTimeout = 0 }, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.modify(&config)
			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestAudioConfigValidation(t *testing.T) {
	valid := Default().Audio

	tests := []struct {
		name   string
		modify func(*AudioConfig)
		valid  bool
	}{
		{name: "valid config", modify: func(*AudioConfig) {}, valid: true},
		{name: "stereo 24-bit", modify: func(a *AudioConfig) { a.Channels = 2; a.BitDepth = 24 }, valid: true},
		{name: "zero write timeout", modify: func(a *AudioConfig) { a.WriteTimeout = 0 }, valid: true},
		{name: "zero sample rate", modify: func(a *AudioConfig) { a.SampleRate = 0 }, valid: false},
		{name: "zero channels", modify: func(a *AudioConfig) { a.Channels = 0 }, valid: false},
		{name: "odd bit depth", modify: func(a *AudioConfig) { a.BitDepth = 12 }, valid: false},
		{name: "zero flush interval", modify: func(a *AudioConfig) { a.FlushInterval = 0 }, valid: false},
		{name: "negative write timeout", modify: func(a *AudioConfig) { a.WriteTimeout = -1 }, valid: false},
		{name: "empty output dir", modify: func(a *AudioConfig) { a.OutputDir = "" }, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.modify(&config)
			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name:   "valid json to stdout",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			valid:  true,
		},
		{
			name:   "valid text to file",
			config: LoggingConfig{Level: "debug", Format: "text", Output: "/var/log/capture.log"},
			valid:  true,
		},
		{
			name:   "invalid log level",
			config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"},
			valid:  false,
		},
		{
			name:   "invalid format",
			config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestLoadFromArgs(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8080\naudio:\n  flush_interval: 5\n")

	config, err := LoadFromArgs("capture", []string{
		"--config", path,
		"--port", "9090",
		"-o", "/srv/audio",
		"--log-level", "warn",
	})
	if err != nil {
		t.Fatalf("LoadFromArgs failed: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("Expected flag to override file port, got %d", config.Server.Port)
	}
	if config.Audio.FlushInterval != 5 {
		t.Errorf("Expected file flush interval to survive, got %d", config.Audio.FlushInterval)
	}
	if config.Audio.OutputDir != "/srv/audio" {
		t.Errorf("Expected output dir /srv/audio, got %s", config.Audio.OutputDir)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}
	if config.Server.Path != "/audio" {
		t.Errorf("Expected default path, got %s", config.Server.Path)
	}
}

func TestLoadFromArgsRejectsInvalidOverrides(t *testing.T) {
	if _, err := LoadFromArgs("capture", []string{"--flush-interval", "0"}); err == nil {
		t.Error("Expected error for zero flush interval")
	}
	if _, err := LoadFromArgs("capture", []string{"--unknown"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
}
