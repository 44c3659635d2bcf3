package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flags holds command line overrides for the configuration file
type Flags struct {
	ConfigPath    string
	Address       string
	Port          int
	Path          string
	OutputDir     string
	FlushInterval int
	LogLevel      string
	LogFormat     string

	fs *pflag.FlagSet
}

// RegisterFlags defines the service flags on fs
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}

	fs.StringVarP(&f.ConfigPath, "config", "c", "", "Path to YAML configuration file")
	fs.StringVar(&f.Address, "address", d.Server.Address, "Address to listen on")
	fs.IntVarP(&f.Port, "port", "p", d.Server.Port, "Port to listen on")
	fs.StringVar(&f.Path, "path", d.Server.Path, "WebSocket endpoint path")
	fs.StringVarP(&f.OutputDir, "output-dir", "o", d.Audio.OutputDir, "Directory for WAV recordings")
	fs.IntVar(&f.FlushInterval, "flush-interval", d.Audio.FlushInterval, "Seconds between buffer flushes")
	fs.StringVar(&f.LogLevel, "log-level", d.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", d.Logging.Format, "Log format (text, json)")

	return f
}

// Apply copies every flag that was set explicitly onto c
func (f *Flags) Apply(c *Config) {
	if f.fs.Changed("address") {
		c.Server.Address = f.Address
	}
	if f.fs.Changed("port") {
		c.Server.Port = f.Port
	}
	if f.fs.Changed("path") {
		c.Server.Path = f.Path
	}
	if f.fs.Changed("output-dir") {
		c.Audio.OutputDir = f.OutputDir
	}
	if f.fs.Changed("flush-interval") {
		c.Audio.FlushInterval = f.FlushInterval
	}
	if f.fs.Changed("log-level") {
		c.Logging.Level = f.LogLevel
	}
	if f.fs.Changed("log-format") {
		c.Logging.Format = f.LogFormat
	}
}

// LoadFromArgs parses args, loads the configuration file if one was given
// and applies explicit flag overrides on top
func LoadFromArgs(name string, args []string) (*Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags := RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config, err := Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags.Apply(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}
