// Package config provides configuration loading and validation for the audio capture service.
// It handles YAML-based configuration layered over built-in defaults, with command line
// overrides for the most common settings.
package config
