// Package audio handles raw PCM accumulation and the WAV container format.
// It provides the capture format description, a mutex-guarded byte buffer with
// drain-and-clear semantics, and a byte-exact 44-byte RIFF/WAVE header encoder.
package audio
