package audio

import (
	"fmt"
	"math"
	"time"
)

// Format describes the fixed capture parameters of a raw PCM stream
type Format struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultFormat is 16 kHz mono 16-bit little-endian PCM
var DefaultFormat = Format{
	SampleRate:    16000,
	Channels:      1,
	BitsPerSample: 16,
}

// BytesPerSample returns the width of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// ByteRate returns SampleRate * Channels * BitsPerSample / 8
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BytesPerSample()
}

// BlockAlign returns Channels * BitsPerSample / 8
func (f Format) BlockAlign() int {
	return f.Channels * f.BytesPerSample()
}

// Duration returns the playback length of n payload bytes
func (f Format) Duration(n int) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Validate checks that the format can be described by a PCM WAV header
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}

	if f.Channels <= 0 || f.Channels > math.MaxUint16 {
		return fmt.Errorf("channels must be between 1 and %d, got %d", math.MaxUint16, f.Channels)
	}

	if f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("bits per sample must be a positive multiple of 8, got %d", f.BitsPerSample)
	}

	if f.BlockAlign() > math.MaxUint16 {
		return fmt.Errorf("block align %d does not fit in 16 bits", f.BlockAlign())
	}

	if uint64(f.ByteRate()) > math.MaxUint32 {
		return fmt.Errorf("byte rate %d does not fit in 32 bits", f.ByteRate())
	}

	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitsPerSample)
}
