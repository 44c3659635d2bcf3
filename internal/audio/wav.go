package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the size of the canonical RIFF/WAVE header written before the PCM payload
	HeaderSize = 44

	// MaxPayloadSize is the largest data chunk a RIFF size field can describe
	MaxPayloadSize = math.MaxUint32 - (HeaderSize - 8)

	formatPCM     = 1
	fmtChunkSize  = 16
	riffChunkBase = HeaderSize - 8 // bytes after the RIFF size field excluding the payload
)

var (
	ErrInvalidWAV      = errors.New("invalid WAV data")
	ErrPayloadTooLarge = errors.New("payload too large for WAV container")
	ErrNegativePayload = errors.New("payload length cannot be negative")
)

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// NewWAVHeader fills a header describing payloadLen bytes of PCM in format f
func NewWAVHeader(payloadLen int, f Format) (WAVHeader, error) {
	if payloadLen < 0 {
		return WAVHeader{}, fmt.Errorf("%w: %d", ErrNegativePayload, payloadLen)
	}

	if uint64(payloadLen) > MaxPayloadSize {
		return WAVHeader{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	if err := f.Validate(); err != nil {
		return WAVHeader{}, fmt.Errorf("invalid audio format: %w", err)
	}

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(payloadLen) + riffChunkBase,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: fmtChunkSize,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(payloadLen),
	}, nil
}

// Bytes serializes the header in little-endian order
func (h WAVHeader) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.ChunkID[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.ChunkSize)
	copy(buf[8:12], h.Format[:])
	copy(buf[12:16], h.Subchunk1ID[:])
	binary.LittleEndian.PutUint32(buf[16:20], h.Subchunk1Size)
	binary.LittleEndian.PutUint16(buf[20:22], h.AudioFormat)
	binary.LittleEndian.PutUint16(buf[22:24], h.NumChannels)
	binary.LittleEndian.PutUint32(buf[24:28], h.SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], h.ByteRate)
	binary.LittleEndian.PutUint16(buf[32:34], h.BlockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], h.BitsPerSample)
	copy(buf[36:40], h.Subchunk2ID[:])
	binary.LittleEndian.PutUint32(buf[40:44], h.Subchunk2Size)
	return buf
}

// BuildHeader returns the 44-byte header for a payload of payloadLen bytes.
// A zero length is valid and describes an empty data chunk.
func BuildHeader(payloadLen int, f Format) ([]byte, error) {
	h, err := NewWAVHeader(payloadLen, f)
	if err != nil {
		return nil, err
	}
	return h.Bytes(), nil
}

// EncodeWAV prefixes raw PCM bytes with a header and returns the complete file contents
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	header, err := BuildHeader(len(pcm), f)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, header...)
	out = append(out, pcm...)
	return out, nil
}

// parseHeader reads and validates the fixed header fields
func parseHeader(data []byte) (WAVHeader, error) {
	if err := ValidateWAV(data); err != nil {
		return WAVHeader{}, err
	}

	var h WAVHeader
	copy(h.ChunkID[:], data[0:4])
	h.ChunkSize = binary.LittleEndian.Uint32(data[4:8])
	copy(h.Format[:], data[8:12])
	copy(h.Subchunk1ID[:], data[12:16])
	h.Subchunk1Size = binary.LittleEndian.Uint32(data[16:20])
	h.AudioFormat = binary.LittleEndian.Uint16(data[20:22])
	h.NumChannels = binary.LittleEndian.Uint16(data[22:24])
	h.SampleRate = binary.LittleEndian.Uint32(data[24:28])
	h.ByteRate = binary.LittleEndian.Uint32(data[28:32])
	h.BlockAlign = binary.LittleEndian.Uint16(data[32:34])
	h.BitsPerSample = binary.LittleEndian.Uint16(data[34:36])
	copy(h.Subchunk2ID[:], data[36:40])
	h.Subchunk2Size = binary.LittleEndian.Uint32(data[40:44])

	if h.AudioFormat != formatPCM {
		return WAVHeader{}, fmt.Errorf("%w: unsupported audio format %d (only PCM is supported)", ErrInvalidWAV, h.AudioFormat)
	}

	if h.SampleRate == 0 {
		return WAVHeader{}, fmt.Errorf("%w: sample rate is 0", ErrInvalidWAV)
	}

	return h, nil
}

// DecodeWAV splits a canonical PCM WAV file into its format and payload
func DecodeWAV(data []byte) (Format, []byte, error) {
	h, err := parseHeader(data)
	if err != nil {
		return Format{}, nil, err
	}

	end := uint64(HeaderSize) + uint64(h.Subchunk2Size)
	if end > uint64(len(data)) {
		return Format{}, nil, fmt.Errorf("%w: data chunk declares %d bytes, only %d present",
			ErrInvalidWAV, h.Subchunk2Size, len(data)-HeaderSize)
	}

	f := Format{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.NumChannels),
		BitsPerSample: int(h.BitsPerSample),
	}

	if uint32(f.ByteRate()) != h.ByteRate || uint16(f.BlockAlign()) != h.BlockAlign {
		return Format{}, nil, fmt.Errorf("%w: byte rate/block align inconsistent with %s", ErrInvalidWAV, f)
	}

	return f, data[HeaderSize:end], nil
}

// ValidateWAV validates a WAV file format without decoding the audio data
func ValidateWAV(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, HeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}

	return nil
}

// WAVInfo holds basic information about a WAV file
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
}

// GetWAVInfo extracts metadata from the header of a WAV file
func GetWAVInfo(header []byte) (*WAVInfo, error) {
	h, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var duration float64
	if h.ByteRate > 0 {
		duration = float64(h.Subchunk2Size) / float64(h.ByteRate)
	}

	return &WAVInfo{
		SampleRate:    h.SampleRate,
		Channels:      h.NumChannels,
		BitsPerSample: h.BitsPerSample,
		Duration:      duration,
		DataSize:      h.Subchunk2Size,
	}, nil
}
