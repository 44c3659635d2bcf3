package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrBufferClosed is returned by Append once the buffer has been sealed
var ErrBufferClosed = errors.New("audio buffer is closed")

// Buffer accumulates raw PCM bytes for one capture session.
// Append and drain are serialized by a single mutex so every appended byte
// is returned by exactly one drain, in receipt order.
type Buffer struct {
	data []byte

	// Accounting for monitoring
	totalBytes  uint64
	totalFrames uint64
	drains      uint64
	lastUpdate  time.Time
	closed      bool

	mu sync.Mutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	PendingBytes int       `json:"pending_bytes"`
	TotalBytes   uint64    `json:"total_bytes"`
	TotalFrames  uint64    `json:"total_frames"`
	Drains       uint64    `json:"drains"`
	LastUpdate   time.Time `json:"last_update"`
	Closed       bool      `json:"closed"`
}

// NewBuffer creates an empty buffer with room for initialCap bytes
func NewBuffer(initialCap int) *Buffer {
	if initialCap < 0 {
		initialCap = 0
	}
	return &Buffer{
		data:       make([]byte, 0, initialCap),
		lastUpdate: time.Now(),
	}
}

// Append copies p to the tail of the buffer
func (b *Buffer) Append(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}

	b.data = append(b.data, p...)
	b.totalBytes += uint64(len(p))
	b.totalFrames++
	b.lastUpdate = time.Now()

	return nil
}

// DrainAndClear returns everything appended since the previous drain and
// leaves the buffer empty. The returned slice is owned by the caller.
func (b *Buffer) DrainAndClear() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.drainLocked()
}

// Seal drains the buffer and rejects every later Append
func (b *Buffer) Seal() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.drainLocked()
	b.closed = true
	b.data = nil
	return out
}

func (b *Buffer) drainLocked() []byte {
	b.drains++
	if len(b.data) == 0 {
		return []byte{}
	}

	out := b.data
	// Keep the previous capacity so steady streams do not regrow from zero
	b.data = make([]byte, 0, cap(out))
	return out
}

// Len returns the number of bytes waiting for the next drain
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Closed reports whether the buffer has been sealed
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// GetStats returns current buffer statistics
func (b *Buffer) GetStats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		PendingBytes: len(b.data),
		TotalBytes:   b.totalBytes,
		TotalFrames:  b.totalFrames,
		Drains:       b.drains,
		LastUpdate:   b.lastUpdate,
		Closed:       b.closed,
	}
}
