// Package capture provides per-connection audio capture sessions.
// A session buffers inbound PCM frames, flushes them on a fixed interval to
// timestamped WAV recordings, and performs one final flush when it closes.
package capture
