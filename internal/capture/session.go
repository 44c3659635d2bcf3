package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
)

// ErrSessionClosed is returned for frames that arrive after Close has begun
var ErrSessionClosed = errors.New("capture session is closed")

const (
	flushScheduled = "scheduled"
	flushManual    = "manual"
	flushFinal     = "final"

	// textPreviewLen caps how much of an ignored text frame is logged
	textPreviewLen = 64
)

// Session binds one connection to its buffer and flush scheduler
type Session struct {
	ID         string
	RemoteAddr string
	StartTime  time.Time

	format       audio.Format
	interval     time.Duration
	writeTimeout time.Duration

	buffer    *audio.Buffer
	scheduler *Scheduler
	sink      Sink

	logger  *slog.Logger
	metrics *metrics.Metrics

	// Flush accounting
	filesWritten  atomic.Uint64
	flushFailures atomic.Uint64
	bytesWritten  atomic.Uint64
	lastRecording atomic.Pointer[string]

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	endTime   atomic.Pointer[time.Time]
}

// SessionInfo represents session information for monitoring APIs
type SessionInfo struct {
	ID            string            `json:"id"`
	RemoteAddr    string            `json:"remote_addr"`
	StartTime     time.Time         `json:"start_time"`
	Duration      time.Duration     `json:"duration"`
	Format        audio.Format      `json:"format"`
	FlushInterval time.Duration     `json:"flush_interval"`
	Buffer        audio.BufferStats `json:"buffer"`
	FilesWritten  uint64            `json:"files_written"`
	BytesWritten  uint64            `json:"bytes_written"`
	FlushFailures uint64            `json:"flush_failures"`
	LastRecording string            `json:"last_recording,omitempty"`
	Closed        bool              `json:"closed"`
}

// newSession allocates the buffer and starts the flush scheduler
func newSession(id, remoteAddr string, cfg Config, sink Sink, logger *slog.Logger, m *metrics.Metrics) (*Session, error) {
	s := &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		StartTime:    time.Now(),
		format:       cfg.Format,
		interval:     cfg.FlushInterval,
		writeTimeout: cfg.WriteTimeout,
		// Pre-allocate for one flush interval of audio
		buffer:    audio.NewBuffer(initialBufferCap(cfg)),
		scheduler: NewScheduler(),
		sink:      sink,
		logger:    logger.With(slog.String("session_id", id)),
		metrics:   m,
	}

	if err := s.scheduler.Start(cfg.FlushInterval, s.scheduledFlush); err != nil {
		return nil, err
	}

	return s, nil
}

func initialBufferCap(cfg Config) int {
	const maxPrealloc = 4 << 20
	n := int(cfg.FlushInterval/time.Second) * cfg.Format.ByteRate()
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

// Write buffers one binary frame. Frames that arrive once Close has begun
// are dropped and reported with ErrSessionClosed.
func (s *Session) Write(p []byte) error {
	if s.closing.Load() {
		s.metrics.RecordFrameDropped()
		return ErrSessionClosed
	}

	if err := s.buffer.Append(p); err != nil {
		s.metrics.RecordFrameDropped()
		if errors.Is(err, audio.ErrBufferClosed) {
			return ErrSessionClosed
		}
		return err
	}

	s.metrics.RecordBinaryFrame(len(p))
	return nil
}

// HandleText accepts a text or control frame. It has no effect on audio state.
func (s *Session) HandleText(msg string) {
	s.metrics.RecordTextFrame()

	preview := msg
	if len(preview) > textPreviewLen {
		preview = preview[:textPreviewLen]
	}

	s.logger.Debug("Text frame ignored",
		slog.Int("length", len(msg)),
		slog.String("preview", preview),
	)
}

// ReportError records a transport error. The transport decides whether to close.
func (s *Session) ReportError(err error) {
	if err == nil {
		return
	}

	s.metrics.RecordSessionError()
	s.logger.Warn("Session transport error", slog.String("error", err.Error()))
}

// Flush drains the buffer and writes its contents as one recording.
// An empty buffer produces no file. Drained bytes are not re-buffered if
// the write fails.
func (s *Session) Flush(ctx context.Context) error {
	return s.flush(ctx, s.buffer.DrainAndClear(), flushManual)
}

func (s *Session) scheduledFlush() {
	ctx := context.Background()
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	// Errors are logged and counted inside flush
	_ = s.flush(ctx, s.buffer.DrainAndClear(), flushScheduled)
}

func (s *Session) flush(ctx context.Context, pcm []byte, reason string) error {
	if len(pcm) == 0 {
		s.metrics.RecordFlushEmpty()
		s.logger.Debug("Nothing to flush", slog.String("reason", reason))
		return nil
	}

	startTime := time.Now()
	path, err := s.sink.WriteRecording(ctx, startTime, s.format, pcm)
	writeTime := time.Since(startTime)

	if err != nil {
		s.flushFailures.Add(1)
		s.metrics.RecordFlushFailed(len(pcm), writeTime.Seconds())
		s.logger.Error("Failed to write recording",
			slog.String("reason", reason),
			slog.String("path", path),
			slog.Int("bytes_lost", len(pcm)),
			slog.String("error", err.Error()),
		)
		return err
	}

	audioDuration := s.format.Duration(len(pcm))

	s.filesWritten.Add(1)
	s.bytesWritten.Add(uint64(len(pcm)))
	s.lastRecording.Store(&path)
	s.metrics.RecordFlushWritten(len(pcm), audioDuration.Seconds(), writeTime.Seconds())

	s.logger.Info("Recording saved",
		slog.String("reason", reason),
		slog.String("path", path),
		slog.Int("bytes", len(pcm)),
		slog.Duration("audio_duration", audioDuration),
		slog.Duration("write_time", writeTime),
	)

	return nil
}

// Close stops the scheduler, then performs one final flush of whatever is
// still buffered. Later calls return the result of the first.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)

		// No scheduled fire can run once Stop returns
		s.scheduler.Stop()

		s.closeErr = s.flush(ctx, s.buffer.Seal(), flushFinal)

		end := time.Now()
		s.endTime.Store(&end)
		s.metrics.RecordSessionClosed(end.Sub(s.StartTime).Seconds())

		s.logger.Info("Capture session closed",
			slog.String("remote_addr", s.RemoteAddr),
			slog.Duration("duration", end.Sub(s.StartTime)),
			slog.Uint64("files_written", s.filesWritten.Load()),
			slog.Uint64("bytes_written", s.bytesWritten.Load()),
			slog.Uint64("flush_failures", s.flushFailures.Load()),
		)
	})

	return s.closeErr
}

// Closed reports whether Close has begun
func (s *Session) Closed() bool {
	return s.closing.Load()
}

// GetSessionInfo returns a snapshot for monitoring
func (s *Session) GetSessionInfo() SessionInfo {
	end := time.Now()
	if t := s.endTime.Load(); t != nil {
		end = *t
	}

	info := SessionInfo{
		ID:            s.ID,
		RemoteAddr:    s.RemoteAddr,
		StartTime:     s.StartTime,
		Duration:      end.Sub(s.StartTime),
		Format:        s.format,
		FlushInterval: s.interval,
		Buffer:        s.buffer.GetStats(),
		FilesWritten:  s.filesWritten.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		FlushFailures: s.flushFailures.Load(),
		Closed:        s.closing.Load(),
	}
	if p := s.lastRecording.Load(); p != nil {
		info.LastRecording = *p
	}

	return info
}
