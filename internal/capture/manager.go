package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/skypro1111/ws-audio-capture/internal/audio"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
)

var (
	ErrTooManySessions = errors.New("maximum number of capture sessions reached")
	ErrSessionNotFound = errors.New("capture session not found")
	ErrManagerStopped  = errors.New("capture manager is stopped")
)

// Config holds the parameters shared by every capture session
type Config struct {
	Format        audio.Format
	FlushInterval time.Duration
	WriteTimeout  time.Duration // 0 disables the bound on scheduled writes
	MaxSessions   int
}

// DefaultConfig returns 16 kHz mono 16-bit capture flushed every 10 seconds
func DefaultConfig() Config {
	return Config{
		Format:        audio.DefaultFormat,
		FlushInterval: 10 * time.Second,
		WriteTimeout:  30 * time.Second,
		MaxSessions:   16,
	}
}

// Validate checks the session parameters
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("audio format: %w", err)
	}

	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", c.FlushInterval)
	}

	if c.WriteTimeout < 0 {
		return fmt.Errorf("write timeout cannot be negative, got %v", c.WriteTimeout)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be at least 1, got %d", c.MaxSessions)
	}

	return nil
}

// Manager owns all open capture sessions
type Manager struct {
	sessions map[string]*Session
	stopped  bool
	mu       sync.RWMutex

	config  Config
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewManager creates a session manager writing recordings through sink
func NewManager(logger *slog.Logger, cfg Config, sink Sink, m *metrics.Metrics) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}

	if sink == nil {
		return nil, errors.New("recording sink cannot be nil")
	}

	return &Manager{
		sessions: make(map[string]*Session),
		config:   cfg,
		sink:     sink,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Open creates and starts a session for a new connection
func (m *Manager) Open(remoteAddr string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrManagerStopped
	}

	if len(m.sessions) >= m.config.MaxSessions {
		m.metrics.RecordSessionRejected()
		m.logger.Warn("Rejecting capture session, limit reached",
			slog.String("remote_addr", remoteAddr),
			slog.Int("max_sessions", m.config.MaxSessions),
		)
		return nil, ErrTooManySessions
	}

	session, err := newSession(uuid.NewString(), remoteAddr, m.config, m.sink, m.logger, m.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture session: %w", err)
	}

	m.sessions[session.ID] = session
	m.metrics.RecordSessionOpened()

	m.logger.Info("Capture session opened",
		slog.String("session_id", session.ID),
		slog.String("remote_addr", remoteAddr),
		slog.String("format", m.config.Format.String()),
		slog.Duration("flush_interval", m.config.FlushInterval),
	)

	return session, nil
}

// Close removes a session and performs its final flush
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	session, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	// Final flush runs outside the manager lock so other sessions are not blocked on disk
	return session.Close(ctx)
}

// Get retrieves an open session
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// ActiveCount returns the number of open sessions
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns a snapshot of all open sessions
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

// Config returns the session parameters
func (m *Manager) Config() Config {
	return m.config
}

// Stop closes every open session and refuses new ones. Every session gets
// its final flush even if an earlier one fails.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("Stopping capture manager...")

	m.mu.Lock()
	m.stopped = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var (
		result *multierror.Error
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	for id, session := range sessions {
		wg.Add(1)
		go func(id string, session *Session) {
			defer wg.Done()
			if err := session.Close(ctx); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("session %s: %w", id, err))
				mu.Unlock()
			}
		}(id, session)
	}
	wg.Wait()

	m.logger.Info("Capture manager stopped",
		slog.Int("sessions_closed", len(sessions)),
	)

	return result.ErrorOrNil()
}
