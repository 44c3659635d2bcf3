package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/skypro1111/ws-audio-capture/internal/capture"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
)

// WebSocketHandler accepts capture connections and feeds binary frames
// into a capture session for the lifetime of each connection
type WebSocketHandler struct {
	manager       *capture.Manager
	logger        *slog.Logger
	metrics       *metrics.Metrics
	maxFrameBytes int64

	// Cancelled by Shutdown to unblock every read loop
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup

	connectionsAccepted atomic.Uint64
	connectionsRejected atomic.Uint64
}

// WebSocketStatistics contains handler counters
type WebSocketStatistics struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	ConnectionsRejected uint64 `json:"connections_rejected"`
	ActiveSessions      int    `json:"active_sessions"`
}

// NewWebSocketHandler creates a handler bound to mgr
func NewWebSocketHandler(mgr *capture.Manager, maxFrameBytes int64, logger *slog.Logger, m *metrics.Metrics) *WebSocketHandler {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHandler{
		manager:       mgr,
		logger:        logger,
		metrics:       m,
		maxFrameBytes: maxFrameBytes,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	// The session is opened before the upgrade so a full server can still answer with a status code
	session, err := h.manager.Open(r.RemoteAddr)
	if err != nil {
		h.connectionsRejected.Add(1)
		h.logger.Warn("Rejecting capture connection",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, capture.ErrTooManySessions) || errors.Is(err, capture.ErrManagerStopped) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Failed to open session", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written an error response
		h.metrics.RecordSessionError()
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		h.closeSession(session)
		return
	}

	h.connectionsAccepted.Add(1)
	conn.SetReadLimit(h.maxFrameBytes)

	h.serve(conn, session)
}

// serve runs the read loop until the peer disconnects or the handler shuts down
func (h *WebSocketHandler) serve(conn *websocket.Conn, session *capture.Session) {
	defer conn.CloseNow()

	for {
		typ, data, err := conn.Read(h.ctx)
		if err != nil {
			h.handleReadError(session, err)
			break
		}

		switch typ {
		case websocket.MessageBinary:
			if err := session.Write(data); err != nil {
				h.logger.Warn("Capture session stopped accepting audio",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
				conn.Close(websocket.StatusGoingAway, "session closed")
				h.closeSession(session)
				return
			}
		case websocket.MessageText:
			session.HandleText(string(data))
		}
	}

	if err := h.closeSession(session); err != nil {
		conn.Close(websocket.StatusInternalError, "final flush failed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *WebSocketHandler) handleReadError(session *capture.Session, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}

	if h.ctx.Err() != nil {
		// Shutdown in progress
		return
	}

	session.ReportError(err)
}

func (h *WebSocketHandler) closeSession(session *capture.Session) error {
	ctx := context.Background()
	if timeout := h.manager.Config().WriteTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := h.manager.Close(ctx, session.ID)
	if err != nil && !errors.Is(err, capture.ErrSessionNotFound) {
		h.logger.Error("Final flush failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// Shutdown unblocks every active read loop and waits for their sessions to close
func (h *WebSocketHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStatistics returns handler statistics
func (h *WebSocketHandler) GetStatistics() WebSocketStatistics {
	return WebSocketStatistics{
		ConnectionsAccepted: h.connectionsAccepted.Load(),
		ConnectionsRejected: h.connectionsRejected.Load(),
		ActiveSessions:      h.manager.ActiveCount(),
	}
}
