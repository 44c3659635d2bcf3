package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/ws-audio-capture/internal/capture"
	"github.com/skypro1111/ws-audio-capture/internal/config"
	"github.com/skypro1111/ws-audio-capture/internal/metrics"
)

const (
	serviceName    = "ws-audio-capture"
	serviceVersion = "1.0.0"
)

// HTTPServer serves the capture WebSocket endpoint next to the monitoring API
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	manager  *capture.Manager
	sink     *capture.FileSink
	ws       *WebSocketHandler
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates the server and its routes. gatherer backs /metrics.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, mgr *capture.Manager,
	sink *capture.FileSink, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		manager:   mgr,
		sink:      sink,
		ws:        NewWebSocketHandler(mgr, cfg.Server.MaxFrameBytes, logger, m),
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	// Read and write deadlines are left unset because upgraded connections live for minutes
	h.server = &http.Server{
		Addr:              cfg.Server.ListenAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h
}

// setupRoutes configures the capture endpoint and the HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Capture endpoint, counted per session rather than per request
	mux.Handle(h.config.Server.Path, h.ws)

	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/sessions/{id}", h.withMetrics("/sessions/{id}", h.handleSessionDetail))

	mux.HandleFunc("/recordings", h.withMetrics("/recordings", h.handleRecordings))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	if h.config.Server.Path != "/" {
		mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
	}
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the root handler, mainly for tests
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Addr returns the configured listen address
func (h *HTTPServer) Addr() string {
	return h.server.Addr
}

// Serve accepts connections on ln until Stop is called
func (h *HTTPServer) Serve(ln net.Listener) error {
	h.logger.Info("Starting capture server",
		slog.String("address", ln.Addr().String()),
		slog.String("path", h.config.Server.Path),
	)

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// ListenAndServe binds the configured address and serves until Stop is called
func (h *HTTPServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	return h.Serve(ln)
}

// Stop stops accepting requests, then ends every capture connection.
// Each connection's session receives its final flush before Stop returns.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping capture server...")

	// Shutdown does not track hijacked connections, so the handler drains them itself
	err := h.server.Shutdown(ctx)

	if wsErr := h.ws.Shutdown(ctx); wsErr != nil {
		return errors.Join(err, fmt.Errorf("websocket shutdown: %w", wsErr))
	}

	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wsStats := h.ws.GetStatistics()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"websocket": map[string]interface{}{
				"status":               "running",
				"path":                 h.config.Server.Path,
				"connections_accepted": wsStats.ConnectionsAccepted,
				"connections_rejected": wsStats.ConnectionsRejected,
			},
			"capture": map[string]interface{}{
				"status":          "running",
				"active_sessions": wsStats.ActiveSessions,
				"max_sessions":    h.manager.Config().MaxSessions,
				"output_dir":      h.sink.Dir(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.manager.Sessions()
	sessionInfos := make([]capture.SessionInfo, 0, len(sessions))

	for _, session := range sessions {
		sessionInfos = append(sessionInfos, session.GetSessionInfo())
	}

	response := map[string]interface{}{
		"total_sessions": len(sessionInfos),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessionInfos,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleSessionDetail implements the /sessions/{id} endpoint
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	session, exists := h.manager.Get(id)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, session.GetSessionInfo())
}

// handleRecordings implements the /recordings endpoint
func (h *HTTPServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recordings, err := h.sink.List()
	if err != nil {
		h.logger.Error("Failed to list recordings", slog.String("error", err.Error()))
		http.Error(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_recordings": len(recordings),
		"output_dir":       h.sink.Dir(),
		"recordings":       recordings,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"address":          h.config.Server.Address,
			"port":             h.config.Server.Port,
			"path":             h.config.Server.Path,
			"max_sessions":     h.config.Server.MaxSessions,
			"max_frame_bytes":  h.config.Server.MaxFrameBytes,
			"shutdown_timeout": h.config.Server.ShutdownTimeout,
		},
		"audio": map[string]interface{}{
			"sample_rate":    h.config.Audio.SampleRate,
			"channels":       h.config.Audio.Channels,
			"bit_depth":      h.config.Audio.BitDepth,
			"flush_interval": h.config.Audio.FlushInterval,
			"write_timeout":  h.config.Audio.WriteTimeout,
			"output_dir":     h.config.Audio.OutputDir,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "WebSocket Audio Capture Service",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET " + h.config.Server.Path: "WebSocket capture endpoint (binary PCM frames)",
			"GET /":                       "API documentation",
			"GET /health":                 "Service health check",
			"GET /sessions":               "List open capture sessions",
			"GET /sessions/{id}":          "Get detailed session information",
			"GET /recordings":             "List WAV recordings in the output directory",
			"GET /config":                 "Get service configuration",
			"GET /metrics":                "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}
