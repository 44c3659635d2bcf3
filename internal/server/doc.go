// Package server exposes capture sessions over WebSocket and serves the
// monitoring API (health, sessions, recordings, config and Prometheus
// metrics) on the same listener.
package server
