// Package metrics defines the Prometheus instruments exported by the capture service.
package metrics
