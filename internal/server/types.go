// Package server exposes a running training job over HTTP: health, live
// progress and Prometheus metrics.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	Version         string
	Registry        *prometheus.Registry // Gathered by /metrics and used for HTTP metrics
	Status          *StatusTracker       // Served by /status; nil disables the endpoint
	ShutdownTimeout time.Duration
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	config  Config
	metrics *httpMetrics
	http    *http.Server
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	Phase           string  `json:"phase"`
	Epoch           int     `json:"epoch"`
	Batch           int     `json:"batch"`
	Batches         int     `json:"batches"`
	Loss            float64 `json:"loss"`
	Errors          int     `json:"errors"`
	LastError       string  `json:"last_error,omitempty"`
	StartedAt       string  `json:"started_at"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
	CompletedPasses int     `json:"completed_passes"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
}
