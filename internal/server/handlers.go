package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status:  "healthy",
		Version: s.config.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler returns the latest training progress.
func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	if s.config.Status == nil {
		http.Error(w, "No training job attached", http.StatusNotFound)
		return
	}
	writeJSON(w, s.config.Status.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
