package api

import (
	_ "embed"
	"log/slog"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML []byte

// dashboardHandler serves the embedded single-page dashboard.
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(dashboardHTML); err != nil {
		slog.Error("Dashboard write failed", "error", err)
	}
}
