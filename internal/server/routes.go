package server

import (
	"net/http"
	"strings"
)

// setupRoutes registers the API surface.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.api.HandleHealth)
	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/sync", s.api.HandleSync)
	mux.HandleFunc("/api/results", s.api.HandleResults)

	// /api/jobs lists jobs; /api/jobs/{id}/rerun triggers a single-job run.
	mux.HandleFunc("/api/jobs", s.api.HandleJobs)
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/rerun") {
			s.api.HandleRerun(w, r)
			return
		}
		http.NotFound(w, r)
	})

	if s.ws != nil {
		mux.HandleFunc("/ws", s.ws.HandleWebSocket)
	}

	return mux
}
