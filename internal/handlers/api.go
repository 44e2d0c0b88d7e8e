package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
	"github.com/matchdaylabs/leaguesync/internal/services/scheduler"
	lsync "github.com/matchdaylabs/leaguesync/internal/sync"
)

// APIHandler exposes the sync surface over HTTP: job listing, result
// history, manual batch triggers, and single-job reruns.
type APIHandler struct {
	coordinator *lsync.Coordinator
	store       interfaces.ResultStorage // nil when history is disabled
	session     *models.SessionState
	scheduler   *scheduler.Service    // nil when cron scheduling is disabled
	ws          *WebSocketHandler     // nil when streaming is disabled
	logger      arbor.ILogger
	startTime   time.Time
}

// NewAPIHandler creates the API handler. scheduler and ws may be nil; the
// status payload then omits their sections.
func NewAPIHandler(coordinator *lsync.Coordinator, store interfaces.ResultStorage, session *models.SessionState, sched *scheduler.Service, ws *WebSocketHandler, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		coordinator: coordinator,
		store:       store,
		session:     session,
		scheduler:   sched,
		ws:          ws,
		logger:      logger,
		startTime:   time.Now(),
	}
}

// HandleHealth reports liveness.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startTime).String(),
	})
}

// HandleStatus reports driver and session state. The session keeps changing
// while a batch runs, so the handler reads a consistent snapshot.
func (h *APIHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()

	status := map[string]interface{}{
		"driver_available": snap.DriverAvailable,
		"authenticated":    snap.IsAuthenticated,
		"capabilities":     snap.AvailableCapabilities,
		"current_url":      snap.CurrentURL,
		"last_activity":    snap.LastActivityTime,
	}
	if h.scheduler != nil {
		status["next_scheduled_run"] = h.scheduler.NextRun()
		status["last_scheduled_run"] = h.scheduler.LastRun()
	}
	if h.ws != nil {
		status["websocket_clients"] = h.ws.ClientCount()
	}

	WriteJSON(w, http.StatusOK, status)
}

// HandleJobs lists configured jobs in execution order, latest result
// attached when one exists.
func (h *APIHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.coordinator.Jobs()
	out := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		entry := map[string]interface{}{
			"id":         job.ID,
			"name":       job.Name(),
			"source_url": job.SourceURL,
			"priority":   job.Priority,
		}
		if result, ok := h.coordinator.Result(job.ID); ok {
			entry["last_result"] = result
		}
		out = append(out, entry)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

// HandleResults returns result history, optionally filtered by job id.
func (h *APIHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, http.StatusNotImplemented, "result history storage is disabled")
		return
	}

	jobID := r.URL.Query().Get("job_id")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	results, err := h.store.ListResults(r.Context(), jobID, limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list results")
		WriteError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// HandleSync triggers a full batch run in the background.
func (h *APIHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	go func() {
		results := h.coordinator.RunAll(context.Background())
		h.logger.Info().Int("job_count", len(results)).Msg("Manual sync batch finished")
	}()

	WriteStarted(w, "sync batch started")
}

// HandleRerun reruns one job by id: POST /api/jobs/{id}/rerun
func (h *APIHandler) HandleRerun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID := strings.TrimSuffix(path, "/rerun")
	if jobID == "" || jobID == path {
		WriteError(w, http.StatusBadRequest, "job id required")
		return
	}

	go func() {
		if _, err := h.coordinator.RerunJob(context.Background(), jobID); err != nil {
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Job rerun failed")
		}
	}()

	WriteStarted(w, "job rerun started: "+jobID)
}
