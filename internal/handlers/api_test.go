package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
	"github.com/matchdaylabs/leaguesync/internal/services/scheduler"
)

func TestHandleStatusReportsSessionSnapshot(t *testing.T) {
	logger := arbor.NewLogger()

	session := models.NewSessionState()
	session.SetAuthenticated(true)
	session.Touch("https://leagues.example.com/league/1")

	sched := scheduler.NewService(nil, logger)
	ws := NewWebSocketHandler(nil, logger, nil)

	h := NewAPIHandler(nil, nil, session, sched, ws, logger)

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	assert.Equal(t, true, payload["authenticated"])
	assert.Equal(t, "https://leagues.example.com/league/1", payload["current_url"])
	assert.Equal(t, false, payload["driver_available"])
	assert.Contains(t, payload, "next_scheduled_run")
	assert.Contains(t, payload, "last_scheduled_run")
	assert.Equal(t, float64(0), payload["websocket_clients"])
}

func TestHandleStatusOmitsOptionalSections(t *testing.T) {
	session := models.NewSessionState()
	h := NewAPIHandler(nil, nil, session, nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	assert.NotContains(t, payload, "next_scheduled_run")
	assert.NotContains(t, payload, "last_scheduled_run")
	assert.NotContains(t, payload, "websocket_clients")
}

func TestHandleHealth(t *testing.T) {
	session := models.NewSessionState()
	h := NewAPIHandler(nil, nil, session, nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload["status"])
}
