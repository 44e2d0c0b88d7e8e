package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the wire envelope for all outbound websocket frames.
type WSMessage struct {
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	InstanceID string      `json:"instance_id"`
}

// WebSocketHandler broadcasts sync events to connected clients. Progress
// events are throttled so a chatty pipeline cannot flood slow clients;
// terminal events (job/run complete, errors) are never dropped.
type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	eventService      interfaces.EventService
	progressThrottler *rate.Limiter
	serverInstanceID  string // Clients use this to detect server restarts
}

// NewWebSocketHandler creates a handler subscribed to the sync event stream.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ProgressInterval != "" {
		if interval, err := time.ParseDuration(config.ProgressInterval); err == nil && interval > 0 {
			h.progressThrottler = rate.NewLimiter(rate.Every(interval), 1)
			logger.Debug().
				Str("interval", config.ProgressInterval).
				Msg("Progress broadcast throttler initialized")
		} else if err != nil {
			logger.Warn().
				Err(err).
				Str("interval", config.ProgressInterval).
				Msg("Failed to parse progress throttle interval - throttling disabled")
		}
	}

	if eventService != nil {
		h.subscribeToSyncEvents()
	}

	logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Msg("WebSocket handler initialized")

	return h
}

// subscribeToSyncEvents wires the event bus onto the broadcast path.
func (h *WebSocketHandler) subscribeToSyncEvents() {
	forward := func(msgType string, throttled bool) interfaces.EventHandler {
		return func(ctx context.Context, event interfaces.Event) error {
			if throttled && h.progressThrottler != nil && !h.progressThrottler.Allow() {
				return nil
			}
			h.broadcast(WSMessage{
				Type:       msgType,
				Payload:    event.Payload,
				InstanceID: h.serverInstanceID,
			})
			return nil
		}
	}

	_ = h.eventService.Subscribe(interfaces.EventSyncProgress, forward("sync_progress", true))
	_ = h.eventService.Subscribe(interfaces.EventJobComplete, forward("job_complete", false))
	_ = h.eventService.Subscribe(interfaces.EventRunComplete, forward("run_complete", false))
	_ = h.eventService.Subscribe(interfaces.EventSyncError, forward("sync_error", false))
}

// HandleWebSocket upgrades the connection and registers the client.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("remote", r.RemoteAddr).
		Int("client_count", clientCount).
		Msg("WebSocket client connected")

	// Greet with the instance id so reconnecting clients can detect restarts.
	h.sendTo(conn, WSMessage{
		Type:       "connected",
		Payload:    map[string]string{"server_time": time.Now().Format(time.RFC3339)},
		InstanceID: h.serverInstanceID,
	})

	// Read loop exists only to detect disconnects; inbound frames are ignored.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends a message to every connected client.
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.writeRaw(conn, data); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.removeClient(conn)
		}
	}
}

func (h *WebSocketHandler) sendTo(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.writeRaw(conn, data); err != nil {
		h.removeClient(conn)
	}
}

// writeRaw serializes concurrent writes per connection; gorilla connections
// do not allow concurrent writers.
func (h *WebSocketHandler) writeRaw(conn *websocket.Conn, data []byte) error {
	h.mu.RLock()
	mu, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("client_count", clientCount).Msg("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
