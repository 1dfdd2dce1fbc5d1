package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/darkosells/gaming-marketplace-sub001/internal/realtime"
	"github.com/darkosells/gaming-marketplace-sub001/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (CORS)
	},
}

// SystemHandler serves health probes and the realtime socket.
type SystemHandler struct {
	db     *sqlx.DB
	cache  *redis.Client
	hub    *realtime.Hub
	logger logger.Logger
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(db *sqlx.DB, cache *redis.Client, hub *realtime.Hub, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		db:     db,
		cache:  cache,
		hub:    hub,
		logger: log,
	}
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Ready reports readiness: database and cache both reachable.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	healthy := true

	if err := h.db.PingContext(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.cache.Ping(r.Context()).Err(); err != nil {
		checks["cache"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, h.logger, status, map[string]interface{}{
		"status": checks,
	})
}

// Events upgrades to a websocket fed by the order event hub.
func (h *SystemHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	h.hub.Serve(conn)
}
