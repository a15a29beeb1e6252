package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/vetriapp/vetri-backend/internal/api/response"
	"github.com/vetriapp/vetri-backend/internal/presence"
	"github.com/vetriapp/vetri-backend/internal/ws"
)

// HealthHandler reports liveness and readiness.
type HealthHandler struct {
	db       *sql.DB
	wsServer *ws.Server
	presence *presence.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, wsServer *ws.Server, presence *presence.Store) *HealthHandler {
	return &HealthHandler{db: db, wsServer: wsServer, presence: presence}
}

// Health reports process liveness and connection counts.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":      "ok",
		"connections": h.wsServer.ConnectionCount(),
		"uptime":      h.wsServer.Uptime().Round(time.Second).String(),
	}

	if h.presence != nil {
		if online, err := h.presence.Online(r.Context()); err == nil {
			data["online"] = online
		}
	}

	response.OK(w, data)
}

// Ready reports whether the database is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	response.OK(w, map[string]any{"status": "ready"})
}
