package handlers

import (
	"context"
	"net/http"
	"time"

	"ridelink/internal/utils"

	"github.com/gin-gonic/gin"
)

// Pinger is implemented by the Mongo and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter is implemented by the websocket hub.
type ConnectionCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	checks      map[string]Pinger
	connections ConnectionCounter
	timeout     time.Duration
}

// NewHealthHandler takes the named dependencies to probe. Nil entries are
// skipped so optional backends can be passed unconditionally.
func NewHealthHandler(checks map[string]Pinger, connections ConnectionCounter) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{checks: active, connections: connections, timeout: 2 * time.Second}
}

type healthStatus struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Connections  int               `json:"connections"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := healthStatus{
		Status:       "ok",
		Version:      utils.AppVersion,
		Dependencies: make(map[string]string, len(h.checks)),
	}
	code := http.StatusOK
	if h.connections != nil {
		status.Connections = h.connections.ClientCount()
	}

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status.Dependencies[name] = "down"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Dependencies[name] = "up"
	}

	c.JSON(code, status)
}
