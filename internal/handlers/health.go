package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/go-quotes/httpx"
)

// HealthHandler reports liveness and database readiness.
type HealthHandler struct {
	ping func() error
	log  *zap.Logger
}

func NewHealthHandler(ping func() error, log *zap.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, log: log}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings the database.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			h.log.Warn("readiness check failed", zap.Error(err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
