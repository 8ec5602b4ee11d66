package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	DB *sql.DB
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness, including a database ping when configured.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "db_unavailable", Err: err})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
