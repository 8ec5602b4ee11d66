package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/nexus-vision/facesearch-go/internal/service"
)

// RouterServices groups the dependencies required to build the HTTP router.
type RouterServices struct {
	Jobs *service.JobService
	DB   *sql.DB

	// CallbackToken protects the worker callback endpoint. Empty disables
	// the check (local development only).
	CallbackToken string

	Logger *slog.Logger
}

// NewRouter builds the HTTP router with all API routes registered.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	health := &HealthHandlers{DB: services.DB}
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("HEAD /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)

	h := &JobHandlers{Svc: services.Jobs}
	callbackAuth := RequireCallbackToken(services.CallbackToken)

	mux.HandleFunc("POST /jobs", h.Submit)
	mux.Handle("POST /jobs/callback", callbackAuth(http.HandlerFunc(h.Callback)))
	mux.HandleFunc("GET /jobs/stats", h.Stats)
	mux.HandleFunc("GET /jobs/{correlation_id}", h.GetJob)

	return mux
}
