package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/go-chi/chi/v5"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/mirror"
	"github.com/italolelis/manifest_mirror/internal/telemetry"
)

const healthTimeout = 5 * time.Second

// StatusProvider reports the state of the current or most recent run.
type StatusProvider interface {
	Snapshot() mirror.Snapshot
}

// StatusHandler serves the operational surface of a run: live snapshot,
// metrics, and health.
type StatusHandler struct {
	provider  StatusProvider
	historyDB *sql.DB
	telemetry *telemetry.Telemetry
}

// NewStatusHandler creates a new status handler. historyDB may be nil when
// the run-history store is disabled.
func NewStatusHandler(provider StatusProvider, historyDB *sql.DB, t *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{
		provider:  provider,
		historyDB: historyDB,
		telemetry: t,
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	mw := telemetry.NewHTTPMiddleware(h.telemetry)
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(mw.Middleware)

	r.Get("/api/v1/status", h.HandleStatus)
	r.Handle("/metrics", h.telemetry.Handler())
	r.Handle("/healthcheck", h.healthHandler())

	return r
}

// HandleStatus renders the current run snapshot.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	snap := h.provider.Snapshot()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		logger.Error("failed to encode status response", "err", err)
	}
}

func (h *StatusHandler) healthHandler() http.Handler {
	opts := []healthcheck.Option{healthcheck.WithTimeout(healthTimeout)}

	if h.historyDB != nil {
		opts = append(opts, healthcheck.WithChecker("history-db",
			healthcheck.CheckerFunc(func(ctx context.Context) error {
				return h.historyDB.PingContext(ctx)
			})))
	}

	return healthcheck.Handler(opts...)
}
