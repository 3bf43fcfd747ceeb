package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/utils"
)

const healthcheckTimeout = 2 * time.Second

// Pinger is the database surface the health check needs.
type Pinger interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db Pinger
}

func NewHealthchecker(db Pinger) healthchecker {
	return &healthcheckerImpl{db: db}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthcheckTimeout)
	defer cancel()

	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewOpsMux serves /healthz and /metrics for the ops listener.
func NewOpsMux(db Pinger, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	healthchecker := NewHealthchecker(db)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
	mux.Handle("GET /metrics", m.Handler())
	return mux
}
