package httpx

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rozoom/shop-api/internal/bootstrap"
	"github.com/rozoom/shop-api/internal/postgres"
)

// HealthHandler reports database and cache health. A failed database probe
// triggers one reconnect attempt before the check is reported as down, so
// a bounced Postgres heals without a restart.
type HealthHandler struct {
	DB     *postgres.Manager
	Schema *bootstrap.Bootstrapper
	Redis  *redis.Client
}

func (h *HealthHandler) Register(r *chi.Mux) {
	r.Get("/health", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if err := h.DB.Healthy(ctx); err != nil {
		log.Printf("health: database probe failed, reconnecting: %v", err)
		if err := h.DB.Reconnect(ctx, false); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "reconnected"
		}
	}

	if h.Schema != nil && code == http.StatusOK {
		if missing, err := h.Schema.MissingColumns(ctx); err == nil && len(missing) > 0 {
			status["status"] = "degraded"
			status["schema_drift"] = missing
		}
	}

	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			// cache loss degrades dedup and badges, not correctness
			status["cache"] = "unavailable"
		}
	}

	writeJSON(w, code, status)
}
