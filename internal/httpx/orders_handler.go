package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/redisx"
)

type OrdersHandler struct {
	Orders *orders.Repo
	Redis  *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders", h.history)
	r.Get("/orders/{number}", h.get)
	r.Get("/orders/{number}/status", h.status)
}

// history degrades to an empty list when the database or lookup fails:
// the account page stays up even when order history does not.
func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByUser(ctx, userID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"orders": []orders.Order{}, "degraded": true})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetByNumber(ctx, chi.URLParam(r, "number"))
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "order unavailable")
		return
	}
	if !ownsOrder(r, o) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// status answers from the Redis cache when it can, but only after the
// order row has confirmed the caller owns the order.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetByNumber(ctx, number)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "order unavailable")
		return
	}
	if !ownsOrder(r, o) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, number)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	body, _ := json.Marshal(map[string]string{"status": string(o.OrderStatus)})
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
