package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/checkout"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/projects"
	"github.com/rozoom/shop-api/internal/redisx"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
	Carts    *cart.Repo
	Orders   *orders.Repo
	Projects *projects.Repo
	Redis    *redis.Client
	Pub      *Publishers
}

type checkoutReq struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Get("/checkout", h.summary)
	r.Post("/checkout", h.checkout)
	r.Get("/payment/success", h.paymentSuccess)
	r.Get("/payment/cancel", h.paymentCancel)
}

// summary shows what a POST /checkout would charge.
func (h *CheckoutHandler) summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	if len(c.Items) == 0 {
		writeError(w, http.StatusConflict, "cart is empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"cart":           c,
		"subtotal_cents": c.SubtotalCents(),
		"total_cents":    c.SubtotalCents(),
	})
}

// checkout creates the pending order and redirects the buyer to the
// provider's hosted payment page.
func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}

	result, err := h.Checkout.Checkout(ctx, checkout.Input{
		Identity:  id,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	switch {
	case err == nil:
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusConflict, "cart is empty")
		return
	case errors.Is(err, checkout.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "not enough stock")
		return
	case errors.Is(err, checkout.ErrMissingContact):
		writeError(w, http.StatusBadRequest, "missing contact details")
		return
	default:
		log.Printf("checkout: %v", err)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	h.Pub.OrderCreated(r.Header.Get("X-Request-Id"), result.Order)
	h.cacheStatus(ctx, result.Order.OrderNumber, string(orders.StatusPending))

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// paymentSuccess is the buyer's return leg. The webhook is the source of
// truth for payment state; this applies project stage billing once the
// order shows as paid, and is harmless to reload.
func (h *CheckoutHandler) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.URL.Query().Get("order_id")
	if orderNumber == "" {
		writeError(w, http.StatusBadRequest, "missing order_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.GetByNumber(ctx, orderNumber)
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

	if o.PaymentStatus == orders.PaymentPaid {
		if applied, err := h.Projects.ApplyOrderBilling(ctx, o.ID); err != nil {
			log.Printf("payment success: stage billing order=%s: %v", o.OrderNumber, err)
		} else if applied {
			log.Printf("payment success: stage billing applied order=%s", o.OrderNumber)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"order_number":   o.OrderNumber,
		"payment_status": o.PaymentStatus,
		"order_status":   o.OrderStatus,
	})
}

// paymentCancel restores a pending order's stock and reopens nothing: the
// cart was consumed, the buyer starts over. Reloading the page is a no-op.
func (h *CheckoutHandler) paymentCancel(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.URL.Query().Get("order_id")
	if orderNumber == "" {
		writeError(w, http.StatusBadRequest, "missing order_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.GetByNumber(ctx, orderNumber)
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

	applied, err := h.Orders.Cancel(ctx, o.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	if applied {
		h.Pub.OrderCancelled(r.Header.Get("X-Request-Id"), *o)
		h.cacheStatus(ctx, o.OrderNumber, string(orders.StatusCancelled))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"order_number": o.OrderNumber,
		"order_status": orders.StatusCancelled,
		"cancelled":    applied,
	})
}

func (h *CheckoutHandler) cacheStatus(ctx context.Context, orderNumber, status string) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderNumber)
	body, _ := json.Marshal(map[string]string{"status": status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
