package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/redisx"
	"github.com/rozoom/shop-api/internal/stripex"
	"github.com/rozoom/shop-api/internal/webhookschema"
)

const maxWebhookBody = 1 << 16

// OrderStore is the slice of the orders repository the webhook needs.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID int64, paymentIntentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, providerPaymentID string) (int64, bool, error)
}

// BillingStore applies project stage billing for a paid order.
type BillingStore interface {
	ApplyOrderBilling(ctx context.Context, orderID int64) (bool, error)
}

// ReplayGuard remembers provider event ids that finished reconciling.
// Seen answers the fast duplicate path; Mark records an id only after the
// event's work is done, so a transiently failed event stays claimable and
// the provider's redelivery gets a real retry.
type ReplayGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// RedisReplayGuard keeps event ids in Redis under the webhook key with
// the standard TTL. Errors degrade to at-least-once: an unreachable cache
// never drops an event.
type RedisReplayGuard struct {
	Client *redis.Client
}

func (g *RedisReplayGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, g.Client, fmt.Sprintf(redisx.KeyWebhookEvent, eventID))
}

func (g *RedisReplayGuard) Mark(ctx context.Context, eventID string) error {
	key := fmt.Sprintf(redisx.KeyWebhookEvent, eventID)
	return g.Client.Set(ctx, key, "1", redisx.TTLWebhookEvent).Err()
}

// WebhookHandler reconciles provider webhook events onto orders. Bad
// signatures and unparseable bodies get 400. Events that reconcile, or
// that can never reconcile (unknown type, missing metadata, already
// settled), get 200 and are marked seen. Transient failures get 500 with
// the event left unmarked, so the provider's redelivery retries the work.
type WebhookHandler struct {
	Secret   string
	Orders   OrderStore
	Projects BillingStore
	Guard    ReplayGuard
	Redis    *redis.Client
	Pub      *Publishers
	Now      func() time.Time
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhook", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	err = stripex.VerifySignature(body, r.Header.Get("Stripe-Signature"), h.Secret,
		stripex.DefaultSignatureTolerance, now())
	if err != nil {
		log.Printf("webhook: signature rejected: %v", err)
		writeError(w, http.StatusBadRequest, "bad signature")
		return
	}
	if err := webhookschema.ValidateEvent(body); err != nil {
		log.Printf("webhook: schema rejected: %v", err)
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	event, err := stripex.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if h.Guard != nil {
		seen, err := h.Guard.Seen(ctx, event.ID)
		if err != nil {
			log.Printf("webhook: dedup cache: %v", err)
		}
		if seen {
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	switch event.Type {
	case stripex.EventCheckoutSessionCompleted:
		err = h.sessionCompleted(ctx, r, event)
	case stripex.EventPaymentIntentFailed:
		err = h.paymentFailed(ctx, r, event)
	default:
		log.Printf("webhook: ignoring event type=%s id=%s", event.Type, event.ID)
	}
	if err != nil {
		log.Printf("webhook: event=%s: %v", event.ID, err)
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	if h.Guard != nil {
		if err := h.Guard.Mark(ctx, event.ID); err != nil {
			log.Printf("webhook: dedup cache: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

// sessionCompleted returns an error only for transient failures; terminal
// conditions are logged and acknowledged so the provider stops retrying.
func (h *WebhookHandler) sessionCompleted(ctx context.Context, r *http.Request, event stripex.Event) error {
	session, err := event.Session()
	if err != nil {
		log.Printf("webhook: event=%s: %v", event.ID, err)
		return nil
	}
	orderID, ok := session.OrderID()
	if !ok {
		log.Printf("webhook: event=%s session=%s has no order_id metadata", event.ID, session.ID)
		return nil
	}

	applied, err := h.Orders.MarkPaid(ctx, orderID, session.PaymentIntent)
	if err != nil {
		return fmt.Errorf("mark paid order=%d: %w", orderID, err)
	}
	if !applied {
		log.Printf("webhook: order=%d already settled, event=%s ignored", orderID, event.ID)
		return nil
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reload order=%d: %w", orderID, err)
	}
	// Billing rides on its own applied flag and the success page is the
	// backstop, so a failure here is not worth a redelivery.
	if _, err := h.Projects.ApplyOrderBilling(ctx, orderID); err != nil {
		log.Printf("webhook: stage billing order=%s: %v", o.OrderNumber, err)
	}
	h.Pub.OrderPaid(r.Header.Get("X-Request-Id"), *o, session.PaymentIntent)
	h.cacheStatus(ctx, o.OrderNumber, string(orders.StatusProcessing))
	return nil
}

func (h *WebhookHandler) paymentFailed(ctx context.Context, r *http.Request, event stripex.Event) error {
	intent, err := event.PaymentIntent()
	if err != nil {
		log.Printf("webhook: event=%s: %v", event.ID, err)
		return nil
	}

	orderID, applied, err := h.Orders.MarkPaymentFailed(ctx, intent.ID)
	if errors.Is(err, orders.ErrNotFound) {
		log.Printf("webhook: no order for payment intent=%s, event=%s acknowledged", intent.ID, event.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark failed intent=%s: %w", intent.ID, err)
	}
	if !applied {
		return nil
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reload order=%d: %w", orderID, err)
	}
	h.Pub.OrderPaymentFailed(r.Header.Get("X-Request-Id"), *o, intent.LastPaymentError.Message)
	h.cacheStatus(ctx, o.OrderNumber, string(orders.PaymentFailed))
	return nil
}

func (h *WebhookHandler) cacheStatus(ctx context.Context, orderNumber, status string) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderNumber)
	body, _ := json.Marshal(map[string]string{"status": status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
