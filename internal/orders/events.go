package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderPaymentFailed = "OrderPaymentFailed"
	EventOrderCancelled     = "OrderCancelled"
)

const (
	TopicOrderCreated       = "shop.order.created"
	TopicOrderPaid          = "shop.order.paid"
	TopicOrderPaymentFailed = "shop.order.payment_failed"
	TopicOrderCancelled     = "shop.order.cancelled"
)

// Envelope is the versioned wrapper every order event travels in.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	TotalCents  int64  `json:"total_cents"`
	ItemCount   int    `json:"item_count"`
}

type OrderPaidPayload struct {
	OrderID         int64  `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	Email           string `json:"email"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	TotalCents      int64  `json:"total_cents"`
}

type OrderPaymentFailedPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	Reason      string `json:"reason,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}

// PartitionKey keeps all events for one order on one partition so consumers
// see them in order.
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }
