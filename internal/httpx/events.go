package httpx

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/rozoom/shop-api/internal/kafka"
	"github.com/rozoom/shop-api/internal/orders"
)

// Publishers holds one async producer per order topic. Any of them may be
// nil when the broker is not configured; publishing then becomes a no-op.
type Publishers struct {
	Service       string
	Created       *kafkax.Producer
	Paid          *kafkax.Producer
	PaymentFailed *kafkax.Producer
	Cancelled     *kafkax.Producer
}

func (p *Publishers) publish(prod *kafkax.Producer, eventType, traceID, orderNumber string, payload any) {
	if p == nil || prod == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		TraceID:       traceID,
		CorrelationID: orderNumber,
		Payload:       kafkax.MustMarshal(payload),
	}
	prod.Publish(orders.PartitionKey(orderNumber), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *Publishers) OrderCreated(traceID string, o orders.Order) {
	if p == nil {
		return
	}
	p.publish(p.Created, orders.EventOrderCreated, traceID, o.OrderNumber, orders.OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Email:       o.Email,
		TotalCents:  o.TotalCents,
		ItemCount:   len(o.Items),
	})
}

func (p *Publishers) OrderPaid(traceID string, o orders.Order, paymentIntentID string) {
	if p == nil {
		return
	}
	p.publish(p.Paid, orders.EventOrderPaid, traceID, o.OrderNumber, orders.OrderPaidPayload{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Email:           o.Email,
		PaymentIntentID: paymentIntentID,
		TotalCents:      o.TotalCents,
	})
}

func (p *Publishers) OrderPaymentFailed(traceID string, o orders.Order, reason string) {
	if p == nil {
		return
	}
	p.publish(p.PaymentFailed, orders.EventOrderPaymentFailed, traceID, o.OrderNumber, orders.OrderPaymentFailedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Email:       o.Email,
		Reason:      reason,
	})
}

func (p *Publishers) OrderCancelled(traceID string, o orders.Order) {
	if p == nil {
		return
	}
	p.publish(p.Cancelled, orders.EventOrderCancelled, traceID, o.OrderNumber, orders.OrderCancelledPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Email:       o.Email,
	})
}
