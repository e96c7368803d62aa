package notify

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/rozoom/shop-api/internal/kafka"
	"github.com/rozoom/shop-api/internal/orders"
)

type recordingSender struct {
	emails   []string
	subjects []string
}

func (r *recordingSender) Send(_ context.Context, email, subject, _ string) error {
	r.emails = append(r.emails, email)
	r.subjects = append(r.subjects, subject)
	return nil
}

func envelopeMessage(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      "evt-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "shop-api",
		Payload:      kafkax.MustMarshal(payload),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleOrderCreatedSendsConfirmation(t *testing.T) {
	sender := &recordingSender{}
	svc := &Service{Sender: sender, ServiceName: "notifier"}

	m := envelopeMessage(t, orders.EventOrderCreated, orders.OrderCreatedPayload{
		OrderID:     5,
		OrderNumber: "ORD-20260314093000-abcdef12",
		Email:       "buyer@example.com",
		TotalCents:  4500,
		ItemCount:   2,
	})
	if err := svc.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.emails) != 1 || sender.emails[0] != "buyer@example.com" {
		t.Fatalf("emails = %v", sender.emails)
	}
}

func TestHandlePaymentFailedMentionsReason(t *testing.T) {
	sender := &recordingSender{}
	svc := &Service{Sender: sender, ServiceName: "notifier"}

	m := envelopeMessage(t, orders.EventOrderPaymentFailed, orders.OrderPaymentFailedPayload{
		OrderID:     5,
		OrderNumber: "ORD-20260314093000-abcdef12",
		Email:       "buyer@example.com",
		Reason:      "card declined",
	})
	if err := svc.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.subjects) != 1 {
		t.Fatalf("subjects = %v", sender.subjects)
	}
}

func TestHandleSkipsUnknownAndPoisonMessages(t *testing.T) {
	sender := &recordingSender{}
	svc := &Service{Sender: sender, ServiceName: "notifier"}

	// unknown event type: committed without sending
	m := envelopeMessage(t, "SomethingElse", map[string]any{})
	if err := svc.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("unknown type: %v", err)
	}

	// unparseable body: committed without sending, never retried
	if err := svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not-json")}); err != nil {
		t.Fatalf("poison message: %v", err)
	}
	if len(sender.emails) != 0 {
		t.Fatalf("emails = %v", sender.emails)
	}
}

func TestHandleSkipsMissingRecipient(t *testing.T) {
	sender := &recordingSender{}
	svc := &Service{Sender: sender, ServiceName: "notifier"}

	m := envelopeMessage(t, orders.EventOrderPaid, orders.OrderPaidPayload{
		OrderID:     5,
		OrderNumber: "ORD-20260314093000-abcdef12",
	})
	if err := svc.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.emails) != 0 {
		t.Fatalf("emails = %v", sender.emails)
	}
}
