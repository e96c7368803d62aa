// Package notify consumes order events and sends customer notifications.
// Delivery here is a structured log line; the mailer sits behind Sender so
// a real SMTP or provider client can slot in.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/rozoom/shop-api/internal/kafka"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/redisx"
)

// Sender delivers one customer-facing message.
type Sender interface {
	Send(ctx context.Context, email, subject, body string) error
}

// LogSender is the default delivery: it only logs. Useful in development
// and as a safety default when no mailer is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, email, subject, _ string) error {
	log.Printf("notify: to=%s subject=%q", email, subject)
	return nil
}

type Service struct {
	Redis       *redis.Client
	Sender      Sender
	ServiceName string
}

// HandleOrderEvent is the consumer callback for every order topic. Redis
// dedup makes redelivered events no-ops; a missing cache degrades to
// at-least-once, which for notifications means a possible duplicate email
// rather than a missed one.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Printf("notify: bad envelope on %s: %v", m.Topic, err)
		return nil // poison message, commit and move on
	}

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
		first, err := redisx.MarkOnce(ctx, s.Redis, key, redisx.TTLDedup)
		if err != nil {
			log.Printf("notify: dedup cache: %v", err)
		}
		if !first {
			return nil
		}
	}

	subject, body, email, ok := s.compose(env)
	if !ok {
		return nil
	}
	if email == "" {
		log.Printf("notify: event=%s order=%s has no recipient", env.EventID, env.CorrelationID)
		return nil
	}
	return s.sender().Send(ctx, email, subject, body)
}

func (s *Service) compose(env orders.Envelope) (subject, body, email string, ok bool) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			log.Printf("notify: decode %s: %v", env.EventType, err)
			return "", "", "", false
		}
		return fmt.Sprintf("Order %s received", p.OrderNumber),
			fmt.Sprintf("We received your order %s for %d item(s). You will get a confirmation once payment clears.",
				p.OrderNumber, p.ItemCount),
			p.Email, true
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			log.Printf("notify: decode %s: %v", env.EventType, err)
			return "", "", "", false
		}
		return fmt.Sprintf("Order %s confirmed", p.OrderNumber),
			fmt.Sprintf("Payment for order %s went through. We are on it.", p.OrderNumber),
			p.Email, true
	case orders.EventOrderPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.OrderPaymentFailedPayload](env.Payload)
		if err != nil {
			log.Printf("notify: decode %s: %v", env.EventType, err)
			return "", "", "", false
		}
		return fmt.Sprintf("Payment for order %s failed", p.OrderNumber),
			fmt.Sprintf("The payment for order %s did not go through: %s. Your card was not charged.",
				p.OrderNumber, p.Reason),
			p.Email, true
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			log.Printf("notify: decode %s: %v", env.EventType, err)
			return "", "", "", false
		}
		return fmt.Sprintf("Order %s cancelled", p.OrderNumber),
			fmt.Sprintf("Order %s was cancelled and any reserved items were released.", p.OrderNumber),
			p.Email, true
	default:
		log.Printf("notify: ignoring event type=%s", env.EventType)
		return "", "", "", false
	}
}

func (s *Service) sender() Sender {
	if s.Sender != nil {
		return s.Sender
	}
	return LogSender{}
}
