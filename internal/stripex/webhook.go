package stripex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
)

// DefaultSignatureTolerance bounds how stale a signed timestamp may be
// before the payload is treated as a replay.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrBadSignatureHeader = errors.New("stripex: malformed signature header")
	ErrSignatureMismatch  = errors.New("stripex: signature verification failed")
	ErrSignatureExpired   = errors.New("stripex: signed timestamp outside tolerance")
)

// Event is the outer webhook envelope. Data.Object stays raw until the
// event type tells us which shape to decode.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type SessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

type PaymentIntentObject struct {
	ID               string `json:"id"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// VerifySignature checks the Stripe-Signature header against the raw
// payload. The header carries "t=<unix>,v1=<hex>" pairs; the signed string
// is "<t>.<payload>" under HMAC-SHA256 with the endpoint secret. Any
// matching v1 entry passes.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		signedAt := time.Unix(timestamp, 0)
		age := now.Sub(signedAt)
		if age < 0 {
			age = -age
		}
		if age > tolerance {
			return ErrSignatureExpired
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, decodeErr := hex.DecodeString(sig)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func parseSignatureHeader(header string) (timestamp int64, signatures []string, err error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, ErrBadSignatureHeader
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrBadSignatureHeader
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrBadSignatureHeader
			}
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, ErrBadSignatureHeader
	}
	return timestamp, signatures, nil
}

// ParseEvent decodes the webhook envelope after the signature has been
// verified.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("stripex: decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, errors.New("stripex: event missing id or type")
	}
	return event, nil
}

func (e Event) Session() (SessionObject, error) {
	var session SessionObject
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return SessionObject{}, fmt.Errorf("stripex: decode session object: %w", err)
	}
	return session, nil
}

func (e Event) PaymentIntent() (PaymentIntentObject, error) {
	var intent PaymentIntentObject
	if err := json.Unmarshal(e.Data.Object, &intent); err != nil {
		return PaymentIntentObject{}, fmt.Errorf("stripex: decode payment intent object: %w", err)
	}
	return intent, nil
}

// OrderID extracts the order id planted in session metadata at checkout.
func (s SessionObject) OrderID() (int64, bool) {
	raw, ok := s.Metadata["order_id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
