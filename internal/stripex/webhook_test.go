package stripex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_testing"

func signPayload(t *testing.T, payload []byte, at time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignatureAccepts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := signPayload(t, payload, now)

	if err := VerifySignature(payload, header, testSecret, DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, now)

	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, testSecret, DefaultSignatureTolerance, now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, now)

	err := VerifySignature(payload, header, "whsec_other", DefaultSignatureTolerance, now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	signed := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, signed)

	err := VerifySignature(payload, header, testSecret, DefaultSignatureTolerance, signed.Add(10*time.Minute))
	if !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired signature, got %v", err)
	}
}

func TestVerifySignatureAcceptsAnyMatchingV1(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	good := signPayload(t, payload, now)
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), hex.EncodeToString(make([]byte, 32)), good[len(fmt.Sprintf("t=%d,", now.Unix())):])

	if err := VerifySignature(payload, header, testSecret, DefaultSignatureTolerance, now); err != nil {
		t.Fatalf("verify with extra v1 entry: %v", err)
	}
}

func TestVerifySignatureBadHeader(t *testing.T) {
	for _, header := range []string{"", "v1=abc", "t=notanumber,v1=abc", "garbage"} {
		err := VerifySignature([]byte("{}"), header, testSecret, 0, time.Now())
		if !errors.Is(err, ErrBadSignatureHeader) {
			t.Fatalf("header %q: expected bad header, got %v", header, err)
		}
	}
}

func TestParseEventAndSessionObject(t *testing.T) {
	payload := []byte(`{
		"id": "evt_42",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"payment_intent": "pi_9",
			"payment_status": "paid",
			"metadata": {"order_id": "77"}
		}}
	}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != EventCheckoutSessionCompleted {
		t.Fatalf("type = %q", event.Type)
	}
	session, err := event.Session()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if session.PaymentIntent != "pi_9" {
		t.Fatalf("payment intent = %q", session.PaymentIntent)
	}
	orderID, ok := session.OrderID()
	if !ok || orderID != 77 {
		t.Fatalf("order id = %d, ok = %v", orderID, ok)
	}
}

func TestSessionOrderIDMissingOrInvalid(t *testing.T) {
	cases := []SessionObject{
		{},
		{Metadata: map[string]string{"order_id": "abc"}},
		{Metadata: map[string]string{"order_id": "-3"}},
	}
	for _, session := range cases {
		if _, ok := session.OrderID(); ok {
			t.Fatalf("metadata %v should not yield an order id", session.Metadata)
		}
	}
}

func TestParseEventRejectsIncomplete(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"id":"evt_1"}`)); err == nil {
		t.Fatal("expected error for event without a type")
	}
	if _, err := ParseEvent([]byte(`not-json`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
