package orders

import (
	"strings"
	"testing"
	"time"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusCancelled, StatusProcessing, false},
		{StatusRefunded, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentAwaiting, PaymentPaid, true},
		{PaymentFailed, PaymentPaid, true},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentPending, false},
		{PaymentRefunded, PaymentPaid, false},
	}
	for _, tc := range cases {
		if got := CanTransitionPayment(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	n := NewOrderNumber(now)
	if !strings.HasPrefix(n, "ORD-20250601143005-") {
		t.Fatalf("unexpected prefix: %s", n)
	}
	suffix := strings.TrimPrefix(n, "ORD-20250601143005-")
	if len(suffix) != 8 {
		t.Fatalf("expected 8 hex chars of suffix, got %q", suffix)
	}
}

func TestNewOrderNumberSuffixVaries(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := NewOrderNumber(now)
		if seen[n] {
			t.Fatalf("duplicate order number within one instant: %s", n)
		}
		seen[n] = true
	}
}
