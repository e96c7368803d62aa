package cart

import (
	"errors"
	"testing"

	"github.com/rozoom/shop-api/internal/catalog"
)

func i64(v int64) *int64 { return &v }

func TestSnapshotPricePrefersPositiveSalePrice(t *testing.T) {
	p := catalog.Product{PriceCents: 10000, SalePriceCents: i64(7500)}
	got, err := SnapshotPrice(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7500 {
		t.Fatalf("expected sale price 7500, got %d", got)
	}
}

func TestSnapshotPriceIgnoresZeroSalePrice(t *testing.T) {
	p := catalog.Product{PriceCents: 10000, SalePriceCents: i64(0)}
	got, err := SnapshotPrice(p, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10000 {
		t.Fatalf("expected list price 10000, got %d", got)
	}
}

func TestSnapshotPriceRejectsUnpricedProduct(t *testing.T) {
	_, err := SnapshotPrice(catalog.Product{}, false)
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestSnapshotPriceAllowZero(t *testing.T) {
	got, err := SnapshotPrice(catalog.Product{}, true)
	if err != nil || got != 0 {
		t.Fatalf("expected explicit zero price, got %d err=%v", got, err)
	}
}

func TestCartSubtotalDerivedFromLines(t *testing.T) {
	c := &Cart{Items: []Item{
		{Quantity: 2, UnitPriceCents: 5000},
		{Quantity: 1, UnitPriceCents: 2599},
	}}
	if got := c.SubtotalCents(); got != 12599 {
		t.Fatalf("expected subtotal 12599, got %d", got)
	}
	if got := c.Count(); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
}

func TestIdentityExactlyOneOwner(t *testing.T) {
	cases := []struct {
		id   Identity
		want bool
	}{
		{Identity{UserID: 7}, true},
		{Identity{SessionToken: "tok"}, true},
		{Identity{UserID: 7, SessionToken: "tok"}, false},
		{Identity{}, false},
	}
	for _, tc := range cases {
		if got := tc.id.Valid(); got != tc.want {
			t.Fatalf("identity %+v: expected %v, got %v", tc.id, tc.want, got)
		}
	}
}
