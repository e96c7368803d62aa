package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/stripex"
)

type fakeTx struct {
	order       orders.Order
	lines       []Line
	finalized   *stripex.CheckoutSession
	finalizeErr error
	aborted     bool
}

func (f *fakeTx) Order() orders.Order { return f.order }
func (f *fakeTx) Lines() []Line       { return f.lines }

func (f *fakeTx) Finalize(_ context.Context, session stripex.CheckoutSession) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = &session
	return nil
}

func (f *fakeTx) Abort(context.Context) error {
	f.aborted = true
	return nil
}

type fakeStore struct {
	tx     *fakeTx
	err    error
	begun  int
	number string
}

func (f *fakeStore) BeginCheckout(_ context.Context, _ Input, orderNumber string) (Tx, error) {
	f.begun++
	f.number = orderNumber
	if f.err != nil {
		return nil, f.err
	}
	f.tx.order.OrderNumber = orderNumber
	return f.tx, nil
}

type fakePayments struct {
	params  stripex.SessionParams
	session stripex.CheckoutSession
	err     error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, p stripex.SessionParams) (stripex.CheckoutSession, error) {
	f.params = p
	if f.err != nil {
		return stripex.CheckoutSession{}, f.err
	}
	return f.session, nil
}

func testService(store *fakeStore, payments *fakePayments) *Service {
	return &Service{
		Store:    store,
		Payments: payments,
		BaseURL:  "https://shop.example",
		Currency: "eur",
		Now:      func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	}
}

func userInput() Input {
	return Input{
		Identity:  cart.Identity{UserID: 7},
		Email:     "buyer@example.com",
		FirstName: "Ana",
		LastName:  "Petrova",
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	tx := &fakeTx{
		order: orders.Order{ID: 11, TotalCents: 4500},
		lines: []Line{{Name: "Logo design", UnitAmountCents: 4500, Quantity: 1}},
	}
	store := &fakeStore{tx: tx}
	payments := &fakePayments{session: stripex.CheckoutSession{
		ID: "cs_1", URL: "https://checkout.stripe.com/pay/cs_1", PaymentIntent: "pi_1",
	}}

	result, err := testService(store, payments).Checkout(context.Background(), userInput())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.RedirectURL != "https://checkout.stripe.com/pay/cs_1" {
		t.Fatalf("redirect = %q", result.RedirectURL)
	}
	if tx.finalized == nil || tx.finalized.ID != "cs_1" {
		t.Fatal("transaction was not finalized with the session")
	}
	if tx.aborted {
		t.Fatal("successful checkout must not abort")
	}
	if !strings.HasPrefix(store.number, "ORD-20260314093000-") {
		t.Fatalf("order number = %q", store.number)
	}
	if payments.params.OrderID != 11 {
		t.Fatalf("session metadata order id = %d", payments.params.OrderID)
	}
	if !strings.Contains(payments.params.SuccessURL, store.number) ||
		!strings.Contains(payments.params.CancelURL, store.number) {
		t.Fatalf("callback urls missing order number: %q %q",
			payments.params.SuccessURL, payments.params.CancelURL)
	}
}

func TestCheckoutAbortsWhenProviderFails(t *testing.T) {
	tx := &fakeTx{order: orders.Order{ID: 11}, lines: []Line{{Quantity: 1}}}
	store := &fakeStore{tx: tx}
	payments := &fakePayments{err: errors.New("stripe is down")}

	_, err := testService(store, payments).Checkout(context.Background(), userInput())
	if err == nil || !strings.Contains(err.Error(), "stripe is down") {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !tx.aborted {
		t.Fatal("provider failure must roll the checkout back")
	}
	if tx.finalized != nil {
		t.Fatal("failed checkout must not finalize")
	}
}

func TestCheckoutAbortsWhenFinalizeFails(t *testing.T) {
	tx := &fakeTx{
		order:       orders.Order{ID: 11},
		lines:       []Line{{Quantity: 1}},
		finalizeErr: errors.New("commit lost connection"),
	}
	store := &fakeStore{tx: tx}
	payments := &fakePayments{session: stripex.CheckoutSession{ID: "cs_1", URL: "https://x"}}

	_, err := testService(store, payments).Checkout(context.Background(), userInput())
	if err == nil {
		t.Fatal("expected finalize error")
	}
	if !tx.aborted {
		t.Fatal("finalize failure must roll the checkout back")
	}
}

func TestCheckoutRejectsBadIdentity(t *testing.T) {
	store := &fakeStore{tx: &fakeTx{}}
	in := userInput()
	in.Identity = cart.Identity{}

	_, err := testService(store, &fakePayments{}).Checkout(context.Background(), in)
	if !errors.Is(err, cart.ErrNoIdentity) {
		t.Fatalf("expected identity error, got %v", err)
	}
	if store.begun != 0 {
		t.Fatal("invalid identity must not touch the store")
	}
}

func TestCheckoutPropagatesStoreErrors(t *testing.T) {
	for _, want := range []error{ErrEmptyCart, ErrInsufficientStock, cart.ErrNotFound} {
		store := &fakeStore{err: want}
		_, err := testService(store, &fakePayments{}).Checkout(context.Background(), userInput())
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}

func TestLineItemsPreferStoredPriceID(t *testing.T) {
	svc := &Service{Currency: "eur", TestPriceID: "price_test"}
	items := svc.lineItems([]Line{
		{StripePriceID: "price_real", Quantity: 1},
		{Name: "Hosting", UnitAmountCents: 900, Quantity: 2},
	})
	if items[0].PriceID != "price_real" {
		t.Fatalf("items[0].PriceID = %q", items[0].PriceID)
	}
	if items[1].PriceID != "price_test" {
		t.Fatalf("items[1].PriceID = %q, want configured test price", items[1].PriceID)
	}

	svc.TestPriceID = ""
	items = svc.lineItems([]Line{{Name: "Hosting", UnitAmountCents: 900, Quantity: 2}})
	if items[0].PriceID != "" || items[0].UnitAmountCents != 900 || items[0].Currency != "eur" {
		t.Fatalf("inline item = %+v", items[0])
	}
}
