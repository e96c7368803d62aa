// Package checkout turns an open cart into a pending order and a hosted
// payment session. The order, its frozen items, the stock decrement and
// the cart close all live in one database transaction; the payment
// provider is called while that transaction is still open, so a provider
// failure rolls everything back and the cart stays usable.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/stripex"
)

var (
	ErrEmptyCart         = errors.New("checkout: cart is empty")
	ErrInsufficientStock = errors.New("checkout: not enough stock")
)

// Input is everything the buyer submits at checkout.
type Input struct {
	Identity  cart.Identity
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Line is one priced row of the pending order, carried back to the
// service so it can build the provider's line items.
type Line struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int32
	StripePriceID   string
}

// Tx is an open checkout transaction: order and items written, stock
// decremented, cart closed, nothing committed yet. Exactly one of
// Finalize or Abort must be called.
type Tx interface {
	Order() orders.Order
	Lines() []Line
	Finalize(ctx context.Context, session stripex.CheckoutSession) error
	Abort(ctx context.Context) error
}

// Store opens checkout transactions against the database.
type Store interface {
	BeginCheckout(ctx context.Context, in Input, orderNumber string) (Tx, error)
}

// SessionCreator is the slice of the payment client the service needs.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, p stripex.SessionParams) (stripex.CheckoutSession, error)
}

type Service struct {
	Store       Store
	Payments    SessionCreator
	BaseURL     string
	Currency    string
	TestPriceID string
	Now         func() time.Time
}

type Result struct {
	Order       orders.Order
	SessionID   string
	RedirectURL string
}

// Checkout runs the whole flow: begin the transaction, create the
// provider session, and commit only once the session exists. Any error
// after BeginCheckout aborts the transaction, which also reopens the cart
// and returns the stock.
func (s *Service) Checkout(ctx context.Context, in Input) (Result, error) {
	if !in.Identity.Valid() {
		return Result{}, cart.ErrNoIdentity
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	tx, err := s.Store.BeginCheckout(ctx, in, orders.NewOrderNumber(now()))
	if err != nil {
		return Result{}, err
	}

	order := tx.Order()
	session, err := s.Payments.CreateCheckoutSession(ctx, stripex.SessionParams{
		OrderID:    order.ID,
		SuccessURL: s.BaseURL + "/payment/success?order_id=" + order.OrderNumber,
		CancelURL:  s.BaseURL + "/payment/cancel?order_id=" + order.OrderNumber,
		LineItems:  s.lineItems(tx.Lines()),
	})
	if err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			return Result{}, errors.Join(err, abortErr)
		}
		return Result{}, err
	}

	if err := tx.Finalize(ctx, session); err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			return Result{}, errors.Join(err, abortErr)
		}
		return Result{}, err
	}
	return Result{Order: order, SessionID: session.ID, RedirectURL: session.URL}, nil
}

// lineItems prefers the product's own provider price, then the configured
// test price, then inline price data with the snapshotted amount.
func (s *Service) lineItems(lines []Line) []stripex.LineItem {
	out := make([]stripex.LineItem, 0, len(lines))
	for _, line := range lines {
		item := stripex.LineItem{Quantity: line.Quantity}
		switch {
		case line.StripePriceID != "":
			item.PriceID = line.StripePriceID
		case s.TestPriceID != "":
			item.PriceID = s.TestPriceID
		default:
			item.Name = line.Name
			item.Description = line.Description
			item.Currency = s.Currency
			item.UnitAmountCents = line.UnitAmountCents
		}
		out = append(out, item)
	}
	return out
}
