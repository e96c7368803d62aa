package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/config"
	"github.com/rozoom/shop-api/internal/orders"
	"github.com/rozoom/shop-api/internal/stripex"
)

var ErrMissingContact = errors.New("checkout: customer contact is incomplete")

// PGStore opens checkout transactions on the shop schema. Stock on
// counted products is always decremented so a later cancel or failure can
// restore it; StockEnforced additionally refuses orders that would take a
// product below zero.
type PGStore struct {
	DB       *pgxpool.Pool
	Stock    config.StockMode
	Currency string
}

type pgTx struct {
	tx       pgx.Tx
	order    orders.Order
	lines    []Line
	currency string
	done     bool
}

func (s *PGStore) BeginCheckout(ctx context.Context, in Input, orderNumber string) (Tx, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	rollback := func() { _ = tx.Rollback(ctx) }

	cartID, cartUserID, cartToken, err := lockOpenCart(ctx, tx, in.Identity)
	if err != nil {
		rollback()
		return nil, err
	}

	// Logged-in buyers may omit contact fields; their account fills the
	// gaps. Guests must submit everything.
	if in.Email == "" || in.FirstName == "" || in.LastName == "" {
		if cartUserID == nil {
			rollback()
			return nil, ErrMissingContact
		}
		var email, first, last string
		err := tx.QueryRow(ctx, `
			SELECT email, COALESCE(first_name, ''), COALESCE(last_name, '')
			FROM users WHERE id = $1`, *cartUserID).Scan(&email, &first, &last)
		if err != nil {
			rollback()
			return nil, ErrMissingContact
		}
		if in.Email == "" {
			in.Email = email
		}
		if in.FirstName == "" {
			in.FirstName = first
		}
		if in.LastName == "" {
			in.LastName = last
		}
		if in.Email == "" || in.FirstName == "" || in.LastName == "" {
			rollback()
			return nil, ErrMissingContact
		}
	}

	locked, lines, err := lockCartLines(ctx, tx, cartID)
	if err != nil {
		rollback()
		return nil, err
	}
	if len(locked) == 0 {
		rollback()
		return nil, ErrEmptyCart
	}

	var subtotal int64
	for _, li := range locked {
		subtotal += li.UnitPriceCents * int64(li.Quantity)
	}

	order := orders.Order{
		OrderNumber:   orderNumber,
		UserID:        cartUserID,
		SessionToken:  cartToken,
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		PaymentMethod: "stripe",
		PaymentStatus: orders.PaymentPending,
		OrderStatus:   orders.StatusPending,
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, session_token, email,
			first_name, last_name, phone, payment_method, payment_status,
			order_status, subtotal_cents, total_cents)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), 'stripe',
			'pending', 'pending', $8, $8)
		RETURNING id, created_at, updated_at`,
		orderNumber, cartUserID, cartToken, in.Email, in.FirstName, in.LastName,
		in.Phone, subtotal).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		rollback()
		return nil, err
	}

	for _, li := range locked {
		li.Item.OrderID = order.ID
		if err := s.takeStock(ctx, tx, li); err != nil {
			rollback()
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name,
				product_slug, product_duration, unit_price_cents, quantity, total_cents)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
			order.ID, li.ProductID, li.ProductName, li.ProductSlug,
			li.ProductDuration, li.UnitPriceCents, li.Quantity, li.TotalCents)
		if err != nil {
			rollback()
			return nil, err
		}
		order.Items = append(order.Items, li.Item)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE carts SET status = 'closed', updated_at = NOW() WHERE id = $1`,
		cartID); err != nil {
		rollback()
		return nil, err
	}

	return &pgTx{tx: tx, order: order, lines: lines, currency: s.Currency}, nil
}

func lockOpenCart(ctx context.Context, tx pgx.Tx, id cart.Identity) (int64, *int64, string, error) {
	var (
		cartID int64
		userID *int64
		token  string
		err    error
	)
	if id.UserID > 0 {
		err = tx.QueryRow(ctx, `
			SELECT id, user_id, COALESCE(session_token, '') FROM carts
			WHERE user_id = $1 AND status = 'open' FOR UPDATE`, id.UserID).
			Scan(&cartID, &userID, &token)
	} else {
		err = tx.QueryRow(ctx, `
			SELECT id, user_id, COALESCE(session_token, '') FROM carts
			WHERE session_token = $1 AND status = 'open' FOR UPDATE`, id.SessionToken).
			Scan(&cartID, &userID, &token)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, "", cart.ErrNotFound
	}
	if err != nil {
		return 0, nil, "", err
	}
	return cartID, userID, token, nil
}

type lockedItem struct {
	orders.Item
	stock *int32
}

// lockCartLines reads the cart rows with their products locked, so the
// stock math that follows cannot race a concurrent checkout.
func lockCartLines(ctx context.Context, tx pgx.Tx, cartID int64) ([]lockedItem, []Line, error) {
	rows, err := tx.Query(ctx, `
		SELECT ci.product_id, ci.quantity, ci.unit_price_cents,
		       p.name, COALESCE(p.slug, ''), p.duration_minutes,
		       COALESCE(p.short_description, ''), COALESCE(p.stripe_price_id, ''),
		       p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
		FOR UPDATE OF p`, cartID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		lines  []Line
		locked []lockedItem
	)
	for rows.Next() {
		var (
			li          lockedItem
			description string
			priceID     string
		)
		if err := rows.Scan(&li.ProductID, &li.Quantity, &li.UnitPriceCents,
			&li.ProductName, &li.ProductSlug, &li.ProductDuration,
			&description, &priceID, &li.stock); err != nil {
			return nil, nil, err
		}
		li.TotalCents = li.UnitPriceCents * int64(li.Quantity)
		locked = append(locked, li)
		lines = append(lines, Line{
			Name:            li.ProductName,
			Description:     description,
			UnitAmountCents: li.UnitPriceCents,
			Quantity:        li.Quantity,
			StripePriceID:   priceID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return locked, lines, nil
}

// takeStock decrements a counted product. NULL stock means uncounted and
// is left alone either way.
func (s *PGStore) takeStock(ctx context.Context, tx pgx.Tx, li lockedItem) error {
	if li.stock == nil {
		return nil
	}
	if s.Stock == config.StockEnforced && *li.stock < li.Quantity {
		return fmt.Errorf("%w: product %d has %d left, wanted %d",
			ErrInsufficientStock, li.ProductID, *li.stock, li.Quantity)
	}
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, in_stock = (stock - $2) > 0, updated_at = NOW()
		WHERE id = $1`, li.ProductID, li.Quantity)
	return err
}

func (t *pgTx) Order() orders.Order { return t.order }
func (t *pgTx) Lines() []Line       { return t.lines }

// Finalize records the provider session and commits everything the
// transaction staged.
func (t *pgTx) Finalize(ctx context.Context, session stripex.CheckoutSession) error {
	if t.done {
		return errors.New("checkout: transaction already finished")
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (order_id, amount_cents, currency, status,
			provider, provider_payment_id, provider_session_id)
		VALUES ($1, $2, $3, 'pending', 'stripe', NULLIF($4, ''), $5)`,
		t.order.ID, t.order.TotalCents, t.currency, session.PaymentIntent, session.ID)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `
		UPDATE orders SET payment_status = 'awaiting_payment', updated_at = NOW()
		WHERE id = $1`, t.order.ID); err != nil {
		return err
	}
	if err := t.tx.Commit(ctx); err != nil {
		return err
	}
	t.done = true
	return nil
}

func (t *pgTx) Abort(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback(ctx)
}
