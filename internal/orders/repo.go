package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, user_id, COALESCE(session_token, ''),
	email, first_name, last_name,
	COALESCE(phone, ''), payment_method, payment_status, order_status,
	subtotal_cents, discount_cents, tax_cents, total_cents,
	COALESCE(coupon_code, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.SessionToken,
		&o.Email, &o.FirstName,
		&o.LastName, &o.Phone, &o.PaymentMethod, &o.PaymentStatus, &o.OrderStatus,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.TotalCents,
		&o.CouponCode, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, COALESCE(product_id, 0), product_name,
		       COALESCE(product_slug, ''), product_duration, unit_price_cents,
		       quantity, total_cents, project_stage_id, billed_hours
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = nil
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.ProductSlug, &it.ProductDuration, &it.UnitPriceCents,
			&it.Quantity, &it.TotalCents, &it.ProjectStageID, &it.BilledHours); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// ListByUser returns a user's order history, newest first. Callers treat a
// connectivity failure as an empty list, so items are not loaded here.
func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repo) GetPayment(ctx context.Context, orderID int64) (*Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, amount_cents, currency, status,
		       COALESCE(provider, ''), COALESCE(provider_payment_id, ''),
		       COALESCE(provider_session_id, ''), created_at
		FROM payments WHERE order_id = $1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Currency, &p.Status,
			&p.Provider, &p.ProviderPaymentID, &p.ProviderSessionID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPaid applies the provider's success confirmation: payment_status
// →paid, order_status→processing, and the payment-intent id lands on the
// payment row. The row lock plus transition table make redelivered events
// no-ops. A paid-after-failed retry re-takes the stock that the failure
// handler released, so the counter stays conserved across the
// fail-then-succeed sequence.
func (r *Repo) MarkPaid(ctx context.Context, orderID int64, paymentIntentID string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prior PaymentStatus
	err = tx.QueryRow(ctx,
		`SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&prior)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !CanTransitionPayment(prior, PaymentPaid) {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'paid', order_status = 'processing', updated_at = NOW()
		WHERE id = $1`, orderID)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments SET status = 'completed', provider_payment_id = $2
		WHERE order_id = $1`, orderID, paymentIntentID)
	if err != nil {
		return false, err
	}
	if prior == PaymentFailed {
		if err := takeStockTx(ctx, tx, orderID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// MarkPaymentFailed records a failed payment, located via the provider's
// session or payment-intent id, and releases the stock the checkout had
// decremented. Applied at most once per order.
func (r *Repo) MarkPaymentFailed(ctx context.Context, providerPaymentID string) (int64, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	err = tx.QueryRow(ctx, `
		SELECT order_id FROM payments
		WHERE provider_payment_id = $1 OR provider_session_id = $1`,
		providerPaymentID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND payment_status IN ('pending', 'awaiting_payment')`, orderID)
	if err != nil {
		return orderID, false, err
	}
	if ct.RowsAffected() == 0 {
		return orderID, false, nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = 'failed' WHERE order_id = $1`, orderID); err != nil {
		return orderID, false, err
	}
	if err := restoreStockTx(ctx, tx, orderID); err != nil {
		return orderID, false, err
	}
	return orderID, true, tx.Commit(ctx)
}

// Cancel reverses a pending order from the provider's cancel callback:
// order cancelled, stock restored, payment marked cancelled. Safe to call
// more than once; only the first call moves stock.
func (r *Repo) Cancel(ctx context.Context, orderID int64) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET order_status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND order_status = 'pending'`, orderID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = 'cancelled' WHERE order_id = $1`, orderID); err != nil {
		return false, err
	}
	if err := restoreStockTx(ctx, tx, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// restoreStockTx puts an order's quantities back on counted products;
// NULL stock means unlimited and stays untouched.
func restoreStockTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity,
		    in_stock = (p.stock + oi.quantity) > 0,
		    updated_at = NOW()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id AND p.stock IS NOT NULL`,
		orderID)
	return err
}

// takeStockTx is the inverse: it re-applies an order's decrement after a
// restore, used when a failed payment later completes.
func takeStockTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock - oi.quantity,
		    in_stock = (p.stock - oi.quantity) > 0,
		    updated_at = NOW()
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id AND p.stock IS NOT NULL`,
		orderID)
	return err
}
