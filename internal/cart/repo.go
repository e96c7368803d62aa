package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const cartCols = `id, user_id, COALESCE(session_token, ''), status, created_at, updated_at`

func scanCart(row pgx.Row) (*Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.SessionToken, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreate resolves the single open cart for an identity, creating one
// when none exists. The partial unique indexes on carts make a racing
// double-create collapse onto one row, so the insert retries the lookup on
// conflict.
func (r *Repo) GetOrCreate(ctx context.Context, id Identity) (*Cart, error) {
	if !id.Valid() {
		return nil, ErrNoIdentity
	}
	c, err := r.findOpen(ctx, id)
	if err == nil {
		return c, r.loadItems(ctx, c)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var row pgx.Row
	if id.UserID > 0 {
		row = r.DB.QueryRow(ctx, `
			INSERT INTO carts (user_id, status) VALUES ($1, 'open')
			ON CONFLICT DO NOTHING
			RETURNING `+cartCols, id.UserID)
	} else {
		row = r.DB.QueryRow(ctx, `
			INSERT INTO carts (session_token, status) VALUES ($1, 'open')
			ON CONFLICT DO NOTHING
			RETURNING `+cartCols, id.SessionToken)
	}
	c, err = scanCart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// lost the race; the other request's cart is ours now
		if c, err = r.findOpen(ctx, id); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	c.Items = []Item{}
	return c, nil
}

func (r *Repo) findOpen(ctx context.Context, id Identity) (*Cart, error) {
	if id.UserID > 0 {
		return scanCart(r.DB.QueryRow(ctx,
			`SELECT `+cartCols+` FROM carts WHERE user_id = $1 AND status = 'open'`, id.UserID))
	}
	return scanCart(r.DB.QueryRow(ctx,
		`SELECT `+cartCols+` FROM carts WHERE session_token = $1 AND status = 'open'`, id.SessionToken))
}

func (r *Repo) loadItems(ctx context.Context, c *Cart) error {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, COALESCE(p.name, ''),
		       ci.quantity, ci.unit_price_cents, ci.created_at, ci.updated_at
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	c.Items = []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return err
		}
		c.Items = append(c.Items, it)
	}
	return rows.Err()
}

// AddItem upserts a line: re-adding the same product increments quantity
// instead of creating a second row.
func (r *Repo) AddItem(ctx context.Context, cartID, productID int64, quantity int32, unitPriceCents int64) error {
	if quantity < 1 {
		return ErrBadQuantity
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := requireOpen(ctx, tx, cartID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		cartID, productID, quantity, unitPriceCents)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateItem replaces a line's quantity; zero removes the line.
func (r *Repo) UpdateItem(ctx context.Context, cartID, itemID int64, quantity int32) error {
	if quantity < 0 {
		return ErrBadQuantity
	}
	if quantity == 0 {
		return r.RemoveItem(ctx, cartID, itemID)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE id = $2 AND cart_id = $1
		  AND EXISTS (SELECT 1 FROM carts WHERE id = $1 AND status = 'open')`,
		cartID, itemID, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	ct, err := r.DB.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`, cartID, itemID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear drops every line; the cart itself stays open.
func (r *Repo) Clear(ctx context.Context, cartID int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// Merge folds a guest cart into the user's cart in one transaction:
// matching products sum quantities, new products move over, and the guest
// cart is deleted. Either everything merges or both carts stay untouched.
func (r *Repo) Merge(ctx context.Context, guestToken string, userID int64) error {
	if guestToken == "" || userID <= 0 {
		return ErrNoIdentity
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var guestID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM carts WHERE session_token = $1 AND status = 'open' FOR UPDATE`,
		guestToken).Scan(&guestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // nothing to merge
	}
	if err != nil {
		return err
	}

	userCart, err := r.ensureOpenTx(ctx, tx, userID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price_cents)
		SELECT $2, product_id, quantity, unit_price_cents
		FROM cart_items WHERE cart_id = $1
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		guestID, userCart)
	if err != nil {
		return err
	}
	// cascade removes the guest lines
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, guestID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) ensureOpenTx(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM carts WHERE user_id = $1 AND status = 'open' FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			`INSERT INTO carts (user_id, status) VALUES ($1, 'open') RETURNING id`, userID).Scan(&id)
	}
	return id, err
}

func requireOpen(ctx context.Context, tx pgx.Tx, cartID int64) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if status != StatusOpen {
		return ErrCartClosed
	}
	return nil
}
