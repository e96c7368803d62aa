//go:build integration

package orders

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rozoom/shop-api/internal/bootstrap"
	"github.com/rozoom/shop-api/internal/postgres"
)

// Same disposable schemas as the cart integration tests. Enable with:
//
//	DATABASE_URL=postgres://... go test -tags integration ./internal/orders/
var testSchemas = bootstrap.Schemas{
	Users: "users_it", Shop: "shop_it", Clients: "clients_it", Projects: "projects_it",
}

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	boot, err := bootstrap.Open(dsn, testSchemas, false)
	if err != nil {
		t.Fatalf("bootstrap open: %v", err)
	}
	t.Cleanup(func() { _ = boot.Close() })
	if err := boot.Run(ctx); err != nil {
		t.Fatalf("bootstrap run: %v", err)
	}
	if err := boot.Reset(ctx); err != nil {
		t.Fatalf("bootstrap reset: %v", err)
	}

	pool, err := postgres.Connect(ctx, dsn, []string{
		testSchemas.Shop, testSchemas.Users, testSchemas.Clients, testSchemas.Projects,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// seedCheckedOutOrder writes the rows a finished checkout leaves behind:
// a counted product with qty already taken, an awaiting_payment order with
// its line, and the provider's payment row.
func seedCheckedOutOrder(t *testing.T, pool *pgxpool.Pool, tag string, initialStock, qty int32) (orderID, productID int64) {
	t.Helper()
	ctx := context.Background()

	err := pool.QueryRow(ctx, `
		INSERT INTO products (name, slug, price_cents, stock)
		VALUES ($1, $1, 10000, $2) RETURNING id`,
		"product-"+tag, initialStock-qty).Scan(&productID)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO orders (order_number, email, first_name, last_name,
			payment_status, subtotal_cents, total_cents)
		VALUES ($1, 'buyer@example.com', 'B', 'Uyer', 'awaiting_payment', $2, $2)
		RETURNING id`,
		"ORD-IT-"+tag, int64(qty)*10000).Scan(&orderID)
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name,
			unit_price_cents, quantity, total_cents)
		VALUES ($1, $2, $3, 10000, $4, $5)`,
		orderID, productID, "product-"+tag, qty, int64(qty)*10000)
	if err != nil {
		t.Fatalf("seed order item: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO payments (order_id, amount_cents, status, provider,
			provider_payment_id, provider_session_id)
		VALUES ($1, $2, 'pending', 'stripe', $3, $4)`,
		orderID, int64(qty)*10000, "pi_"+tag, "cs_"+tag)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return orderID, productID
}

func productStock(t *testing.T, pool *pgxpool.Pool, productID int64) int32 {
	t.Helper()
	var stock int32
	err := pool.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func TestMarkPaidAppliesOnce(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	orderID, _ := seedCheckedOutOrder(t, pool, "paidonce", 5, 2)

	applied, err := repo.MarkPaid(ctx, orderID, "pi_paidonce")
	if err != nil {
		t.Fatalf("first MarkPaid: %v", err)
	}
	if !applied {
		t.Fatal("first MarkPaid must apply")
	}

	applied, err = repo.MarkPaid(ctx, orderID, "pi_paidonce")
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if applied {
		t.Fatal("second MarkPaid must be a no-op")
	}

	o, err := repo.Get(ctx, orderID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if o.PaymentStatus != PaymentPaid || o.OrderStatus != StatusProcessing {
		t.Fatalf("order = %s/%s, want paid/processing", o.PaymentStatus, o.OrderStatus)
	}
	p, err := repo.GetPayment(ctx, orderID)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if p.Status != "completed" {
		t.Fatalf("payment status = %s, want completed", p.Status)
	}
}

func TestFailedThenPaidConservesStock(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	// 5 in stock, checkout took 2, so the row starts at 3.
	orderID, productID := seedCheckedOutOrder(t, pool, "retry", 5, 2)

	_, applied, err := repo.MarkPaymentFailed(ctx, "pi_retry")
	if err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if !applied {
		t.Fatal("failure must apply to an awaiting order")
	}
	if got := productStock(t, pool, productID); got != 5 {
		t.Fatalf("stock after failure = %d, want 5 restored", got)
	}

	applied, err = repo.MarkPaid(ctx, orderID, "pi_retry")
	if err != nil {
		t.Fatalf("MarkPaid after failure: %v", err)
	}
	if !applied {
		t.Fatal("a failed order must accept a later successful payment")
	}
	if got := productStock(t, pool, productID); got != 3 {
		t.Fatalf("stock after retry = %d, want 3 taken again", got)
	}
}

func TestMarkPaymentFailedResolvesSessionID(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	orderID, _ := seedCheckedOutOrder(t, pool, "bysession", 5, 1)

	gotID, applied, err := repo.MarkPaymentFailed(ctx, "cs_bysession")
	if err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if !applied || gotID != orderID {
		t.Fatalf("applied=%v order=%d, want applied to order %d", applied, gotID, orderID)
	}

	if _, _, err := repo.MarkPaymentFailed(ctx, "unknown_id"); err != ErrNotFound {
		t.Fatalf("unknown provider id: err = %v, want ErrNotFound", err)
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	orderID, productID := seedCheckedOutOrder(t, pool, "cancel", 5, 2)

	for i, wantApplied := range []bool{true, false} {
		applied, err := repo.Cancel(ctx, orderID)
		if err != nil {
			t.Fatalf("cancel %d: %v", i, err)
		}
		if applied != wantApplied {
			t.Fatalf("cancel %d applied = %v, want %v", i, applied, wantApplied)
		}
	}
	if got := productStock(t, pool, productID); got != 5 {
		t.Fatalf("stock after cancels = %d, want 5 restored exactly once", got)
	}
}
