//go:build integration

package cart

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rozoom/shop-api/internal/bootstrap"
	"github.com/rozoom/shop-api/internal/postgres"
)

// The integration tests run against a disposable set of schemas so they
// never touch development data. Enable with:
//
//	DATABASE_URL=postgres://... go test -tags integration ./internal/cart/
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

func seedProduct(t *testing.T, pool *pgxpool.Pool, name, slug string, priceCents int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (name, slug, price_cents) VALUES ($1, $2, $3) RETURNING id`,
		name, slug, priceCents).Scan(&id)
	if err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return id
}

func seedUser(t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&id)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

func TestGetOrCreateReusesOpenCart(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	id := Identity{SessionToken: "it-reuse"}
	first, err := repo.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	second, err := repo.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("open cart not reused: %d then %d", first.ID, second.ID)
	}

	var open int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM carts WHERE session_token = $1 AND status = 'open'`,
		id.SessionToken).Scan(&open)
	if err != nil {
		t.Fatalf("count carts: %v", err)
	}
	if open != 1 {
		t.Fatalf("open carts = %d, want 1", open)
	}
}

func TestAddItemUpsertsQuantity(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	product := seedProduct(t, pool, "Audit", "audit", 15000)
	c, err := repo.GetOrCreate(ctx, Identity{SessionToken: "it-upsert"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if err := repo.AddItem(ctx, c.ID, product, 2, 15000); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := repo.AddItem(ctx, c.ID, product, 3, 15000); err != nil {
		t.Fatalf("second add: %v", err)
	}

	c, err = repo.GetOrCreate(ctx, Identity{SessionToken: "it-upsert"})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("items = %d, want a single merged line", len(c.Items))
	}
	if c.Items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", c.Items[0].Quantity)
	}
}

func TestMergeCombinesGuestAndUserCarts(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	a := seedProduct(t, pool, "Audit", "audit", 15000)
	b := seedProduct(t, pool, "Consult", "consult", 9000)
	c := seedProduct(t, pool, "Retainer", "retainer", 50000)
	userID := seedUser(t, pool, "merge@example.com")

	guest, err := repo.GetOrCreate(ctx, Identity{SessionToken: "it-merge"})
	if err != nil {
		t.Fatalf("guest cart: %v", err)
	}
	for _, add := range []struct {
		product int64
		qty     int32
	}{{a, 2}, {b, 1}} {
		if err := repo.AddItem(ctx, guest.ID, add.product, add.qty, 100); err != nil {
			t.Fatalf("guest add: %v", err)
		}
	}

	user, err := repo.GetOrCreate(ctx, Identity{UserID: userID})
	if err != nil {
		t.Fatalf("user cart: %v", err)
	}
	for _, add := range []struct {
		product int64
		qty     int32
	}{{a, 1}, {c, 3}} {
		if err := repo.AddItem(ctx, user.ID, add.product, add.qty, 100); err != nil {
			t.Fatalf("user add: %v", err)
		}
	}

	if err := repo.Merge(ctx, "it-merge", userID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged, err := repo.GetOrCreate(ctx, Identity{UserID: userID})
	if err != nil {
		t.Fatalf("reload user cart: %v", err)
	}
	got := map[int64]int32{}
	for _, it := range merged.Items {
		got[it.ProductID] = it.Quantity
	}
	want := map[int64]int32{a: 3, b: 1, c: 3}
	for product, qty := range want {
		if got[product] != qty {
			t.Fatalf("product %d quantity = %d, want %d (cart %v)", product, got[product], qty, got)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("merged cart has %d lines, want %d", len(got), len(want))
	}

	var guestCarts int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM carts WHERE session_token = $1`, "it-merge").Scan(&guestCarts)
	if err != nil {
		t.Fatalf("count guest carts: %v", err)
	}
	if guestCarts != 0 {
		t.Fatalf("guest cart survived the merge")
	}
}

func TestMergeWithoutGuestCartIsNoop(t *testing.T) {
	pool := setupPool(t)
	repo := &Repo{DB: pool}
	ctx := context.Background()

	userID := seedUser(t, pool, "noop@example.com")
	if err := repo.Merge(ctx, "never-seen", userID); err != nil {
		t.Fatalf("merge with no guest cart: %v", err)
	}
}
