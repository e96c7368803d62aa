package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, category_id, name, COALESCE(slug, ''), COALESCE(sku, ''),
	COALESCE(short_description, ''), price_cents, sale_price_cents, stock,
	in_stock, is_active, duration_minutes, COALESCE(stripe_price_id, ''),
	created_at, updated_at`

// Sort keys accepted by List. Anything else falls back to name_asc.
var sortClauses = map[string]string{
	"name_asc":   "name ASC",
	"name_desc":  "name DESC",
	"price_asc":  "price_cents ASC",
	"price_desc": "price_cents DESC",
	"newest":     "created_at DESC",
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.SKU,
		&p.ShortDescription, &p.PriceCents, &p.SalePriceCents, &p.Stock,
		&p.InStock, &p.IsActive, &p.DurationMinutes, &p.StripePriceID,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns purchasable products only: active with a non-empty slug.
func (r *Repo) List(ctx context.Context, categorySlug, sortBy string) ([]Product, error) {
	order, ok := sortClauses[sortBy]
	if !ok {
		order = sortClauses["name_asc"]
	}
	query := `SELECT ` + productCols + ` FROM products
		WHERE is_active AND slug IS NOT NULL AND slug <> ''`
	args := []any{}
	if categorySlug != "" {
		query += ` AND category_id = (SELECT id FROM categories WHERE slug = $1)`
		args = append(args, categorySlug)
	}
	query += ` ORDER BY ` + order

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) GetBySlug(ctx context.Context, slug string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE slug = $1 AND is_active`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Related returns up to limit other purchasable products from the same category.
func (r *Repo) Related(ctx context.Context, p Product, limit int) ([]Product, error) {
	if p.CategoryID == nil {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products
		WHERE category_id = $1 AND id <> $2
		  AND is_active AND slug IS NOT NULL AND slug <> ''
		LIMIT $3`, *p.CategoryID, p.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		rp, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *Repo) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, name, slug, is_active FROM categories WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
