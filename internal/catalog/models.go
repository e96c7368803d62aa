package catalog

import "time"

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

// Product is the read model the cart and checkout work against. Stock is a
// pointer: nil means unlimited (the shop sells developer hours, not boxes).
type Product struct {
	ID               int64     `json:"id"`
	CategoryID       *int64    `json:"category_id,omitempty"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	SKU              string    `json:"sku,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	PriceCents       int64     `json:"price_cents"`
	SalePriceCents   *int64    `json:"sale_price_cents,omitempty"`
	Stock            *int32    `json:"stock,omitempty"`
	InStock          bool      `json:"in_stock"`
	IsActive         bool      `json:"is_active"`
	DurationMinutes  *int32    `json:"duration_minutes,omitempty"`
	StripePriceID    string    `json:"stripe_price_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Purchasable mirrors the catalog listing invariant: active and carrying a
// real slug. Products that fail this never reach a cart.
func (p Product) Purchasable() bool {
	return p.IsActive && p.Slug != ""
}
