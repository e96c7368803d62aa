package cart

import (
	"errors"
	"time"

	"github.com/rozoom/shop-api/internal/catalog"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

var (
	ErrNotFound    = errors.New("cart item not found")
	ErrCartClosed  = errors.New("cart is closed")
	ErrBadQuantity = errors.New("quantity must be at least 1")
	ErrNoPrice     = errors.New("product has no usable price")
	ErrNoIdentity  = errors.New("cart identity is empty")
)

// Identity is the cart owner: an authenticated user id or a guest session
// token, never both.
type Identity struct {
	UserID       int64
	SessionToken string
}

func (id Identity) Valid() bool {
	return (id.UserID > 0) != (id.SessionToken != "")
}

type Cart struct {
	ID           int64      `json:"id"`
	UserID       *int64     `json:"user_id,omitempty"`
	SessionToken string     `json:"-"`
	Status       string     `json:"status"`
	Items        []Item     `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Item struct {
	ID             int64     `json:"id"`
	CartID         int64     `json:"cart_id"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name,omitempty"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (i Item) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// SubtotalCents is derived from line items every time; nothing stores it.
func (c *Cart) SubtotalCents() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.LineTotalCents()
	}
	return sum
}

func (c *Cart) Count() int32 {
	var n int32
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// SnapshotPrice picks the unit price captured at add time: sale price when
// present and positive, else the list price. A product priced at zero on
// both is refused unless allowZero is set, so a broken catalog row can
// never corrupt totals silently.
func SnapshotPrice(p catalog.Product, allowZero bool) (int64, error) {
	if p.SalePriceCents != nil && *p.SalePriceCents > 0 {
		return *p.SalePriceCents, nil
	}
	if p.PriceCents > 0 {
		return p.PriceCents, nil
	}
	if allowZero {
		return 0, nil
	}
	return 0, ErrNoPrice
}
