package orders

import "time"

type Order struct {
	ID            int64         `json:"id"`
	OrderNumber   string        `json:"order_number"`
	UserID        *int64        `json:"user_id,omitempty"`
	SessionToken  string        `json:"-"`
	Email         string        `json:"email"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Phone         string        `json:"phone,omitempty"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   Status        `json:"order_status"`
	SubtotalCents int64         `json:"subtotal_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	Items         []Item        `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Item freezes the product at order time. Catalog edits after checkout must
// never rewrite an order's history, so name/slug/duration/price are copies,
// and ProductID is a weak reference.
type Item struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"order_id"`
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	ProductSlug     string `json:"product_slug,omitempty"`
	ProductDuration *int32 `json:"product_duration,omitempty"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	Quantity        int32  `json:"quantity"`
	TotalCents      int64  `json:"total_cents"`
	ProjectStageID  *int64 `json:"project_stage_id,omitempty"`
	BilledHours     int32  `json:"billed_hours"`
}

// Payment is the 1:1 provider-side record for an order. Only the webhook
// reconciler updates it after checkout creates it.
type Payment struct {
	ID                int64     `json:"id"`
	OrderID           int64     `json:"order_id"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	Provider          string    `json:"provider"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	ProviderSessionID string    `json:"provider_session_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

const (
	PaymentRecordPending   = "pending"
	PaymentRecordCompleted = "completed"
	PaymentRecordFailed    = "failed"
	PaymentRecordCancelled = "cancelled"
)
