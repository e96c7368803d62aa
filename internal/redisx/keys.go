package redisx

import "time"

const (
	// Webhook replay guard: webhook:stripe:{event_id} -> 1
	KeyWebhookEvent = "webhook:stripe:%s"

	// Cached order status for the storefront: order_status:{order_number}
	KeyOrderStatus = "order_status:%s"

	// Cached cart badge count: cart_count:{user|sess}:{id}
	KeyCartCount = "cart_count:%s:%s"

	// Notifier dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLWebhookEvent = 48 * time.Hour
	TTLStatusCache  = 5 * time.Minute
	TTLCartCount    = 10 * time.Minute
	TTLDedup        = 48 * time.Hour
)
