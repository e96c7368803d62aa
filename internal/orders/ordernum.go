package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewOrderNumber builds a human-readable order number: timestamp plus a
// 4-byte random suffix. Collisions are negligible within one second; the
// unique index on orders.order_number is the safety net.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102150405"), hex.EncodeToString(suffix))
}
