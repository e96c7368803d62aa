package httpx

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/orders"
)

// CartCookie carries the guest cart token. Authenticated callers send
// X-User-ID instead (set by the auth proxy in front of this service).
const CartCookie = "cart_token"

const UserIDHeader = "X-User-ID"

// identity resolves the cart owner for this request. A logged-in user id
// wins over the guest cookie; a guest without a cookie gets one minted.
func identity(w http.ResponseWriter, r *http.Request) (cart.Identity, error) {
	if raw := r.Header.Get(UserIDHeader); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return cart.Identity{}, cart.ErrNoIdentity
		}
		return cart.Identity{UserID: userID}, nil
	}
	if c, err := r.Cookie(CartCookie); err == nil && c.Value != "" {
		return cart.Identity{SessionToken: c.Value}, nil
	}

	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return cart.Identity{SessionToken: token}, nil
}

// guestToken returns the cookie token even when the user header is set,
// which is what the merge endpoint needs.
func guestToken(r *http.Request) string {
	if c, err := r.Cookie(CartCookie); err == nil {
		return c.Value
	}
	return ""
}

// ownsOrder reports whether the caller placed the order. User orders
// require a matching X-User-ID; guest orders require the cart cookie the
// order was checked out under. Handlers answer 404 on a mismatch so order
// numbers cannot be probed for someone else's details.
func ownsOrder(r *http.Request, o *orders.Order) bool {
	if o.UserID != nil {
		callerID, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
		return err == nil && callerID == *o.UserID
	}
	return o.SessionToken != "" && guestToken(r) == o.SessionToken
}
