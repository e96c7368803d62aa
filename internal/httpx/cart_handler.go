package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rozoom/shop-api/internal/cart"
	"github.com/rozoom/shop-api/internal/catalog"
	"github.com/rozoom/shop-api/internal/redisx"
)

type CartHandler struct {
	Carts          *cart.Repo
	Products       *catalog.Repo
	Redis          *redis.Client
	AllowZeroPrice bool
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type updateItemReq struct {
	ItemID   int64 `json:"item_id"`
	Quantity int32 `json:"quantity"`
}

type cartResp struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message,omitempty"`
	CartCount     int32      `json:"cart_count"`
	SubtotalCents int64      `json:"subtotal_cents"`
	Cart          *cart.Cart `json:"cart,omitempty"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.getCart)
	r.Post("/cart/add", h.addItem)
	r.Post("/cart/update", h.updateItem)
	r.Post("/cart/remove/{itemID}", h.removeItem)
	r.Post("/cart/clear", h.clear)
	r.Post("/cart/merge", h.merge)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	h.respond(ctx, w, http.StatusOK, id, c, "")
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.ProductID <= 0 || req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}

	p, err := h.Products.Get(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if !p.Purchasable() {
		writeError(w, http.StatusConflict, "product is not available")
		return
	}
	price, err := cart.SnapshotPrice(p, h.AllowZeroPrice)
	if errors.Is(err, cart.ErrNoPrice) {
		writeError(w, http.StatusConflict, "product has no price")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "price unavailable")
		return
	}

	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	if err := h.Carts.AddItem(ctx, c.ID, p.ID, req.Quantity, price); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.reload(ctx, w, id, c, fmt.Sprintf("%s added to cart", p.Name))
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "bad item id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	if err := h.Carts.UpdateItem(ctx, c.ID, req.ItemID, req.Quantity); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.reload(ctx, w, id, c, "cart updated")
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		writeError(w, http.StatusBadRequest, "bad item id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	if err := h.Carts.RemoveItem(ctx, c.ID, itemID); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.reload(ctx, w, id, c, "item removed")
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := identity(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no cart identity")
		return
	}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	if err := h.Carts.Clear(ctx, c.ID); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.reload(ctx, w, id, c, "cart cleared")
}

// merge folds the guest-cookie cart into the logged-in user's cart. Called
// right after login, so it needs both the user header and the cookie.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(UserIDHeader)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "merge needs a logged-in user")
		return
	}
	token := guestToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no guest cart to merge")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.Merge(ctx, token, userID); err != nil && !errors.Is(err, cart.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "merge failed")
		return
	}
	// the guest cookie is spent either way
	http.SetCookie(w, &http.Cookie{Name: CartCookie, Value: "", Path: "/", MaxAge: -1})

	id := cart.Identity{UserID: userID}
	c, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cart unavailable")
		return
	}
	h.respond(ctx, w, http.StatusOK, id, c, "carts merged")
}

func (h *CartHandler) reload(ctx context.Context, w http.ResponseWriter, id cart.Identity, c *cart.Cart, msg string) {
	fresh, err := h.Carts.GetOrCreate(ctx, id)
	if err != nil {
		fresh = c
	}
	h.respond(ctx, w, http.StatusOK, id, fresh, msg)
}

func (h *CartHandler) respond(ctx context.Context, w http.ResponseWriter, code int, id cart.Identity, c *cart.Cart, msg string) {
	if h.Redis != nil {
		kind, key := "sess", id.SessionToken
		if id.UserID > 0 {
			kind, key = "user", strconv.FormatInt(id.UserID, 10)
		}
		countKey := fmt.Sprintf(redisx.KeyCartCount, kind, key)
		_ = h.Redis.Set(ctx, countKey, c.Count(), redisx.TTLCartCount).Err()
	}
	writeJSON(w, code, cartResp{
		Success:       true,
		Message:       msg,
		CartCount:     c.Count(),
		SubtotalCents: c.SubtotalCents(),
		Cart:          c,
	})
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrCartClosed):
		writeError(w, http.StatusConflict, "cart is closed")
	case errors.Is(err, cart.ErrBadQuantity):
		writeError(w, http.StatusBadRequest, "bad quantity")
	case errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "cart operation failed")
	}
}
