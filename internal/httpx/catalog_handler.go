package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rozoom/shop-api/internal/catalog"
)

type CatalogHandler struct {
	Products *catalog.Repo
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Get("/products/{slug}", h.get)
	r.Get("/categories", h.categories)
}

// list degrades to an empty page when the database is away; the storefront
// renders "no products" instead of an error.
func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx, r.URL.Query().Get("category"), r.URL.Query().Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"products": []catalog.Product{}, "degraded": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	related, err := h.Products.Related(ctx, p, 4)
	if err != nil {
		related = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p, "related": related})
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Products.Categories(ctx)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"categories": []catalog.Category{}, "degraded": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cs})
}
