package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type ProductReader interface {
	Products(ctx context.Context) ([]catalog.Product, error)
	ProductByID(ctx context.Context, id int64) (catalog.Product, error)
}

type CatalogHandler struct {
	Products   ProductReader
	Categories catalog.CategorySource // biasanya *catalog.CategoryCache
	Log        *slog.Logger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.Products(ctx)
	if err != nil {
		h.Log.Error("list products", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, apiError{Code: "invalid_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.ProductByID(ctx, id)
	var nf *catalog.ProductNotFoundError
	if errors.As(err, &nf) {
		writeErr(w, http.StatusNotFound, apiError{Code: "product_not_found", ProductID: nf.ProductID})
		return
	}
	if err != nil {
		h.Log.Error("get product", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Categories.Categories(ctx)
	if err != nil {
		h.Log.Error("list categories", "err", err)
		writeErr(w, http.StatusInternalServerError, apiError{Code: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
