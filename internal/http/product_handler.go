package http

import (
	"context"
	"net/http"
	"time"

	catalogdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/catalog/domain"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	ProductLookup
	GetAllProducts(ctx context.Context) ([]*catalogdomain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []*catalogdomain.Product `json:"products"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.GetAllProducts(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if products == nil {
		products = []*catalogdomain.Product{}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}
