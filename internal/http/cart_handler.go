package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	cartservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/service"
	catalogdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/catalog/domain"
	"github.com/go-chi/chi/v5"
)

// CartStores hands out the store that owns a session's cart.
type CartStores interface {
	Store(ctx context.Context, sessionID string) (*cartservice.Store, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
}

type CartHandler struct {
	carts   CartStores
	catalog ProductLookup
	timeout time.Duration
}

func NewCartHandler(carts CartStores, catalog ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Cart   cartdomain.Cart    `json:"cart"`
	Notice *cartdomain.Notice `json:"notice,omitempty"`
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, *cartservice.Store, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	st, err := h.carts.Store(ctx, getSessionID(r.Context()))
	if err != nil {
		cancel()
		handleServiceError(w, err)
		return nil, nil, nil, false
	}
	return ctx, cancel, st, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	_, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, CartResponse{Cart: st.Cart()})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := st.Add(ctx, product.CartProduct(), req.Quantity, req.Size, req.Color)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CartResponse{Cart: res.Cart, Notice: res.Notice})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "line_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	res, err := st.SetQuantity(ctx, lineID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Cart: res.Cart, Notice: res.Notice})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "line_id")

	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	res, err := st.Remove(ctx, lineID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Cart: res.Cart, Notice: res.Notice})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	res := st.Clear(ctx)
	respondJSON(w, http.StatusOK, CartResponse{Cart: res.Cart, Notice: res.Notice})
}

func (h *CartHandler) OpenDrawer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	res := st.Open(ctx)
	respondJSON(w, http.StatusOK, CartResponse{Cart: res.Cart})
}

func (h *CartHandler) CloseDrawer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, st, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	res := st.Close(ctx)
	respondJSON(w, http.StatusOK, CartResponse{Cart: res.Cart})
}
