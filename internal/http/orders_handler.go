package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	ordersdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	ordersrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ordersPageSize = 50

type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*ordersdomain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*ordersdomain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderItemDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderResponseDTO struct {
	ID              string         `json:"id"`
	ConfirmationRef string         `json:"confirmation_ref"`
	Method          string         `json:"method"`
	TotalAmount     string         `json:"total_amount"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       string         `json:"created_at"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersByUser(ctx, userID, ordersPageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, ordersrepo.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		// someone else's order looks exactly like a missing one
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

func convertOrder(o *ordersdomain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Color:       item.Color,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	return OrderResponseDTO{
		ID:              o.ID.String(),
		ConfirmationRef: o.ConfirmationRef,
		Method:          o.Method,
		TotalAmount:     o.TotalAmount.String(),
		Currency:        o.Currency,
		Status:          string(o.Status),
		Items:           items,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}
