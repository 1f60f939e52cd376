package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	cartservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/service"
	catalogrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/catalog/repository"
	checkoutdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	checkoutservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/service"
	ordersrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/sandbox"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storefront struct {
	handler http.Handler
	orders  *ordersrepo.MemoryRepository
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()
	log := zap.NewNop()

	catalog, err := catalogrepo.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, catalog.RunMigrations())
	t.Cleanup(func() { _ = catalog.Close() })

	psp := httptest.NewServer(sandbox.NewServer(sandbox.TokenDecider{}, log).Routes())
	t.Cleanup(psp.Close)

	m := metrics.New(prometheus.NewRegistry())
	client := provider.NewClient(psp.URL, 5*time.Second, circuitbreaker.DefaultSettings("provider"), log)
	registry := adapter.NewDefaultRegistry(client, log)
	orders := ordersrepo.NewMemoryRepository()
	carts := cartservice.NewCartService(cache.NewMemorySlot(), log, cartservice.WithMetrics(m))
	checkout := checkoutservice.NewCheckoutService(carts, registry, reconciler.New(orders, log), log,
		checkoutservice.WithMetrics(m))

	return &storefront{
		handler: NewRouter(RouterConfig{
			Cart:           NewCartHandler(carts, catalog, 5*time.Second),
			Checkout:       NewCheckoutHandler(checkout, 5*time.Second, 5*time.Second),
			Products:       NewProductHandler(catalog, 5*time.Second),
			Orders:         NewOrdersHandler(orders, 5*time.Second),
			Metrics:        m.Handler(),
			Log:            log,
			RequestTimeout: 30 * time.Second,
		}),
		orders: orders,
	}
}

func (s *storefront) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload strings.Builder
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := newRequest(method, path, "shopper-1", strings.NewReader(payload.String()))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return serve(s.handler, req)
}

func checkoutFields() checkoutdomain.Fields {
	return checkoutdomain.Fields{
		Contact:  checkoutdomain.Contact{Email: "ada@example.com", FullName: "Ada Lovelace", Phone: "+237600000000"},
		Shipping: checkoutdomain.Shipping{Line1: "1 Main St", City: "Douala", PostalCode: "0000", Country: "CM"},
	}
}

func TestRouter_Health(t *testing.T) {
	s := newStorefront(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRouter_Products(t *testing.T) {
	s := newStorefront(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProductsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Products, 5)

	rec = s.do(t, http.MethodGet, "/api/v1/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_TransferCheckout(t *testing.T) {
	s := newStorefront(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: "wool-beanie", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	// anonymous shoppers are asked to sign in and keep their cart
	rec = s.do(t, http.MethodPost, "/api/v1/checkout/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/checkout/fields", "u1", checkoutFields())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/checkout/method", "u1", SelectMethodRequestDTO{Method: "local_transfer"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/pay", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view checkoutservice.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, checkoutdomain.StateCompleted, view.State)

	rec = s.do(t, http.MethodGet, "/api/v1/checkout/receipt", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var receipt ReceiptResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&receipt))
	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, receipt.OrderID, receipt.DisplayRef)
	assert.True(t, strings.HasPrefix(receipt.ConfirmationRef, "trf"))
	assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(44)), receipt.Amount.String())
	assert.Equal(t, 1, s.orders.OrderCount())

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+receipt.OrderID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order OrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&order))
	assert.Equal(t, receipt.ConfirmationRef, order.ConfirmationRef)
	assert.Equal(t, "local_transfer", order.Method)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+receipt.OrderID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/cart/", "", nil)
	assert.Empty(t, decodeCart(t, rec).Cart.Items)
}

func TestRouter_CardDeclineKeepsCart(t *testing.T) {
	s := newStorefront(t)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: "wool-beanie", Quantity: 1})
	s.do(t, http.MethodPost, "/api/v1/checkout/", "u1", nil)
	s.do(t, http.MethodPut, "/api/v1/checkout/fields", "u1", checkoutFields())
	s.do(t, http.MethodPut, "/api/v1/checkout/method", "u1", SelectMethodRequestDTO{Method: "card"})

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/pay", "u1",
		checkoutservice.PayRequest{PaymentMethodToken: "tok_decline_insufficient_funds"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	var view checkoutservice.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.NotNil(t, view.LastOutcome)
	assert.Equal(t, "Insufficient funds.", view.LastOutcome.Reason)
	require.NotNil(t, view.Attempt)
	declined := view.Attempt.Token

	rec = s.do(t, http.MethodGet, "/api/v1/cart/", "", nil)
	assert.Len(t, decodeCart(t, rec).Cart.Items, 1)

	// the retry reuses the attempt's token
	rec = s.do(t, http.MethodPost, "/api/v1/checkout/pay", "u1",
		checkoutservice.PayRequest{PaymentMethodToken: "tok_visa"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, checkoutdomain.StateCompleted, view.State)
	require.NotNil(t, view.Attempt)
	assert.Equal(t, declined, view.Attempt.Token)
}

func TestRouter_WalletPrompt(t *testing.T) {
	s := newStorefront(t)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: "wool-beanie", Quantity: 1})
	s.do(t, http.MethodPost, "/api/v1/checkout/", "u1", nil)
	s.do(t, http.MethodPut, "/api/v1/checkout/fields", "u1", checkoutFields())
	s.do(t, http.MethodPut, "/api/v1/checkout/method", "u1", SelectMethodRequestDTO{Method: "wallet_a"})

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/pay", "u1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var view checkoutservice.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.NotEmpty(t, view.PromptID)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/pay", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/wallets/"+view.PromptID+"/callback", "u1",
		WalletCallbackRequestDTO{Token: "wallet_tok"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/v1/checkout/", "u1", nil)
		var v checkoutservice.View
		return json.NewDecoder(rec.Body).Decode(&v) == nil && v.State == checkoutdomain.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_Metrics(t *testing.T) {
	s := newStorefront(t)
	s.do(t, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: "wool-beanie", Quantity: 1})

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart_mutations_total")
}
