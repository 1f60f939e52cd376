package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Products *ProductHandler
	Orders   *OrdersHandler
	Metrics  http.Handler
	Log      *zap.Logger

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the storefront API under /api/v1 together with /health
// and /metrics, and wraps everything in an otel server span.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(SessionMiddleware)
	r.Use(IdentityMiddleware)
	r.Use(RequestLogger(cfg.Log))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Products.List)
			r.Get("/{product_id}", cfg.Products.Get)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{line_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{line_id}", cfg.Cart.RemoveItem)
			r.Post("/open", cfg.Cart.OpenDrawer)
			r.Post("/close", cfg.Cart.CloseDrawer)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", cfg.Orders.ListOrders)
			r.Get("/{order_id}", cfg.Orders.GetOrder)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.Enter)
			r.Get("/", cfg.Checkout.GetView)
			r.Delete("/", cfg.Checkout.Abandon)
			r.Put("/fields", cfg.Checkout.SetFields)
			r.Get("/methods", cfg.Checkout.Methods)
			r.Put("/method", cfg.Checkout.SelectMethod)
			r.Post("/pay", cfg.Checkout.Pay)
			r.Post("/wallets/{prompt_id}/callback", cfg.Checkout.WalletCallback)
			r.Get("/receipt", cfg.Checkout.Receipt)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
