package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts every storefront route behind the shared middleware stack.
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", h.ListCatalog)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)
			r.Use(HeaderAuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddItem)
				r.Put("/items/{type}/{id}", h.UpdateQuantity)
				r.Delete("/items/{type}/{id}", h.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Post("/summary", h.LoadSummary)
				r.Put("/payment-method", h.SelectPaymentMethod)
				r.Post("/pay", h.Pay)
				r.Post("/reset", h.ResetCheckout)
			})

			r.Get("/orders", h.ListOrders)
			r.Post("/requests", h.SubmitRequest)
			r.Get("/notifications", h.Notifications)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
