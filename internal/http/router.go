package http

import (
	"net/http"

	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(cartHandler *CartHandler, log *logger.Logger, gatherer prometheus.Gatherer) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware(log))
	r.Use(AccessLogMiddleware(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart/{userId}", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/add", cartHandler.AddItem)
		r.Post("/checkout-validate", cartHandler.ValidateCheckout)
		r.Put("/item/{productId}", cartHandler.UpdateQuantity)
		r.Delete("/item/{productId}", cartHandler.RemoveItem)
	})

	return otelhttp.NewHandler(r, "cart-http")
}
