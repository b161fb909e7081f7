package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusworks/campusworks-backend/api/controllers"
	webhookcontrollers "github.com/campusworks/campusworks-backend/api/controllers/webhooks"
	"github.com/campusworks/campusworks-backend/api/middleware"
	"github.com/campusworks/campusworks-backend/internal/listings"
	"github.com/campusworks/campusworks-backend/internal/orders"
	stripewebhook "github.com/campusworks/campusworks-backend/internal/webhooks/stripe"
	"github.com/campusworks/campusworks-backend/pkg/config"
	"github.com/campusworks/campusworks-backend/pkg/db"
	"github.com/campusworks/campusworks-backend/pkg/logger"
	"github.com/campusworks/campusworks-backend/pkg/metrics"
	"github.com/campusworks/campusworks-backend/pkg/redis"
	"github.com/campusworks/campusworks-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc *orders.Service,
	listingsSvc *listings.Service,
	stripeClient *stripe.Client,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(ordersSvc, stripeClient, stripeWebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Browsing listings needs no identity.
		r.Get("/listings", controllers.ListListings(listingsSvc, logg))
		r.Get("/listings/{listingId}", controllers.GetListing(listingsSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(logg))

			r.Post("/listings", controllers.CreateListing(listingsSvc, logg))
			r.Patch("/listings/{listingId}/active", controllers.SetListingActive(listingsSvc, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(ordersSvc, logg))
				r.Get("/", controllers.ListOrders(ordersSvc, logg))
				r.Get("/{orderId}", controllers.GetOrder(ordersSvc, logg))
				r.Post("/{orderId}/payment", controllers.InitiatePayment(ordersSvc, logg))
				r.Post("/{orderId}/payment/abandon", controllers.AbandonPayment(ordersSvc, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
				r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(ordersSvc, logg))
			})
		})
	})

	return r
}
