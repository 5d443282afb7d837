package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/sellerhub-backend/api/controllers"
	"github.com/angelmondragon/sellerhub-backend/api/middleware"
	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

// Lifecycle is the soft delete surface exposed over HTTP.
type Lifecycle interface {
	controllers.ProductLifecycle
	controllers.VariantLifecycle
}

// Deps groups everything the router hands to controllers.
type Deps struct {
	Ready       map[string]controllers.Pinger
	Idempotency redis.ResponseStore
	Metrics     prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Catalog     catalog.Service
	Lifecycle   Lifecycle
	Cart        cart.Service
	Checkout    checkout.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	gatherer := deps.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Catalog, logg))
			r.Post("/", controllers.ProductCreate(deps.Catalog, logg))
			r.Get("/{productId}", controllers.ProductGet(deps.Catalog, logg))
			r.Put("/{productId}", controllers.ProductUpdate(deps.Catalog, logg))
			r.Delete("/{productId}", controllers.ProductDelete(deps.Lifecycle, logg))
			r.Post("/{productId}/restore", controllers.ProductRestore(deps.Lifecycle, logg))
		})

		r.Route("/skus", func(r chi.Router) {
			r.Delete("/{skuId}", controllers.SKUDelete(deps.Lifecycle, logg))
			r.Post("/{skuId}/restore", controllers.SKURestore(deps.Lifecycle, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartOpen(deps.Cart, logg))
			r.Put("/{shopUniqueKey}", controllers.CartEdit(deps.Cart, logg))
			r.Post("/{shopUniqueKey}/validate", controllers.CartValidate(deps.Cart, logg))
			r.Post("/{shopUniqueKey}/checkout", controllers.CartCheckout(deps.Checkout, logg))
		})
	})

	return r
}
