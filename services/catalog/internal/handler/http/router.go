package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/catalog/internal/service"
)

const serviceName = "catalog-service"

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	Tokens         middleware.TokenValidator
	CORSOrigins    []string
	PprofCIDRs     []string
	RateLimitRPS   float64
	RateLimitBurst int
	ErrorDetail    bool
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	productService *service.ProductService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(middleware.ErrorDetail(cfg.ErrorDetail))
	r.Use(middleware.RequestLogger(logger))

	healthHandler.Mount(r)
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	productHandler := NewProductHandler(productService, logger)
	reviewHandler := NewReviewHandler(productService, logger)
	authenticated := []func(http.Handler) http.Handler{
		middleware.Auth(cfg.Tokens),
		middleware.RequestLogger(logger),
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Use(chimw.Timeout(timeout))
		r.Use(chimw.Compress(5))

		r.Route("/products", func(r chi.Router) {
			r.With(middleware.CacheControl("no-cache")).Get("/", productHandler.ListProducts)
			r.With(middleware.CacheControl("no-cache")).Get("/{id}", productHandler.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(authenticated...)
				r.Post("/{id}/reviews", reviewHandler.CreateReview)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/", productHandler.CreateProduct)
					r.Post("/bulk-insert", productHandler.BulkInsertProducts)
					r.Put("/{id}", productHandler.UpdateProduct)
					r.Delete("/{id}", productHandler.DeleteProduct)
				})
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticated...)
			r.Use(middleware.RequireAdmin)
			r.Get("/stats", productHandler.Stats)
		})
	})

	return r
}
