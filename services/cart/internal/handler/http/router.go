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
	"github.com/utafrali/storefront/services/cart/internal/service"
)

const serviceName = "cart-service"

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

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	cartService *service.CartService,
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

	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Use(chimw.Timeout(timeout))
		r.Use(chimw.Compress(5))
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(cfg.Tokens))
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.CacheControl("no-store"))

		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.AddItem)
		r.Delete("/clear", cartHandler.ClearCart)
		r.Delete("/remove/{productId}", cartHandler.RemoveItem)
		r.Put("/{productId}", cartHandler.UpdateItemQuantity)
	})

	return r
}
