// Package server assembles the HTTP routes of the broker.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/uploadbroker/service/internal/config"
	"github.com/uploadbroker/service/internal/logger"
	"github.com/uploadbroker/service/internal/metrics"
	appMiddleware "github.com/uploadbroker/service/internal/middleware"
	"github.com/uploadbroker/service/internal/multipart"
	"github.com/uploadbroker/service/internal/presign"
	"github.com/uploadbroker/service/internal/ratelimit"
	"github.com/uploadbroker/service/internal/response"

	_ "github.com/uploadbroker/service/docs/swagger"
)

const corsMaxAge = 300

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps are the wired components the router serves.
type Deps struct {
	Config    *config.Config
	Presign   *presign.Handler
	Multipart *multipart.Handler
	Limiter   appMiddleware.Allower
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Redis     Pinger
}

// Rules returns the rate-limit rule for each route group. Issuing routes fail
// closed when the limiter store is down; download and abort fail open.
func Rules(cfg *config.Config) (upload, download, abort ratelimit.Rule) {
	base := ratelimit.Rule{Limit: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}

	upload = base
	upload.Name = "upload"

	download = base
	download.Name = "download"
	download.FailOpen = true

	abort = base
	abort.Name = "abort"
	abort.FailOpen = true
	return upload, download, abort
}

// NewRouter builds the chi router.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(appMiddleware.Recoverer)
	r.Use(appMiddleware.Metrics(d.Metrics))

	allowedHeaders := []string{"Content-Type"}
	if cfg.AuthEnabled() {
		allowedHeaders = append(allowedHeaders, "Authorization")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     allowedHeaders,
		ExposedHeaders:     []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:             corsMaxAge,
		OptionsPassthrough: true,
	}))
	r.Use(appMiddleware.AnswerOptions(appMiddleware.Preflight(cfg.CORSAllowedOrigins, cfg.AuthEnabled(), corsMaxAge)))
	r.Use(appMiddleware.Timeout(cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w)
	})

	r.Get("/health", health(d.Redis))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	limiter := appMiddleware.NewRateLimiter(d.Limiter, appMiddleware.ClientIdentifier(cfg.TrustedIPHeader), d.Metrics)
	upload, download, abort := Rules(cfg)

	r.Group(func(r chi.Router) {
		if cfg.AuthEnabled() {
			r.Use(appMiddleware.Authenticate(cfg.AuthJWTSecret, !cfg.AllowAnonymous))
		}

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(upload))
			r.Post("/s3/presign-put", d.Presign.PresignPut)
			r.Post("/s3/create", d.Multipart.Create)
			r.Post("/s3/sign", d.Multipart.SignPart)
			r.Post("/s3/complete", d.Multipart.Complete)
		})

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(download))
			r.Post("/s3/presign", d.Presign.PresignGet)
			r.Post("/s3/presign-get", d.Presign.PresignGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(abort))
			r.Post("/s3/abort", d.Multipart.Abort)
		})
	})

	return r
}

type healthResponse struct {
	Status string `json:"status" example:"ok"`
	Redis  string `json:"redis,omitempty" example:"ok"`
}

// health godoc
//
//	@Summary	Liveness and Redis reachability
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Failure	503	{object}	healthResponse
//	@Router		/health [get]
func health(redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redis == nil {
			response.OK(w, healthResponse{Status: "ok"})
			return
		}
		if err := redis.Ping(r.Context()); err != nil {
			logger.WithContext(r.Context()).Warn("redis ping failed", zap.Error(err))
			response.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Redis: "unreachable"})
			return
		}
		response.OK(w, healthResponse{Status: "ok", Redis: "ok"})
	}
}
