package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"levitas/internal/metrics"
	"levitas/pkg/logger"
)

// NewRouter mounts the liquidation API under /api/v1
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/vault-stats", h.HandleVaultStats)
		r.Get("/liquidatable-positions", h.HandleLiquidatablePositions)
		r.Get("/user-positions/{address}", h.HandleUserPositions)
		r.Post("/liquidate-vault", h.HandleLiquidateVault)
		r.Post("/liquidate", h.HandleLiquidate)
		r.Get("/liquidations", h.HandleLiquidations)
		r.Get("/vault-liquidated/{tokenType}/{owner}", h.HandleVaultLiquidated)
		r.Post("/clear-liquidations", h.HandleClearLiquidations)
		r.Get("/liquidation-history/{address}", h.HandleHistory)
		r.Delete("/liquidation-history/{address}", h.HandleHistoryReset)
	})

	return r
}

// requestLogger logs each request and records HTTP metrics
func requestLogger(next http.Handler) http.Handler {
	log := logger.Get().With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, routePattern, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, routePattern).Observe(elapsed.Seconds())

		log.Debugw("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", elapsed,
		)
	})
}
