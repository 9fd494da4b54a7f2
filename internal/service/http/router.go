// Package httpsvc отдаёт HTML- и JSON-интерфейс к таблице orders.
package httpsvc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const requestTimeout = 15 * time.Second

// NewRouter собирает маршруты сервиса.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(h.logger), middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/orders", h.listPage)
	r.Get("/orders-raw", h.listPage)
	r.Post("/orders/{orderId}/status", h.updateStatus)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.listJSON)
		r.Post("/batch-status", h.batchStatus)
		r.Post("/{orderId}/status", h.updateStatus)
	})

	return r
}

// requestLogger пишет access-лог через logrus.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"request_id":  middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(started).Milliseconds(),
			}).Debug("HTTP request served")
		})
	}
}
