package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/config"
	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/http/handlers"
	"dinehall-order-engine/internal/middleware"
	"dinehall-order-engine/internal/storage"
	"dinehall-order-engine/internal/ws"
)

func NewRouter(eng *engine.Engine, logger *zap.Logger, cfg config.Config, archive *storage.Archive, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{Engine: eng, Logger: logger, Config: cfg, Archive: archive}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Staff terminals: order lifecycle, voids, payments.
	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Post("/orders", h.OrderCreate)
		r.Get("/orders/{orderId}", h.OrderGet)
		r.Post("/orders/{orderId}/send", h.OrderSend)
		r.Post("/orders/{orderId}/serve", h.OrderServe)
		r.Post("/orders/{orderId}/close", h.OrderClose)
		r.Post("/orders/{orderId}/lines/{lineId}/void", h.LineVoid)

		r.Post("/orders/{orderId}/payments", h.PaymentCapture)
		r.Get("/orders/{orderId}/payments", h.PaymentList)
		r.Get("/orders/{orderId}/balance", h.BalanceGet)
		r.With(middleware.RequireTier(authority.TierSupervisor)).
			Get("/orders/{orderId}/postings", h.OrderPostings)
		r.Get("/orders/{orderId}/receipt", h.ReceiptGet)
		r.Get("/orders/{orderId}/receipt-link", h.ReceiptLink)
	})

	// Kitchen stations: ticket acknowledgements.
	r.Route("/api/station", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Post("/tickets/{ticketId}/accept", h.TicketAccept)
		r.Post("/tickets/{ticketId}/ready", h.TicketReady)
		r.Post("/tickets/{ticketId}/recall", h.TicketRecall)
	})

	// Local terminals only: mints staff tokens without the identity service.
	if cfg.Env == "development" {
		r.Post("/api/dev/token", h.TokenMint)
	}

	if hub != nil {
		r.Get("/ws/kitchen-display", hub.HandleDisplay)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
