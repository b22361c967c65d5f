package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/awakery/payments-engine/internal"
	"github.com/awakery/payments-engine/internal/disbursement"
	"github.com/awakery/payments-engine/internal/order"
	"github.com/awakery/payments-engine/internal/transport/middleware"
	"github.com/awakery/payments-engine/internal/transport/swagger"
)

// RegisterAllRoutes wires the webhook, ledger and disbursement routes.
// The webhook route is open (its gateway signature is the credential);
// everything operator-facing sits behind the service-token middleware.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	securityCfg internal.SecurityConfig,
	webhookHandler *order.WebhookHandler,
	orderHandler *order.Handler,
	disbursementHandler *disbursement.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Post("/payments/notify", webhookHandler.HandleNotify)
		}

		// Operator routes require a service token.
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.ServiceTokenAuth(securityCfg.ServiceTokenSecret, securityCfg.ServiceTokenIssuer, logger))

			if orderHandler != nil {
				pr.Route("/orders", func(or chi.Router) {
					or.Get("/{reference}", orderHandler.GetOrder)
					or.Post("/{reference}/refund", orderHandler.RefundOrder)
				})
			}

			if disbursementHandler != nil {
				pr.Post("/disbursements/run", disbursementHandler.RunDisbursements)
			}
		})
	})
}
