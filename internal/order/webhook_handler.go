package order

import (
	"log/slog"
	"net/http"
	"time"

	errors "github.com/awakery/payments-engine/internal"
	"github.com/awakery/payments-engine/internal/core/common/validation"
	"github.com/awakery/payments-engine/internal/gateway"
	"github.com/awakery/payments-engine/internal/transport"
)

// WebhookHandler receives asynchronous payment notifications from the
// gateway, verifies them and applies exactly-once payment transitions
// through the ledger service. The response code steers the gateway's
// redelivery: 2xx suppresses it, anything else triggers it.
type WebhookHandler struct {
	*transport.BaseHandler
	orderService   ServiceAPI
	passphrase     string
	handlerTimeout time.Duration
	logger         *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, orderService ServiceAPI, passphrase string, handlerTimeout time.Duration, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    baseHandler,
		orderService:   orderService,
		passphrase:     passphrase,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}
}

// validateTerminalNotification checks the fields a COMPLETE or FAILED
// notification must carry before it can transition an order.
func validateTerminalNotification(n *gateway.Notification) *errors.AppError {
	v := validation.NewValidator()
	v.Field("m_payment_id", n.OrderReference).Required()
	v.Field("pf_payment_id", n.GatewayTransactionID).Required()
	v.Field("amount_gross", n.AmountGross).PositiveAmount()
	return v.Validate()
}

type notifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleNotify handles POST /api/v1/payments/notify (form-encoded IPN body).
func (h *WebhookHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := errors.WithTimeout(r.Context(), h.handlerTimeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		h.logger.Error("notify: unparseable form body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid notification body", errors.ErrCodeValidationFailed))
		return
	}

	notification, err := gateway.ParseNotification(r.PostForm)
	if err != nil {
		h.logger.Error("notify: malformed notification", "error", err)
		h.HandleError(w, errors.NewValidationError("malformed notification", errors.ErrCodeValidationFailed))
		return
	}

	h.logger.Info("received payment notification",
		"order_reference", notification.OrderReference,
		"payment_status", notification.PaymentStatus,
		"gateway_transaction_id", notification.GatewayTransactionID,
		"amount_gross", notification.AmountGross.String())

	if !notification.VerifySignature(h.passphrase) {
		h.logger.Error("notify: signature verification failed",
			"order_reference", notification.OrderReference,
			"gateway_transaction_id", notification.GatewayTransactionID)
		h.HandleError(w, errors.ErrSignatureInvalid)
		return
	}

	if notification.IsComplete() || notification.IsFailed() {
		if appErr := validateTerminalNotification(notification); appErr != nil {
			h.logger.Error("notify: incomplete terminal notification",
				"error", appErr,
				"order_reference", notification.OrderReference)
			h.HandleError(w, appErr)
			return
		}
	}

	switch {
	case notification.IsComplete():
		err = h.orderService.ConfirmPayment(ctx, notification.OrderReference, notification.GatewayTransactionID, notification.AmountGross)
	case notification.IsFailed():
		err = h.orderService.FailPayment(ctx, notification.OrderReference, notification.GatewayTransactionID, notification.AmountGross)
	default:
		// Intermediate statuses (PENDING, CANCELLED, unknown) are
		// expected traffic, not failures. Acknowledge and drop.
		h.logger.Info("notify: non-terminal payment status acknowledged",
			"order_reference", notification.OrderReference,
			"payment_status", notification.PaymentStatus)
		h.WriteJSON(w, http.StatusOK, notifyResponse{
			Status:  "ignored",
			Message: "payment status does not require reconciliation",
		})
		return
	}

	if err != nil {
		h.logger.Error("notify: reconciliation failed",
			"error", err,
			"order_reference", notification.OrderReference,
			"payment_status", notification.PaymentStatus)
		h.HandleError(w, err)
		return
	}

	h.logger.Info("notify: notification processed",
		"order_reference", notification.OrderReference,
		"payment_status", notification.PaymentStatus)

	h.WriteJSON(w, http.StatusOK, notifyResponse{
		Status:  "ok",
		Message: "notification processed",
	})
}
