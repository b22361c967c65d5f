package order

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/awakery/payments-engine/internal"
	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
	"github.com/awakery/payments-engine/internal/transport"
)

// Handler exposes operator-facing ledger endpoints: order lookup and the
// single refund entry point. Both sit behind the service-token middleware.
type Handler struct {
	*transport.BaseHandler
	orderService ServiceAPI
	Logger       *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, orderService ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:  baseHandler,
		orderService: orderService,
		Logger:       logger,
	}
}

// GetOrder handles GET /api/v1/orders/{reference}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.HandleError(w, errors.NewValidationError("order reference is required", errors.ErrCodeInvalidReference))
		return
	}

	ord, err := h.orderService.GetByReference(r.Context(), reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	txns, err := h.orderService.TransactionsByReference(r.Context(), reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, orderDetailResponse{
		Order:        ord,
		Transactions: txns,
	})
}

type orderDetailResponse struct {
	*ordermodel.Order
	Transactions []*ordermodel.PaymentTransaction `json:"transactions"`
}

// RefundOrder handles POST /api/v1/orders/{reference}/refund
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.HandleError(w, errors.NewValidationError("order reference is required", errors.ErrCodeInvalidReference))
		return
	}

	ord, err := h.orderService.RefundOrder(r.Context(), reference)
	if err != nil {
		h.Logger.Error("RefundOrder: service error", "error", err, "order_reference", reference)
		h.HandleError(w, err)
		return
	}

	h.Logger.Info("RefundOrder: order refunded", "order_reference", reference)

	h.WriteJSON(w, http.StatusOK, ord)
}
