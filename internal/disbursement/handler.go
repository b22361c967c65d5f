package disbursement

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/awakery/payments-engine/internal"
	"github.com/awakery/payments-engine/internal/transport"
)

// Handler exposes the disbursement run trigger to external schedulers.
// The route is service-token protected; the token's subject names the
// tenant unless the body overrides it explicitly.
type Handler struct {
	*transport.BaseHandler
	worker *Worker
	Logger *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, worker *Worker, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		worker:      worker,
		Logger:      logger,
	}
}

type runRequest struct {
	TenantID string `json:"tenant_id"`
}

// RunDisbursements handles POST /api/v1/disbursements/run
func (h *Handler) RunDisbursements(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("RunDisbursements: invalid request body", "error", err)
			h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
			return
		}
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = errors.TenantIDFromContext(r.Context())
	}
	if tenantID == "" {
		h.HandleError(w, errors.NewValidationError("tenant_id is required", errors.ErrCodeInvalidTenant))
		return
	}

	h.Logger.Info("RunDisbursements: starting run", "tenant_id", tenantID)

	summary := h.worker.Run(r.Context(), tenantID)

	h.WriteJSON(w, http.StatusOK, summary)
}
