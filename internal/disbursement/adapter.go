package disbursement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	dismodel "github.com/awakery/payments-engine/internal/core/datamodel/disbursement"
)

// Payment methods known to the engine.
const (
	MethodManual = "manual"
	MethodEFT    = "eft"
	MethodCard   = "card"
)

// Registry resolves the configured adapter for an entry's payment method.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(method string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[method] = adapter
}

func (r *Registry) Resolve(method string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[method]
	return adapter, ok
}

// ManualAdapter covers payment methods that require a human approval
// step outside this engine. It never succeeds and never retries; the
// entry surfaces to operators through the invoice's overdue status.
type ManualAdapter struct{}

func NewManualAdapter() *ManualAdapter {
	return &ManualAdapter{}
}

func (a *ManualAdapter) Submit(ctx context.Context, entry *dismodel.ScheduleEntry) (*PaymentResult, error) {
	return &PaymentResult{
		Success:   false,
		Error:     "manual payment method requires operator approval",
		Retryable: false,
	}, nil
}

// HTTPAdapter submits disbursements to an external processor's REST
// API. EFT and card processors both speak this shape; only the base
// URL and credentials differ per tenant configuration.
type HTTPAdapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	method  string
	logger  *slog.Logger
}

func NewHTTPAdapter(method, baseURL, apiKey string, logger *slog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		// No client-level timeout: the worker bounds each submission
		// with a per-adapter context deadline.
		client:  &http.Client{},
		baseURL: baseURL,
		apiKey:  apiKey,
		method:  method,
		logger:  logger,
	}
}

type processorRequest struct {
	InvoiceReference string `json:"invoice_reference"`
	Amount           string `json:"amount"`
	TenantID         string `json:"tenant_id"`
	Method           string `json:"method"`
}

type processorResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	} `json:"data"`
}

func (a *HTTPAdapter) Submit(ctx context.Context, entry *dismodel.ScheduleEntry) (*PaymentResult, error) {
	reqBody, err := json.Marshal(processorRequest{
		InvoiceReference: entry.InvoiceReference,
		Amount:           entry.Amount.StringFixed(2),
		TenantID:         entry.TenantID,
		Method:           a.method,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	url := fmt.Sprintf("%s/v1/disbursements", a.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("request creation error: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", a.apiKey)
	}

	a.logger.Info("submitting disbursement to processor",
		"url", url,
		"entry_id", entry.ID,
		"invoice_reference", entry.InvoiceReference,
		"amount", entry.Amount.String())

	resp, err := a.client.Do(httpReq)
	if err != nil {
		// Network failures and deadline hits are transient by contract.
		return &PaymentResult{
			Success:   false,
			Error:     err.Error(),
			Retryable: true,
		}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &PaymentResult{
			Success:   false,
			Error:     fmt.Sprintf("response read error: %v", err),
			Retryable: true,
		}, nil
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &PaymentResult{
			Success:   false,
			Error:     fmt.Sprintf("processor returned HTTP %d", resp.StatusCode),
			Retryable: true,
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		// 4xx means the processor rejected the payment itself.
		return &PaymentResult{
			Success:   false,
			Error:     fmt.Sprintf("processor rejected submission: HTTP %d: %s", resp.StatusCode, string(respBody)),
			Retryable: false,
		}, nil
	}

	var procResp processorResponse
	if err := json.Unmarshal(respBody, &procResp); err != nil {
		return &PaymentResult{
			Success:   false,
			Error:     fmt.Sprintf("response unmarshal error: %v", err),
			Retryable: true,
		}, nil
	}

	if procResp.Data.Status != "success" {
		return &PaymentResult{
			Success:   false,
			Error:     procResp.Data.Error,
			Retryable: false,
		}, nil
	}

	return &PaymentResult{
		Success:          true,
		PaymentReference: procResp.Data.ID,
	}, nil
}
