package disbursement

import (
	"context"
	"time"

	dismodel "github.com/awakery/payments-engine/internal/core/datamodel/disbursement"
)

// ScheduleStore is the persistence contract for planned outbound
// payments. MarkProcessing is conditional on the entry still being
// scheduled so two overlapping worker runs cannot double-pay.
type ScheduleStore interface {
	DueToday(ctx context.Context, tenantID string, today time.Time) ([]*dismodel.ScheduleEntry, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	MarkCompleted(ctx context.Context, id int64, paymentReference string) error
	// Reschedule reverts a retryable failure to scheduled for nextDate
	// and increments retry_count.
	Reschedule(ctx context.Context, id int64, errorMessage string, nextDate time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	GetByID(ctx context.Context, id int64) (*dismodel.ScheduleEntry, error)
}

// InvoiceStore cascades disbursement outcomes onto the linked invoice.
// It writes exactly payment_status and status, nothing else; the rest
// of the invoice schema belongs to the supplier module.
type InvoiceStore interface {
	MarkPaid(ctx context.Context, invoiceReference string) error
	MarkOverdue(ctx context.Context, invoiceReference string) error
}

// PaymentResult is an adapter's verdict on one submission. Retryable
// distinguishes transient failures (network, timeout) from permanent
// rejections (invalid destination account).
type PaymentResult struct {
	Success          bool   `json:"success"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Error            string `json:"error,omitempty"`
	Retryable        bool   `json:"retryable"`
}

// Adapter submits one disbursement to an external payment processor.
// Concrete processors are external collaborators; every implementation
// must satisfy this interface so the worker stays adapter-agnostic.
type Adapter interface {
	Submit(ctx context.Context, entry *dismodel.ScheduleEntry) (*PaymentResult, error)
}

// Summary is the structured outcome of one worker run, consumed by the
// invoking scheduler and operational dashboards.
type Summary struct {
	TenantID   string   `json:"tenant_id"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}
