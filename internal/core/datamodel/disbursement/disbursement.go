package disbursement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Schedule entry status values. Entries are never deleted; they end in
// completed, failed or cancelled.
const (
	StatusScheduled  = "scheduled"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ScheduleEntry is one planned outbound payment. scheduled_date is
// day-granular; the worker picks up every scheduled entry whose date is
// today or earlier, oldest first.
type ScheduleEntry struct {
	ID               int64           `gorm:"primaryKey"`
	TenantID         string          `gorm:"column:tenant_id;not null;index"`
	InvoiceReference string          `gorm:"column:invoice_reference;not null"`
	ScheduledDate    time.Time       `gorm:"column:scheduled_date;type:date;not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Status           string          `gorm:"column:status;default:scheduled"`
	PaymentMethod    string          `gorm:"column:payment_method;not null"`
	PaymentReference *string         `gorm:"column:payment_reference"`
	ProcessedAt      *time.Time      `gorm:"column:processed_at"`
	ErrorMessage     *string         `gorm:"column:error_message"`
	RetryCount       int             `gorm:"column:retry_count;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;default:now()"`
}

func (ScheduleEntry) TableName() string {
	return "disbursement_schedules"
}

// Invoice status values this engine is allowed to write. The rest of
// the invoice schema belongs to the supplier module.
const (
	InvoiceUnpaid  = "unpaid"
	InvoicePaid    = "paid"
	InvoicePending = "pending"
	InvoiceOverdue = "overdue"
)

type Invoice struct {
	ID            int64           `gorm:"primaryKey"`
	TenantID      string          `gorm:"column:tenant_id;not null;index"`
	Reference     string          `gorm:"column:reference;not null;uniqueIndex"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	PaymentStatus string          `gorm:"column:payment_status;default:unpaid"`
	Status        string          `gorm:"column:status;default:pending"`
	CreatedAt     time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Invoice) TableName() string {
	return "invoices"
}
