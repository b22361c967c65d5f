package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment status values an order moves through. Transitions are
// pending to paid, pending to failed and paid to refunded only; a repeated
// paid to paid notification is a no-op, never an error.
const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

type Order struct {
	ID               int64           `gorm:"primaryKey"`
	OrderReference   string          `gorm:"column:order_reference;not null;uniqueIndex"`
	Total            decimal.Decimal `gorm:"column:total;type:decimal(12,2);not null"`
	PaymentStatus    string          `gorm:"column:payment_status;default:pending"`
	PaymentGatewayID *string         `gorm:"column:payment_gateway_id"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Order) TableName() string {
	return "orders"
}

// Transaction status values for the audit trail.
const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// PaymentTransaction is the append-only audit row written alongside a
// successful or failed reconciliation. At most one completed row exists
// per order; the unique index on gateway_transaction_id enforces that a
// redelivered notification cannot create a second one.
type PaymentTransaction struct {
	ID                   int64           `gorm:"primaryKey"`
	OrderReference       string          `gorm:"column:order_reference;not null;index"`
	Gateway              string          `gorm:"column:gateway;not null"`
	GatewayTransactionID string          `gorm:"column:gateway_transaction_id;not null;uniqueIndex"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Status               string          `gorm:"column:status;not null"`
	RecordedAt           time.Time       `gorm:"column:recorded_at;default:now()"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
