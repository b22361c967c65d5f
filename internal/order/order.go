package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
)

// RepositoryAPI is the persistence contract for the order ledger. Every
// mutator is a single conditional update so concurrent webhook
// deliveries race safely without application-level locking.
type RepositoryAPI interface {
	GetByReference(ctx context.Context, reference string) (*ordermodel.Order, error)
	// MarkPaidIfPending transitions pending to paid and appends the
	// completed transaction row in one database transaction. It returns
	// false with a nil error when the order was not pending anymore,
	// which callers treat as the idempotent no-op path.
	MarkPaidIfPending(ctx context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error)
	MarkFailedIfPending(ctx context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error)
	MarkRefundedIfPaid(ctx context.Context, orderID int64) (bool, error)
	TransactionsByReference(ctx context.Context, reference string) ([]*ordermodel.PaymentTransaction, error)
}

// ServiceAPI is the ledger surface the webhook handler and the refund
// endpoint consume. No other code path may mutate payment_status.
type ServiceAPI interface {
	GetByReference(ctx context.Context, reference string) (*ordermodel.Order, error)
	TransactionsByReference(ctx context.Context, reference string) ([]*ordermodel.PaymentTransaction, error)
	ConfirmPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error
	FailPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error
	RefundOrder(ctx context.Context, reference string) (*ordermodel.Order, error)
}

// NewOrderReference generates a gateway-correlatable reference in the
// AWK-<timestamp>-<random> form checkout uses.
func NewOrderReference() string {
	short := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("AWK-%d-%s", time.Now().Unix(), short)
}
