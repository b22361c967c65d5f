package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
	orderpkg "github.com/awakery/payments-engine/internal/order"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) orderpkg.RepositoryAPI {
	return &OrderRepository{
		db: db,
	}
}

func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*ordermodel.Order, error) {
	var o ordermodel.Order
	err := r.db.WithContext(ctx).Where("order_reference = ?", reference).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaidIfPending is the central conditional update: the WHERE clause
// on payment_status makes concurrent confirmations race safely. The
// first writer flips the row and appends the audit transaction; a
// second writer affects zero rows and reports updated=false.
func (r *OrderRepository) MarkPaidIfPending(ctx context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error) {
	var updated bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&ordermodel.Order{}).
			Where("id = ? AND payment_status = ?", orderID, ordermodel.StatusPending).
			Updates(map[string]interface{}{
				"payment_status":     ordermodel.StatusPaid,
				"payment_gateway_id": gatewayTransactionID,
				"paid_at":            now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		updated = true
		return tx.Create(&ordermodel.PaymentTransaction{
			OrderReference:       orderReference,
			Gateway:              gateway,
			GatewayTransactionID: gatewayTransactionID,
			Amount:               amount,
			Status:               ordermodel.TransactionCompleted,
			RecordedAt:           now,
		}).Error
	})

	return updated, err
}

func (r *OrderRepository) MarkFailedIfPending(ctx context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error) {
	var updated bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&ordermodel.Order{}).
			Where("id = ? AND payment_status = ?", orderID, ordermodel.StatusPending).
			Updates(map[string]interface{}{
				"payment_status":     ordermodel.StatusFailed,
				"payment_gateway_id": gatewayTransactionID,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		updated = true
		return tx.Create(&ordermodel.PaymentTransaction{
			OrderReference:       orderReference,
			Gateway:              gateway,
			GatewayTransactionID: gatewayTransactionID,
			Amount:               amount,
			Status:               ordermodel.TransactionFailed,
			RecordedAt:           now,
		}).Error
	})

	return updated, err
}

func (r *OrderRepository) MarkRefundedIfPaid(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&ordermodel.Order{}).
		Where("id = ? AND payment_status = ?", orderID, ordermodel.StatusPaid).
		Updates(map[string]interface{}{
			"payment_status": ordermodel.StatusRefunded,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) TransactionsByReference(ctx context.Context, reference string) ([]*ordermodel.PaymentTransaction, error) {
	var transactions []*ordermodel.PaymentTransaction
	err := r.db.WithContext(ctx).Where("order_reference = ?", reference).Order("recorded_at ASC").Find(&transactions).Error
	return transactions, err
}
