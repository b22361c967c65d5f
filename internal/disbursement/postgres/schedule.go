package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	dismodel "github.com/awakery/payments-engine/internal/core/datamodel/disbursement"
	dispkg "github.com/awakery/payments-engine/internal/disbursement"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) dispkg.ScheduleStore {
	return &ScheduleRepository{
		db: db,
	}
}

// DueToday returns every scheduled entry due on or before today for the
// tenant, oldest scheduled_date first so the longest-standing
// obligations are settled before newer ones.
func (r *ScheduleRepository) DueToday(ctx context.Context, tenantID string, today time.Time) ([]*dismodel.ScheduleEntry, error) {
	var entries []*dismodel.ScheduleEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND scheduled_date <= ?", tenantID, dismodel.StatusScheduled, today).
		Order("scheduled_date ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*dismodel.ScheduleEntry, error) {
	var entry dismodel.ScheduleEntry
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkProcessing claims the entry for this run. The status guard in the
// WHERE clause means a second concurrent run affects zero rows and
// reports claimed=false instead of double-paying.
func (r *ScheduleRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&dismodel.ScheduleEntry{}).
		Where("id = ? AND status = ?", id, dismodel.StatusScheduled).
		Updates(map[string]interface{}{
			"status":     dismodel.StatusProcessing,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ScheduleRepository) MarkCompleted(ctx context.Context, id int64, paymentReference string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&dismodel.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            dismodel.StatusCompleted,
			"payment_reference": paymentReference,
			"processed_at":      now,
			"error_message":     nil,
			"updated_at":        now,
		}).Error
}

// Reschedule reverts a retryable failure to scheduled for nextDate. The
// retry_count increment happens in the same statement so there is no
// read-then-write window.
func (r *ScheduleRepository) Reschedule(ctx context.Context, id int64, errorMessage string, nextDate time.Time) error {
	return r.db.WithContext(ctx).Model(&dismodel.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         dismodel.StatusScheduled,
			"scheduled_date": nextDate,
			"error_message":  errorMessage,
			"retry_count":    gorm.Expr("retry_count + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *ScheduleRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&dismodel.ScheduleEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        dismodel.StatusFailed,
			"error_message": errorMessage,
			"processed_at":  now,
			"updated_at":    now,
		}).Error
}

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) dispkg.InvoiceStore {
	return &InvoiceRepository{
		db: db,
	}
}

func (r *InvoiceRepository) MarkPaid(ctx context.Context, invoiceReference string) error {
	return r.db.WithContext(ctx).Model(&dismodel.Invoice{}).
		Where("reference = ?", invoiceReference).
		Updates(map[string]interface{}{
			"payment_status": dismodel.InvoicePaid,
			"status":         dismodel.InvoicePaid,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *InvoiceRepository) MarkOverdue(ctx context.Context, invoiceReference string) error {
	return r.db.WithContext(ctx).Model(&dismodel.Invoice{}).
		Where("reference = ?", invoiceReference).
		Updates(map[string]interface{}{
			"payment_status": dismodel.InvoiceUnpaid,
			"status":         dismodel.InvoiceOverdue,
			"updated_at":     time.Now().UTC(),
		}).Error
}
