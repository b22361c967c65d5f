package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentConfirmed      = "payment.confirmed"
	EventTypePaymentFailed         = "payment.failed"
	EventTypeDisbursementCompleted = "disbursement.completed"
	EventTypeDisbursementFailed    = "disbursement.failed"
)

// PaymentConfirmedEvent is published exactly once per order, on the
// winning pending to paid transition. Duplicate webhook deliveries do not
// re-publish it.
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderReference       string          `json:"order_reference"`
	Gateway              string          `json:"gateway"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	Amount               decimal.Decimal `json:"amount"`
}

func NewPaymentConfirmedEvent(orderReference, gateway, gatewayTransactionID string, amount decimal.Decimal) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentConfirmed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_reference":        orderReference,
				"gateway":                gateway,
				"gateway_transaction_id": gatewayTransactionID,
				"amount":                 amount.String(),
			},
		},
		OrderReference:       orderReference,
		Gateway:              gateway,
		GatewayTransactionID: gatewayTransactionID,
		Amount:               amount,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	OrderReference string `json:"order_reference"`
	Gateway        string `json:"gateway"`
	Reason         string `json:"reason"`
}

func NewPaymentFailedEvent(orderReference, gateway, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_reference": orderReference,
				"gateway":         gateway,
				"reason":          reason,
			},
		},
		OrderReference: orderReference,
		Gateway:        gateway,
		Reason:         reason,
	}
}

type DisbursementCompletedEvent struct {
	BaseEvent
	EntryID          int64           `json:"entry_id"`
	TenantID         string          `json:"tenant_id"`
	InvoiceReference string          `json:"invoice_reference"`
	PaymentReference string          `json:"payment_reference"`
	Amount           decimal.Decimal `json:"amount"`
}

func NewDisbursementCompletedEvent(entryID int64, tenantID, invoiceReference, paymentReference string, amount decimal.Decimal) *DisbursementCompletedEvent {
	return &DisbursementCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDisbursementCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"entry_id":          entryID,
				"tenant_id":         tenantID,
				"invoice_reference": invoiceReference,
				"payment_reference": paymentReference,
				"amount":            amount.String(),
			},
		},
		EntryID:          entryID,
		TenantID:         tenantID,
		InvoiceReference: invoiceReference,
		PaymentReference: paymentReference,
		Amount:           amount,
	}
}

// DisbursementFailedEvent is published only for terminal failures, after
// the retry ceiling is exhausted or a non-retryable rejection.
type DisbursementFailedEvent struct {
	BaseEvent
	EntryID          int64  `json:"entry_id"`
	TenantID         string `json:"tenant_id"`
	InvoiceReference string `json:"invoice_reference"`
	Reason           string `json:"reason"`
	RetryCount       int    `json:"retry_count"`
}

func NewDisbursementFailedEvent(entryID int64, tenantID, invoiceReference, reason string, retryCount int) *DisbursementFailedEvent {
	return &DisbursementFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDisbursementFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"entry_id":          entryID,
				"tenant_id":         tenantID,
				"invoice_reference": invoiceReference,
				"reason":            reason,
				"retry_count":       retryCount,
			},
		},
		EntryID:          entryID,
		TenantID:         tenantID,
		InvoiceReference: invoiceReference,
		Reason:           reason,
		RetryCount:       retryCount,
	}
}
