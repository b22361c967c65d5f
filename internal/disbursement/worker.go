package disbursement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dismodel "github.com/awakery/payments-engine/internal/core/datamodel/disbursement"
	"github.com/awakery/payments-engine/internal/core/events"
)

// DefaultMaxRetries is the retry ceiling: the entry goes terminally
// failed on its third consecutive retryable failure, so it is only
// rescheduled twice.
const DefaultMaxRetries = 3

// Worker processes every due disbursement entry for one tenant in one
// invocation. It does not self-schedule; an external scheduler (cron,
// the worker CLI, or the trigger endpoint) invokes Run on its own
// cadence. Entries are processed sequentially in due-date order so the
// oldest obligations are paid first; runs for different tenants may
// proceed in parallel because every claim is a conditional update.
type Worker struct {
	store          ScheduleStore
	invoices       InvoiceStore
	registry       *Registry
	eventBus       *events.EventBus
	maxRetries     int
	adapterTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewWorker(store ScheduleStore, invoices InvoiceStore, registry *Registry, eventBus *events.EventBus, maxRetries int, adapterTimeout time.Duration, logger *slog.Logger) *Worker {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if adapterTimeout <= 0 {
		adapterTimeout = 30 * time.Second
	}
	return &Worker{
		store:          store,
		invoices:       invoices,
		registry:       registry,
		eventBus:       eventBus,
		maxRetries:     maxRetries,
		adapterTimeout: adapterTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// Run scans the schedule for payments due today or earlier and submits
// each one. A single entry's failure never aborts the rest of the run;
// errors are captured per entry and aggregated into the Summary.
func (w *Worker) Run(ctx context.Context, tenantID string) *Summary {
	summary := &Summary{TenantID: tenantID}

	today := truncateToDay(w.now().UTC())
	entries, err := w.store.DueToday(ctx, tenantID, today)
	if err != nil {
		w.logger.Error("failed to load due disbursements", "error", err, "tenant_id", tenantID)
		summary.Errors = append(summary.Errors, fmt.Sprintf("loading due entries: %v", err))
		return summary
	}

	w.logger.Info("disbursement run starting",
		"tenant_id", tenantID,
		"due_entries", len(entries),
		"as_of", today.Format("2006-01-02"))

	for _, entry := range entries {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("run cancelled: %v", ctx.Err()))
			break
		}

		if err := w.processEntry(ctx, entry, today); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("entry %d: %v", entry.ID, err))
		} else {
			summary.Successful++
		}
		summary.Processed++
	}

	w.logger.Info("disbursement run finished",
		"tenant_id", tenantID,
		"processed", summary.Processed,
		"successful", summary.Successful,
		"failed", summary.Failed)

	return summary
}

func (w *Worker) processEntry(ctx context.Context, entry *dismodel.ScheduleEntry, today time.Time) error {
	// Claim the entry. A concurrent run that already claimed it leaves
	// zero rows affected and this run skips it silently.
	claimed, err := w.store.MarkProcessing(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("claiming entry: %w", err)
	}
	if !claimed {
		w.logger.Info("entry already claimed by another run, skipping", "entry_id", entry.ID)
		return nil
	}

	adapter, ok := w.registry.Resolve(entry.PaymentMethod)
	if !ok {
		msg := fmt.Sprintf("no adapter configured for payment method %q", entry.PaymentMethod)
		w.failTerminally(ctx, entry, msg)
		return fmt.Errorf("%s", msg)
	}

	submitCtx, cancel := context.WithTimeout(ctx, w.adapterTimeout)
	result, err := adapter.Submit(submitCtx, entry)
	cancel()

	if err != nil {
		// Adapter errors, like timeouts, are treated as transient.
		result = &PaymentResult{
			Success:   false,
			Error:     err.Error(),
			Retryable: true,
		}
	}

	if result.Success {
		if err := w.store.MarkCompleted(ctx, entry.ID, result.PaymentReference); err != nil {
			return fmt.Errorf("recording completion: %w", err)
		}
		if err := w.invoices.MarkPaid(ctx, entry.InvoiceReference); err != nil {
			w.logger.Error("failed to cascade paid status to invoice",
				"error", err,
				"entry_id", entry.ID,
				"invoice_reference", entry.InvoiceReference)
		}

		w.logger.Info("disbursement completed",
			"entry_id", entry.ID,
			"invoice_reference", entry.InvoiceReference,
			"payment_reference", result.PaymentReference,
			"amount", entry.Amount.String())

		if w.eventBus != nil {
			event := events.NewDisbursementCompletedEvent(entry.ID, entry.TenantID, entry.InvoiceReference, result.PaymentReference, entry.Amount)
			if err := w.eventBus.Publish(ctx, event); err != nil {
				w.logger.Error("failed to publish disbursement completed event", "error", err)
			}
		}
		return nil
	}

	// This failure counts as an attempt; reschedule only while the
	// attempt about to be recorded stays below the ceiling.
	if result.Retryable && entry.RetryCount+1 < w.maxRetries {
		nextDate := today.AddDate(0, 0, 1)
		if err := w.store.Reschedule(ctx, entry.ID, result.Error, nextDate); err != nil {
			return fmt.Errorf("rescheduling after retryable failure: %w", err)
		}
		w.logger.Warn("disbursement failed, rescheduled",
			"entry_id", entry.ID,
			"invoice_reference", entry.InvoiceReference,
			"retry_count", entry.RetryCount+1,
			"next_date", nextDate.Format("2006-01-02"),
			"error", result.Error)
		return fmt.Errorf("retryable failure, rescheduled for %s: %s", nextDate.Format("2006-01-02"), result.Error)
	}

	w.failTerminally(ctx, entry, result.Error)
	return fmt.Errorf("terminal failure: %s", result.Error)
}

func (w *Worker) failTerminally(ctx context.Context, entry *dismodel.ScheduleEntry, reason string) {
	if err := w.store.MarkFailed(ctx, entry.ID, reason); err != nil {
		w.logger.Error("failed to mark entry failed", "error", err, "entry_id", entry.ID)
	}
	if err := w.invoices.MarkOverdue(ctx, entry.InvoiceReference); err != nil {
		w.logger.Error("failed to cascade overdue status to invoice",
			"error", err,
			"entry_id", entry.ID,
			"invoice_reference", entry.InvoiceReference)
	}

	w.logger.Error("disbursement terminally failed",
		"entry_id", entry.ID,
		"invoice_reference", entry.InvoiceReference,
		"retry_count", entry.RetryCount,
		"reason", reason)

	if w.eventBus != nil {
		event := events.NewDisbursementFailedEvent(entry.ID, entry.TenantID, entry.InvoiceReference, reason, entry.RetryCount)
		if err := w.eventBus.Publish(ctx, event); err != nil {
			w.logger.Error("failed to publish disbursement failed event", "error", err)
		}
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
