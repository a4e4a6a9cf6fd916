package reconcile

import (
	"context"
	"fmt"
	"time"

	"homecare-booking/logger"
	bookingModel "homecare-booking/models/booking"
	transactionModel "homecare-booking/models/transaction"
	"homecare-booking/services/bookingstate"
	"homecare-booking/types"

	"gorm.io/gorm"
)

// StatusFetcher is the slice of the payments adapter the sweep needs.
type StatusFetcher interface {
	FetchStatus(ref string) (bookingModel.PaymentStatus, int64, error)
}

// Job periodically repairs divergence between local state and the gateway's
// authoritative state, and expires abandoned bookings. Every write goes
// through the state machine's idempotent operations, so the sweep is safe to
// run arbitrarily often and concurrently with normal traffic.
type Job struct {
	DB       *gorm.DB
	State    *bookingstate.Service
	Payments StatusFetcher
	Interval time.Duration
}

func NewJob(db *gorm.DB, state *bookingstate.Service, fetcher StatusFetcher, interval time.Duration) *Job {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Job{DB: db, State: state, Payments: fetcher, Interval: interval}
}

// Run executes the sweep on a ticker until the context is cancelled.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	logger.Info(fmt.Sprintf("Reconciliation job started, interval %s", j.Interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciliation job stopped")
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one reconciliation pass: expire stale bookings, re-derive
// payment state from the gateway, backfill missing ledger rows.
func (j *Job) Sweep() {
	j.expireStale()
	j.reconcileGateway()
	j.backfillLedger()
}

// expireStale finds bookings stuck in payment_pending past the grace period
// and runs them through the expire transition. Bookings without a gateway
// ref expire without any gateway call; there is nothing to cancel.
func (j *Job) expireStale() {
	cutoff := time.Now().Add(-j.State.Grace)

	var refs []string
	err := j.DB.Model(&bookingModel.Booking{}).
		Where("status = ? AND created_at < ?", bookingModel.BookingStatusPaymentPending, cutoff).
		Pluck("reference", &refs).Error
	if err != nil {
		logger.Error("Failed to select stale bookings", err)
		return
	}

	for _, ref := range refs {
		if _, err := j.State.Expire(ref); err != nil {
			// A conflict means normal traffic got there first; that is the
			// correct resolution, not a failure.
			if types.KindOf(err) == types.ErrKindStateConflict {
				continue
			}
			logger.Error(fmt.Sprintf("Failed to expire booking %s", ref), err)
		}
	}

	if len(refs) > 0 {
		logger.Info(fmt.Sprintf("Expiry sweep processed %d stale bookings", len(refs)))
	}
}

// reconcileGateway re-fetches the authoritative status for bookings whose
// local payment state is still pending or authorized and re-applies the
// idempotent transitions as needed.
func (j *Job) reconcileGateway() {
	var bookings []bookingModel.Booking
	err := j.DB.
		Where("gateway_payment_ref IS NOT NULL AND payment_status IN ?", []bookingModel.PaymentStatus{
			bookingModel.PaymentStatusPending,
			bookingModel.PaymentStatusAuthorized,
		}).
		Order("updated_at ASC").
		Find(&bookings).Error
	if err != nil {
		logger.Error("Failed to select reconciliation candidates", err)
		return
	}

	for _, b := range bookings {
		gatewayRef := *b.GatewayPaymentRef
		remote, amount, err := j.Payments.FetchStatus(gatewayRef)
		if err != nil {
			logger.Warning(fmt.Sprintf("Gateway fetch failed for booking %s: %v", b.Reference, err))
			continue
		}
		if amount == 0 {
			amount = b.TotalAmount
		}

		switch remote {
		case bookingModel.PaymentStatusAuthorized:
			if b.PaymentStatus == bookingModel.PaymentStatusPending {
				j.apply(b.Reference, "authorization", func() error {
					_, err := j.State.RecordAuthorization(b.Reference, gatewayRef, amount)
					return err
				})
			}
		case bookingModel.PaymentStatusPaid:
			if b.PaymentStatus == bookingModel.PaymentStatusPending {
				j.apply(b.Reference, "authorization", func() error {
					_, err := j.State.RecordAuthorization(b.Reference, gatewayRef, amount)
					return err
				})
			}
			j.apply(b.Reference, "capture", func() error {
				_, err := j.State.RecordCapture(b.Reference, gatewayRef)
				return err
			})
		default:
			// failed or refunded at the gateway: nothing to converge here,
			// abandonment is the expiry sweep's concern.
		}
	}
}

// backfillLedger repairs bookings whose payment state records money but
// whose Transaction trail is missing a row, writing the ledger from gateway
// truth rather than local assumptions.
func (j *Job) backfillLedger() {
	var bookings []bookingModel.Booking
	err := j.DB.
		Where("gateway_payment_ref IS NOT NULL AND payment_status IN ?", []bookingModel.PaymentStatus{
			bookingModel.PaymentStatusAuthorized,
			bookingModel.PaymentStatusPaid,
		}).
		Find(&bookings).Error
	if err != nil {
		logger.Error("Failed to select backfill candidates", err)
		return
	}

	for _, b := range bookings {
		gatewayRef := *b.GatewayPaymentRef

		var count int64
		if err := j.DB.Model(&transactionModel.Transaction{}).
			Where("booking_id = ? AND gateway_payment_ref = ?", b.ID, gatewayRef).
			Count(&count).Error; err != nil {
			logger.Error("Failed to count ledger rows", err)
			continue
		}
		if count > 0 {
			continue
		}

		remote, amount, err := j.Payments.FetchStatus(gatewayRef)
		if err != nil {
			logger.Warning(fmt.Sprintf("Gateway fetch failed during backfill for booking %s: %v", b.Reference, err))
			continue
		}
		if amount == 0 {
			amount = b.TotalAmount
		}

		if remote == bookingModel.PaymentStatusAuthorized || remote == bookingModel.PaymentStatusPaid {
			if err := j.State.BackfillTransaction(b.ID, gatewayRef, amount,
				transactionModel.OperationAuthorization, transactionModel.StatusAuthorized); err != nil {
				logger.Error(fmt.Sprintf("Ledger backfill failed for booking %s", b.Reference), err)
				continue
			}
		}
		if remote == bookingModel.PaymentStatusPaid {
			if err := j.State.BackfillTransaction(b.ID, gatewayRef, amount,
				transactionModel.OperationCapture, transactionModel.StatusCompleted); err != nil {
				logger.Error(fmt.Sprintf("Capture backfill failed for booking %s", b.Reference), err)
				continue
			}
		}

		logger.Info(fmt.Sprintf("Backfilled ledger for booking %s from gateway truth", b.Reference))
	}
}

func (j *Job) apply(ref, what string, fn func() error) {
	if err := fn(); err != nil {
		if types.KindOf(err) == types.ErrKindStateConflict {
			return
		}
		logger.Error(fmt.Sprintf("Reconciliation %s failed for booking %s", what, ref), err)
	}
}
