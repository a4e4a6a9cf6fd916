package bookingstate

import (
	"fmt"
	"time"

	"homecare-booking/logger"
	bookingModel "homecare-booking/models/booking"
	transactionModel "homecare-booking/models/transaction"
	"homecare-booking/services/payments"
	"homecare-booking/types"
	bookingTypes "homecare-booking/types/booking"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultGracePeriod is how long a booking may sit in payment_pending before
// the reconciliation sweep expires it. Hours, not minutes: slow checkouts
// are normal.
const DefaultGracePeriod = 6 * time.Hour

// PaymentReleaser is the slice of the payments adapter the state machine
// needs for cancellation and expiry.
type PaymentReleaser interface {
	CancelOrRefund(ref string, amount *int64) (payments.ReleasePath, bookingModel.PaymentStatus, error)
}

// Service owns the canonical booking status and payment status. It is the
// single writer of truth for both; every transition is a single conditional
// row update so a crash mid-operation leaves the prior state intact.
type Service struct {
	DB       *gorm.DB
	Payments PaymentReleaser
	Grace    time.Duration
}

func NewService(db *gorm.DB, releaser PaymentReleaser, grace time.Duration) *Service {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Service{DB: db, Payments: releaser, Grace: grace}
}

// Create validates the intake and writes a booking in payment_pending. No
// payment and no dispatch are triggered here: partial failure after booking
// creation must never lose the booking itself.
func (s *Service) Create(req bookingTypes.BookingCreateRequest, createdBy string) (*bookingModel.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, types.NewValidationError(err.Error())
	}

	scheduledDate, _ := time.Parse("2006-01-02", req.ScheduledDate)

	var total int64
	items := make([]bookingModel.BookingItem, 0, len(req.Items))
	for _, item := range req.Items {
		total += item.Amount
		items = append(items, bookingModel.BookingItem{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}

	booking := bookingModel.Booking{
		Reference:      uuid.NewString(),
		Status:         bookingModel.BookingStatusPaymentPending,
		PaymentStatus:  bookingModel.PaymentStatusPending,
		DispatchState:  bookingModel.DispatchStateUnassigned,
		ScheduledDate:  scheduledDate,
		ScheduledStart: req.ScheduledStart,
		CustomerID:     req.CustomerID,
		Zip:            req.Zip,
		Address:        req.Address,
		TotalAmount:    total,
		CreatedBy:      createdBy,
	}
	if req.CustomerID == nil {
		booking.GuestName = &req.GuestName
		booking.GuestEmail = &req.GuestEmail
		booking.GuestPhone = &req.GuestPhone
		if req.GuestAddr != "" {
			booking.GuestAddr = &req.GuestAddr
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].BookingID = booking.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return s.writeEvent(tx, &booking, "created", "", createdBy)
	})
	if err != nil {
		logger.Error("Failed to create booking", err)
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s created", booking.Reference))
	booking.Items = items
	return &booking, nil
}

// AttachPaymentRef stores the gateway payment ref once a payment attempt has
// been initiated. Idempotent for the same ref.
func (s *Service) AttachPaymentRef(ref, gatewayRef string) (*bookingModel.Booking, error) {
	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}

	if booking.GatewayPaymentRef != nil {
		if *booking.GatewayPaymentRef == gatewayRef {
			return booking, nil
		}
		return nil, types.NewStateConflict("booking already has a different payment attempt")
	}
	if booking.Status != bookingModel.BookingStatusPaymentPending {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot start payment from status %s", booking.Status))
	}

	res := s.DB.Model(&bookingModel.Booking{}).
		Where("id = ? AND status = ? AND gateway_payment_ref IS NULL", booking.ID, bookingModel.BookingStatusPaymentPending).
		Update("gateway_payment_ref", gatewayRef)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, types.NewStateConflict("concurrent payment attempt won")
	}

	booking.GatewayPaymentRef = &gatewayRef
	return booking, nil
}

// RecordAuthorization applies a gateway authorization: payment_pending →
// confirmed, payment_status → authorized, plus an authorization ledger row.
// Idempotent per gateway ref: a duplicate callback observes the already
// confirmed state and no-ops without a second ledger row.
func (s *Service) RecordAuthorization(ref, gatewayRef string, amount int64) (*bookingModel.Booking, error) {
	if gatewayRef == "" {
		return nil, types.NewValidationError("gateway payment ref is required")
	}

	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery: already confirmed with the same ref.
	if booking.Status == bookingModel.BookingStatusConfirmed &&
		booking.GatewayPaymentRef != nil && *booking.GatewayPaymentRef == gatewayRef {
		return booking, nil
	}

	if booking.Status != bookingModel.BookingStatusPaymentPending {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot authorize from status %s", booking.Status))
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status = ?", booking.ID, bookingModel.BookingStatusPaymentPending).
			Updates(map[string]interface{}{
				"status":              bookingModel.BookingStatusConfirmed,
				"payment_status":      bookingModel.PaymentStatusAuthorized,
				"gateway_payment_ref": gatewayRef,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// The precondition moved underneath us. A concurrent duplicate
			// that already confirmed with this ref is a no-op.
			var current bookingModel.Booking
			if err := tx.First(&current, booking.ID).Error; err != nil {
				return err
			}
			if current.Status == bookingModel.BookingStatusConfirmed &&
				current.GatewayPaymentRef != nil && *current.GatewayPaymentRef == gatewayRef {
				return nil
			}
			return types.NewStateConflict(fmt.Sprintf("cannot authorize from status %s", current.Status))
		}

		if err := s.ensureLedgerRow(tx, booking.ID, gatewayRef, amount,
			transactionModel.OperationAuthorization, transactionModel.StatusAuthorized); err != nil {
			return err
		}

		booking.Status = bookingModel.BookingStatusConfirmed
		booking.PaymentStatus = bookingModel.PaymentStatusAuthorized
		booking.GatewayPaymentRef = &gatewayRef
		return s.writeEvent(tx, booking, "authorized", gatewayRef, "gateway")
	})
	if err != nil {
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s authorized (%s)", booking.Reference, gatewayRef))
	return booking, nil
}

// RecordCapture flips payment_status to paid for a matching authorized
// booking and writes a completed capture ledger row. Status moves to
// completed only if the service-delivery signal has already arrived. A
// booking that was never authorized fails with a state conflict and is left
// untouched.
func (s *Service) RecordCapture(ref, gatewayRef string) (*bookingModel.Booking, error) {
	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery: already paid with the same ref.
	if booking.PaymentStatus == bookingModel.PaymentStatusPaid &&
		booking.GatewayPaymentRef != nil && *booking.GatewayPaymentRef == gatewayRef {
		return booking, nil
	}

	if booking.PaymentStatus != bookingModel.PaymentStatusAuthorized ||
		booking.GatewayPaymentRef == nil || *booking.GatewayPaymentRef != gatewayRef {
		return nil, types.NewStateConflict("no matching authorized payment for capture")
	}

	// Capturing money for a booking that was never authorized is refused:
	// the ledger must hold the authorization row.
	var authCount int64
	if err := s.DB.Model(&transactionModel.Transaction{}).
		Where("booking_id = ? AND gateway_payment_ref = ? AND operation_type = ? AND status = ?",
			booking.ID, gatewayRef, transactionModel.OperationAuthorization, transactionModel.StatusAuthorized).
		Count(&authCount).Error; err != nil {
		return nil, err
	}
	if authCount == 0 {
		return nil, types.NewStateConflict("no authorized transaction on record for this payment")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"payment_status": bookingModel.PaymentStatusPaid,
		}
		if booking.ServiceDoneAt != nil {
			updates["status"] = bookingModel.BookingStatusCompleted
		}

		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND payment_status = ?", booking.ID, bookingModel.PaymentStatusAuthorized).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("payment state changed concurrently")
		}

		// Capture is never retried after success: at most one completed
		// capture row per gateway ref.
		if err := s.ensureLedgerRow(tx, booking.ID, gatewayRef, booking.TotalAmount,
			transactionModel.OperationCapture, transactionModel.StatusCompleted); err != nil {
			return err
		}

		booking.PaymentStatus = bookingModel.PaymentStatusPaid
		if booking.ServiceDoneAt != nil {
			booking.Status = bookingModel.BookingStatusCompleted
		}
		return s.writeEvent(tx, booking, "captured", gatewayRef, "gateway")
	})
	if err != nil {
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s captured (%s)", booking.Reference, gatewayRef))
	return booking, nil
}

// Cancel moves any non-terminal booking to cancelled. Money held at the
// gateway is released first; if the gateway call fails the booking keeps its
// prior state and the failure is surfaced. Cancellation is never recorded
// ahead of the money actually being released.
func (s *Service) Cancel(ref, reason, actor string) (*bookingModel.Booking, error) {
	if reason == "" {
		return nil, types.NewValidationError("cancel reason is required")
	}

	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanBeCancelled() {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot cancel from terminal status %s", booking.Status))
	}

	newPaymentStatus := booking.PaymentStatus
	var refunded bool
	if booking.PaymentStatus.HoldsMoney() && booking.GatewayPaymentRef != nil {
		path, _, err := s.Payments.CancelOrRefund(*booking.GatewayPaymentRef, nil)
		if err != nil {
			logger.Error(fmt.Sprintf("Gateway release failed for booking %s", booking.Reference), err)
			return nil, err
		}
		if path == payments.ReleasePathRefund {
			newPaymentStatus = bookingModel.PaymentStatusRefunded
			refunded = true
		} else {
			newPaymentStatus = bookingModel.PaymentStatusFailed
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status IN ?", booking.ID, nonTerminalStatuses()).
			Updates(map[string]interface{}{
				"status":         bookingModel.BookingStatusCancelled,
				"payment_status": newPaymentStatus,
				"cancel_reason":  reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking reached a terminal state concurrently")
		}

		if refunded {
			if err := s.ensureLedgerRow(tx, booking.ID, *booking.GatewayPaymentRef, booking.TotalAmount,
				transactionModel.OperationRefund, transactionModel.StatusCompleted); err != nil {
				return err
			}
		}

		booking.Status = bookingModel.BookingStatusCancelled
		booking.PaymentStatus = newPaymentStatus
		booking.CancelReason = &reason
		return s.writeEvent(tx, booking, "cancelled", reason, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("Booking %s cancelled: %s", booking.Reference, reason))
	return booking, nil
}

// Expire moves an abandoned payment_pending booking to expired once the
// grace period has elapsed. Any dangling authorization is released best
// effort; gateway failure does not block the expiry, the reconciliation
// sweep converges later.
func (s *Service) Expire(ref string) (*bookingModel.Booking, error) {
	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}

	if booking.Status != bookingModel.BookingStatusPaymentPending {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot expire from status %s", booking.Status))
	}
	if time.Since(booking.CreatedAt) < s.Grace {
		return nil, types.NewStateConflict("grace period has not elapsed yet")
	}

	if booking.GatewayPaymentRef != nil {
		if _, _, err := s.Payments.CancelOrRefund(*booking.GatewayPaymentRef, nil); err != nil {
			logger.Warning(fmt.Sprintf("Best-effort release failed for expiring booking %s: %v", booking.Reference, err))
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status = ?", booking.ID, bookingModel.BookingStatusPaymentPending).
			Update("status", bookingModel.BookingStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking left payment_pending concurrently")
		}
		booking.Status = bookingModel.BookingStatusExpired
		return s.writeEvent(tx, booking, "expired", "", "reconciler")
	})
	if err != nil {
		return nil, err
	}

	logger.Info(fmt.Sprintf("Booking %s expired", booking.Reference))
	return booking, nil
}

// StartJob moves a confirmed, worker-bound booking to in_progress.
func (s *Service) StartJob(ref, actor string) (*bookingModel.Booking, error) {
	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}
	if booking.Status != bookingModel.BookingStatusConfirmed {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot start job from status %s", booking.Status))
	}
	if booking.WorkerID == nil {
		return nil, types.NewStateConflict("no worker bound to this booking")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status = ?", booking.ID, bookingModel.BookingStatusConfirmed).
			Update("status", bookingModel.BookingStatusInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking left confirmed concurrently")
		}
		booking.Status = bookingModel.BookingStatusInProgress
		return s.writeEvent(tx, booking, "job_started", "", actor)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CompleteJob records the service-delivery signal. The booking completes
// immediately if the payment was already captured; otherwise RecordCapture
// finishes the transition later. Job status and payment status jointly gate
// completed, neither alone.
func (s *Service) CompleteJob(ref, actor string) (*bookingModel.Booking, error) {
	booking, err := s.ByReference(ref)
	if err != nil {
		return nil, err
	}
	if booking.Status != bookingModel.BookingStatusInProgress {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot complete job from status %s", booking.Status))
	}

	doneAt := time.Now()
	updates := map[string]interface{}{
		"service_done_at": doneAt,
	}
	if booking.PaymentStatus == bookingModel.PaymentStatusPaid {
		updates["status"] = bookingModel.BookingStatusCompleted
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND status = ?", booking.ID, bookingModel.BookingStatusInProgress).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking left in_progress concurrently")
		}
		booking.ServiceDoneAt = &doneAt
		if booking.PaymentStatus == bookingModel.PaymentStatusPaid {
			booking.Status = bookingModel.BookingStatusCompleted
		}
		return s.writeEvent(tx, booking, "job_done", "", actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s service delivered", booking.Reference))
	return booking, nil
}

// ByReference loads a booking by its public reference.
func (s *Service) ByReference(ref string) (*bookingModel.Booking, error) {
	var booking bookingModel.Booking
	if err := s.DB.Where("reference = ?", ref).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound("booking not found")
		}
		return nil, err
	}
	return &booking, nil
}

// StatusView combines the three state axes for display.
func (s *Service) StatusView(ref string) (*bookingTypes.BookingStatusView, error) {
	var booking bookingModel.Booking
	if err := s.DB.Preload("Worker").Where("reference = ?", ref).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound("booking not found")
		}
		return nil, err
	}

	view := &bookingTypes.BookingStatusView{
		Reference:     booking.Reference,
		Status:        booking.Status.String(),
		PaymentStatus: booking.PaymentStatus.String(),
		DispatchState: booking.DispatchState.String(),
		WorkerID:      booking.WorkerID,
		ScheduledDate: booking.ScheduledDate.Format("2006-01-02"),
		TotalAmount:   booking.TotalAmount,
	}
	if booking.Worker != nil {
		view.WorkerName = &booking.Worker.Name
	}
	return view, nil
}

// BackfillTransaction repairs a missing ledger row from gateway truth. Used
// by the reconciliation sweep when a crashed write left a booking with money
// recorded but no Transaction row. Idempotent per (booking, ref, operation).
func (s *Service) BackfillTransaction(bookingID uint, gatewayRef string, amount int64,
	op transactionModel.OperationType, status transactionModel.Status) error {
	return s.ensureLedgerRow(s.DB, bookingID, gatewayRef, amount, op, status)
}

// ensureLedgerRow appends a Transaction row unless an identical operation is
// already on record for the gateway ref. This is what keeps duplicate
// callbacks from double-writing the ledger.
func (s *Service) ensureLedgerRow(tx *gorm.DB, bookingID uint, gatewayRef string, amount int64,
	op transactionModel.OperationType, status transactionModel.Status) error {
	var count int64
	err := tx.Model(&transactionModel.Transaction{}).
		Where("booking_id = ? AND gateway_payment_ref = ? AND operation_type = ?", bookingID, gatewayRef, op).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&transactionModel.Transaction{
		BookingID:         bookingID,
		GatewayPaymentRef: gatewayRef,
		Amount:            amount,
		Status:            status,
		OperationType:     op,
	}).Error
}

func (s *Service) writeEvent(tx *gorm.DB, b *bookingModel.Booking, eventType, detail, createdBy string) error {
	return tx.Create(&bookingModel.BookingStatusEvent{
		BookingID:     b.ID,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		DispatchState: b.DispatchState,
		EventType:     eventType,
		Detail:        detail,
		CreatedBy:     createdBy,
	}).Error
}

func nonTerminalStatuses() []bookingModel.BookingStatus {
	return []bookingModel.BookingStatus{
		bookingModel.BookingStatusPending,
		bookingModel.BookingStatusPaymentPending,
		bookingModel.BookingStatusConfirmed,
		bookingModel.BookingStatusInProgress,
	}
}
