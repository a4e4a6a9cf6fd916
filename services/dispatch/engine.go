package dispatch

import (
	"fmt"
	"time"

	"homecare-booking/logger"
	bookingModel "homecare-booking/models/booking"
	dispatchModel "homecare-booking/models/dispatch"
	notificationModel "homecare-booking/models/notification"
	workerModel "homecare-booking/models/worker"
	"homecare-booking/services/coverage"
	"homecare-booking/services/notify"
	"homecare-booking/types"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// Exhaustion reasons carried in the DispatchExhausted signal.
const (
	ReasonNoCoverage  = "no_coverage"
	ReasonAllDeclined = "all_declined"
)

// Result is the outcome of a dispatch attempt.
type Result struct {
	Mode     bookingModel.DispatchState `json:"mode"`
	WorkerID *uint                      `json:"worker_id,omitempty"`
	Notified int                        `json:"notified"`
}

// RespondResult is the outcome of recording a worker response.
type RespondResult struct {
	Won       bool                 `json:"won"`
	Booking   bookingModel.Booking `json:"booking"`
	Exhausted bool                 `json:"exhausted"`
}

// Engine decides between direct assignment and broadcast-with-race-resolution
// and commits the winning acceptance exactly once. Worker binding is a
// separate state machine from payment; the two only jointly gate completion.
type Engine struct {
	DB       *gorm.DB
	Resolver coverage.Resolver
	Notifier notify.Dispatcher
}

func NewEngine(db *gorm.DB, resolver coverage.Resolver, notifier notify.Dispatcher) *Engine {
	return &Engine{DB: db, Resolver: resolver, Notifier: notifier}
}

// Dispatch resolves coverage for the booking's location and either assigns
// the single clearly-preferred worker directly or opens a broadcast. No
// coverage is non-fatal: the booking stays unassigned and a signal is
// emitted for manual handling.
func (e *Engine) Dispatch(bookingRef string) (*Result, error) {
	var booking bookingModel.Booking
	if err := e.DB.Where("reference = ?", bookingRef).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound("booking not found")
		}
		return nil, err
	}

	if booking.DispatchState != bookingModel.DispatchStateUnassigned {
		return nil, types.NewStateConflict(fmt.Sprintf("booking dispatch state is already %s", booking.DispatchState))
	}
	if booking.Status.IsTerminal() {
		return nil, types.NewStateConflict(fmt.Sprintf("cannot dispatch a booking in status %s", booking.Status))
	}

	cov, err := e.Resolver.Resolve(booking.Zip)
	if err != nil {
		return nil, err
	}

	if !cov.HasCoverage {
		e.writeSignalEvent(&booking, "dispatch_exhausted", ReasonNoCoverage)
		logger.Warning(fmt.Sprintf("No coverage for booking %s at zip %s", booking.Reference, booking.Zip))
		return nil, types.NewDispatchExhausted(ReasonNoCoverage)
	}

	available := e.availableCandidates(&booking, cov.Eligible)

	// A sole available candidate is the clearly-preferred one: assign
	// directly, no broadcast.
	if len(available) == 1 {
		return e.assignDirect(&booking, available[0].Worker.ID)
	}

	// Broadcast to every candidate; availability filtering only narrows when
	// it leaves somebody.
	candidates := available
	if len(candidates) == 0 {
		candidates = cov.Eligible
	}
	return e.broadcast(&booking, candidates)
}

// Respond records a worker's answer to a broadcast notification. Accepts
// race on the booking's worker_ref: the single conditional update that
// succeeds is the winner, every other accept detects the bound booking and
// is treated as late.
func (e *Engine) Respond(notificationID uint, response dispatchModel.Response, actor string) (*RespondResult, error) {
	if !response.IsValid() {
		return nil, types.NewValidationError("response must be accepted or declined")
	}

	var notification dispatchModel.CoverageNotification
	if err := e.DB.First(&notification, notificationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFound("notification not found")
		}
		return nil, err
	}
	if notification.HasResponded() {
		return nil, types.NewStateConflict("response already recorded for this notification")
	}

	var booking bookingModel.Booking
	if err := e.DB.First(&booking, notification.BookingID).Error; err != nil {
		return nil, err
	}

	if response == dispatchModel.ResponseDeclined {
		return e.recordDecline(&notification, &booking, actor)
	}
	return e.recordAccept(&notification, &booking, actor)
}

func (e *Engine) recordAccept(n *dispatchModel.CoverageNotification, booking *bookingModel.Booking, actor string) (*RespondResult, error) {
	var result RespondResult

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		// The race-critical write: first accepted response wins, everybody
		// else fails the worker_ref-is-null precondition.
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND worker_id IS NULL", booking.ID).
			Updates(map[string]interface{}{
				"worker_id":      n.WorkerID,
				"dispatch_state": bookingModel.DispatchStateBound,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("this job is no longer available")
		}

		respondedAt := time.Now()
		accepted := dispatchModel.ResponseAccepted
		upd := tx.Model(&dispatchModel.CoverageNotification{}).
			Where("id = ? AND response IS NULL", n.ID).
			Updates(map[string]interface{}{
				"response":     accepted,
				"responded_at": respondedAt,
			})
		if upd.Error != nil {
			return upd.Error
		}

		booking.WorkerID = &n.WorkerID
		booking.DispatchState = bookingModel.DispatchStateBound
		if err := tx.Create(&bookingModel.BookingStatusEvent{
			BookingID:     booking.ID,
			Status:        booking.Status,
			PaymentStatus: booking.PaymentStatus,
			DispatchState: booking.DispatchState,
			EventType:     "bound",
			Detail:        fmt.Sprintf("worker %d", n.WorkerID),
			CreatedBy:     actor,
		}).Error; err != nil {
			return err
		}

		result = RespondResult{Won: true, Booking: *booking}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s bound to worker %d", booking.Reference, n.WorkerID))
	return &result, nil
}

func (e *Engine) recordDecline(n *dispatchModel.CoverageNotification, booking *bookingModel.Booking, actor string) (*RespondResult, error) {
	respondedAt := time.Now()
	declined := dispatchModel.ResponseDeclined
	res := e.DB.Model(&dispatchModel.CoverageNotification{}).
		Where("id = ? AND response IS NULL", n.ID).
		Updates(map[string]interface{}{
			"response":     declined,
			"responded_at": respondedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, types.NewStateConflict("response already recorded for this notification")
	}

	result := &RespondResult{Won: false, Booking: *booking}

	// When the last outstanding candidate declines on a still-unbound
	// booking, surface the exhaustion for manual follow-up.
	if booking.WorkerID == nil {
		var open int64
		err := e.DB.Model(&dispatchModel.CoverageNotification{}).
			Where("booking_id = ? AND response IS NULL", booking.ID).
			Count(&open).Error
		if err != nil {
			return nil, err
		}
		if open == 0 {
			e.writeSignalEvent(booking, "dispatch_exhausted", ReasonAllDeclined)
			logger.Warning(fmt.Sprintf("All notified workers declined booking %s", booking.Reference))
			result.Exhausted = true
		}
	}

	return result, nil
}

func (e *Engine) assignDirect(booking *bookingModel.Booking, workerID uint) (*Result, error) {
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND worker_id IS NULL", booking.ID).
			Updates(map[string]interface{}{
				"worker_id":      workerID,
				"dispatch_state": bookingModel.DispatchStateDirectAssigned,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking was assigned concurrently")
		}

		booking.WorkerID = &workerID
		booking.DispatchState = bookingModel.DispatchStateDirectAssigned
		return tx.Create(&bookingModel.BookingStatusEvent{
			BookingID:     booking.ID,
			Status:        booking.Status,
			PaymentStatus: booking.PaymentStatus,
			DispatchState: booking.DispatchState,
			EventType:     "dispatched",
			Detail:        fmt.Sprintf("direct worker %d", workerID),
			CreatedBy:     "dispatcher",
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Success(fmt.Sprintf("Booking %s directly assigned to worker %d", booking.Reference, workerID))
	return &Result{Mode: bookingModel.DispatchStateDirectAssigned, WorkerID: &workerID}, nil
}

func (e *Engine) broadcast(booking *bookingModel.Booking, candidates []coverage.Candidate) (*Result, error) {
	sentAt := time.Now()
	notifications := make([]dispatchModel.CoverageNotification, 0, len(candidates))
	for i, cand := range candidates {
		notifications = append(notifications, dispatchModel.CoverageNotification{
			BookingID: booking.ID,
			WorkerID:  cand.Worker.ID,
			Priority:  i,
			SentAt:    sentAt,
		})
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notifications).Error; err != nil {
			return err
		}
		res := tx.Model(&bookingModel.Booking{}).
			Where("id = ? AND dispatch_state = ?", booking.ID, bookingModel.DispatchStateUnassigned).
			Update("dispatch_state", bookingModel.DispatchStateBroadcastOpen)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewStateConflict("booking was dispatched concurrently")
		}
		booking.DispatchState = bookingModel.DispatchStateBroadcastOpen
		return tx.Create(&bookingModel.BookingStatusEvent{
			BookingID:     booking.ID,
			Status:        booking.Status,
			PaymentStatus: booking.PaymentStatus,
			DispatchState: booking.DispatchState,
			EventType:     "dispatched",
			Detail:        fmt.Sprintf("broadcast to %d workers", len(candidates)),
			CreatedBy:     "dispatcher",
		}).Error
	})
	if err != nil {
		return nil, err
	}

	// Outbound sends are best effort: one failed delivery must not block the
	// other candidates, the notification rows already exist either way.
	for _, cand := range candidates {
		if _, err := e.Notifier.Dispatch(booking.ID, cand.Worker.Email, "job_offer",
			notificationModel.ChannelEmail,
			fmt.Sprintf("New job at %s on %s %s", booking.Zip, booking.ScheduledDate.Format("2006-01-02"), booking.ScheduledStart)); err != nil {
			logger.Warning(fmt.Sprintf("Job offer delivery to worker %d failed: %v", cand.Worker.ID, err))
		}
	}

	logger.Info(fmt.Sprintf("Booking %s broadcast to %d workers", booking.Reference, len(candidates)))
	return &Result{Mode: bookingModel.DispatchStateBroadcastOpen, Notified: len(notifications)}, nil
}

// availableCandidates filters eligible workers down to those whose weekly
// availability matches the booking and who have no conflicting job at the
// same slot.
func (e *Engine) availableCandidates(booking *bookingModel.Booking, eligible []coverage.Candidate) []coverage.Candidate {
	day := now.With(booking.ScheduledDate).BeginningOfDay()

	var out []coverage.Candidate
	for _, cand := range eligible {
		if !cand.Worker.WorksOn(day.Weekday()) {
			continue
		}
		if e.hasConflict(cand.Worker, day, booking.ScheduledStart) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (e *Engine) hasConflict(w workerModel.Worker, day time.Time, start string) bool {
	var count int64
	err := e.DB.Model(&bookingModel.Booking{}).
		Where("worker_id = ? AND scheduled_date = ? AND scheduled_start = ? AND status IN ?",
			w.ID, day, start, []bookingModel.BookingStatus{
				bookingModel.BookingStatusPaymentPending,
				bookingModel.BookingStatusConfirmed,
				bookingModel.BookingStatusInProgress,
			}).
		Count(&count).Error
	if err != nil {
		logger.Error("Conflict check failed", err)
		return true
	}
	return count > 0
}

func (e *Engine) writeSignalEvent(booking *bookingModel.Booking, eventType, detail string) {
	if err := e.DB.Create(&bookingModel.BookingStatusEvent{
		BookingID:     booking.ID,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		DispatchState: booking.DispatchState,
		EventType:     eventType,
		Detail:        detail,
		CreatedBy:     "dispatcher",
	}).Error; err != nil {
		logger.Error("Failed to write dispatch signal event", err)
	}
}
