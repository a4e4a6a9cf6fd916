package reconcile

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"homecare-booking/database"
	bookingModel "homecare-booking/models/booking"
	transactionModel "homecare-booking/models/transaction"
	"homecare-booking/services/bookingstate"
	"homecare-booking/services/payments"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway answers status fetches and release calls from a scripted map.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]bookingModel.PaymentStatus
	fetched  []string
	released []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]bookingModel.PaymentStatus{}}
}

func (f *fakeGateway) FetchStatus(ref string) (bookingModel.PaymentStatus, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref)
	status, ok := f.statuses[ref]
	if !ok {
		status = bookingModel.PaymentStatusFailed
	}
	return status, 12000, nil
}

func (f *fakeGateway) CancelOrRefund(ref string, amount *int64) (payments.ReleasePath, bookingModel.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ref)
	return payments.ReleasePathCancel, bookingModel.PaymentStatusFailed, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestJob(t *testing.T) (*Job, *gorm.DB, *fakeGateway) {
	db := openTestDB(t)
	gw := newFakeGateway()
	state := bookingstate.NewService(db, gw, bookingstate.DefaultGracePeriod)
	return NewJob(db, state, gw, time.Minute), db, gw
}

type seedOpts struct {
	status        bookingModel.BookingStatus
	paymentStatus bookingModel.PaymentStatus
	gatewayRef    *string
	age           time.Duration
}

func seedBooking(t *testing.T, db *gorm.DB, opts seedOpts) bookingModel.Booking {
	t.Helper()
	b := bookingModel.Booking{
		Reference:         uuid.NewString(),
		Status:            opts.status,
		PaymentStatus:     opts.paymentStatus,
		DispatchState:     bookingModel.DispatchStateUnassigned,
		ScheduledDate:     time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC),
		ScheduledStart:    "10:00",
		Zip:               "60601",
		Address:           "12 W Lake St",
		TotalAmount:       12000,
		GatewayPaymentRef: opts.gatewayRef,
		CreatedBy:         "test",
	}
	require.NoError(t, db.Create(&b).Error)
	if opts.age > 0 {
		require.NoError(t, db.Model(&bookingModel.Booking{}).
			Where("id = ?", b.ID).Update("created_at", time.Now().Add(-opts.age)).Error)
	}
	return b
}

func TestSweep_ExpiresStaleBookingWithoutGatewayCall(t *testing.T) {
	job, db, gw := newTestJob(t)

	stale := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		age:           7 * time.Hour,
	})

	job.Sweep()

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, stale.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusExpired, after.Status)

	// No gateway ref was ever attached: nothing to cancel, nothing to fetch.
	assert.Empty(t, gw.released)
	assert.Empty(t, gw.fetched)
}

func TestSweep_FreshBookingIsLeftAlone(t *testing.T) {
	job, db, _ := newTestJob(t)

	fresh := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		age:           time.Hour,
	})

	job.Sweep()

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, fresh.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusPaymentPending, after.Status)
}

func TestSweep_ExpiryReleasesDanglingAuthorizationBestEffort(t *testing.T) {
	job, db, gw := newTestJob(t)

	ref := "pi_dangling"
	gw.statuses[ref] = bookingModel.PaymentStatusAuthorized
	stale := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		gatewayRef:    &ref,
		age:           7 * time.Hour,
	})

	job.Sweep()

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, stale.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusExpired, after.Status)
	assert.Contains(t, gw.released, ref)
}

func TestSweep_RederivesMissedAuthorization(t *testing.T) {
	job, db, gw := newTestJob(t)

	ref := "pi_missed_auth"
	gw.statuses[ref] = bookingModel.PaymentStatusAuthorized
	booking := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		gatewayRef:    &ref,
		age:           time.Hour,
	})

	job.Sweep()

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusConfirmed, after.Status)
	assert.Equal(t, bookingModel.PaymentStatusAuthorized, after.PaymentStatus)

	var authRows int64
	require.NoError(t, db.Model(&transactionModel.Transaction{}).
		Where("booking_id = ? AND operation_type = ?", booking.ID, transactionModel.OperationAuthorization).
		Count(&authRows).Error)
	assert.Equal(t, int64(1), authRows)
}

func TestSweep_RederivesMissedCapture(t *testing.T) {
	job, db, gw := newTestJob(t)

	ref := "pi_missed_capture"
	gw.statuses[ref] = bookingModel.PaymentStatusPaid
	booking := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		gatewayRef:    &ref,
		age:           time.Hour,
	})

	job.Sweep()

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	assert.Equal(t, bookingModel.PaymentStatusPaid, after.PaymentStatus)
	assert.Equal(t, bookingModel.BookingStatusConfirmed, after.Status)

	var rows int64
	require.NoError(t, db.Model(&transactionModel.Transaction{}).
		Where("booking_id = ?", booking.ID).Count(&rows).Error)
	assert.Equal(t, int64(2), rows, "authorization and capture rows")
}

func TestSweep_BackfillsMissingLedgerRow(t *testing.T) {
	job, db, gw := newTestJob(t)

	// Money recorded locally but the Transaction trail is missing: the
	// crashed-write shape the backfill repairs.
	ref := "pi_no_ledger"
	gw.statuses[ref] = bookingModel.PaymentStatusPaid
	booking := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusConfirmed,
		paymentStatus: bookingModel.PaymentStatusPaid,
		gatewayRef:    &ref,
		age:           time.Hour,
	})

	job.Sweep()

	var authRows, captureRows int64
	require.NoError(t, db.Model(&transactionModel.Transaction{}).
		Where("booking_id = ? AND operation_type = ?", booking.ID, transactionModel.OperationAuthorization).
		Count(&authRows).Error)
	require.NoError(t, db.Model(&transactionModel.Transaction{}).
		Where("booking_id = ? AND operation_type = ?", booking.ID, transactionModel.OperationCapture).
		Count(&captureRows).Error)
	assert.Equal(t, int64(1), authRows)
	assert.Equal(t, int64(1), captureRows)
}

func TestSweep_IsIdempotent(t *testing.T) {
	job, db, gw := newTestJob(t)

	ref := "pi_repeat"
	gw.statuses[ref] = bookingModel.PaymentStatusPaid
	booking := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		gatewayRef:    &ref,
		age:           time.Hour,
	})

	job.Sweep()
	job.Sweep()
	job.Sweep()

	var rows int64
	require.NoError(t, db.Model(&transactionModel.Transaction{}).
		Where("booking_id = ?", booking.ID).Count(&rows).Error)
	assert.Equal(t, int64(2), rows)

	var events int64
	require.NoError(t, db.Model(&bookingModel.BookingStatusEvent{}).
		Where("booking_id = ? AND event_type = ?", booking.ID, "authorized").Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestSweep_FailedAtGatewayIsNotConverged(t *testing.T) {
	job, db, gw := newTestJob(t)

	ref := "pi_failed"
	gw.statuses[ref] = bookingModel.PaymentStatusFailed
	booking := seedBooking(t, db, seedOpts{
		status:        bookingModel.BookingStatusPaymentPending,
		paymentStatus: bookingModel.PaymentStatusPending,
		gatewayRef:    &ref,
		age:           time.Hour,
	})

	job.Sweep()

	// A failed payment never turns into money; expiry handles abandonment
	// once the grace period runs out.
	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	assert.Equal(t, bookingModel.BookingStatusPaymentPending, after.Status)
	assert.Equal(t, bookingModel.PaymentStatusPending, after.PaymentStatus)
}
