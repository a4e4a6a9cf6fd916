package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"homecare-booking/database"
	bookingModel "homecare-booking/models/booking"
	dispatchModel "homecare-booking/models/dispatch"
	notificationModel "homecare-booking/models/notification"
	workerModel "homecare-booking/models/worker"
	"homecare-booking/services/coverage"
	"homecare-booking/types"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeNotifier records outbound job offers without a provider round trip.
type fakeNotifier struct {
	mu         sync.Mutex
	recipients []string
}

func (f *fakeNotifier) Dispatch(bookingID uint, recipient, msgType string, channel notificationModel.Channel, body string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recipients = append(f.recipients, recipient)
	return true, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	// One connection keeps the in-memory sqlite writes serialized.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *fakeNotifier) {
	db := openTestDB(t)
	notifier := &fakeNotifier{}
	engine := NewEngine(db, coverage.NewService(db), notifier)
	return engine, db, notifier
}

var testDate = time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

func seedWorker(t *testing.T, db *gorm.DB, name string, workingDays string, zips ...string) workerModel.Worker {
	t.Helper()
	w := workerModel.Worker{
		Name:        name,
		Phone:       "3125550100",
		Email:       fmt.Sprintf("%s@example.com", name),
		WorkingDays: workingDays,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&w).Error)
	for i, zip := range zips {
		require.NoError(t, db.Create(&workerModel.CoverageZone{
			WorkerID:   w.ID,
			Zip:        zip,
			DistanceKm: float64(i + 1),
		}).Error)
	}
	return w
}

func seedConfirmedBooking(t *testing.T, db *gorm.DB, zip string) bookingModel.Booking {
	t.Helper()
	b := bookingModel.Booking{
		Reference:      uuid.NewString(),
		Status:         bookingModel.BookingStatusConfirmed,
		PaymentStatus:  bookingModel.PaymentStatusAuthorized,
		DispatchState:  bookingModel.DispatchStateUnassigned,
		ScheduledDate:  testDate,
		ScheduledStart: "10:00",
		Zip:            zip,
		Address:        "12 W Lake St",
		TotalAmount:    12000,
		CreatedBy:      "test",
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

// allDays makes a worker available every weekday including the test date.
const allDays = "0,1,2,3,4,5,6"

func offDay() string {
	return fmt.Sprintf("%d", (int(testDate.Weekday())+1)%7)
}

func TestDispatch_NoCoverageIsSignalledNotFatal(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	booking := seedConfirmedBooking(t, db, "99999")

	_, err := engine.Dispatch(booking.Reference)
	require.Error(t, err)
	assert.Equal(t, types.ErrKindDispatchExhausted, types.KindOf(err))

	// The booking is untouched and waiting for manual follow-up.
	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	assert.Equal(t, bookingModel.DispatchStateUnassigned, after.DispatchState)
	assert.Nil(t, after.WorkerID)

	var signals int64
	require.NoError(t, db.Model(&bookingModel.BookingStatusEvent{}).
		Where("booking_id = ? AND event_type = ? AND detail = ?", booking.ID, "dispatch_exhausted", ReasonNoCoverage).
		Count(&signals).Error)
	assert.Equal(t, int64(1), signals)
}

func TestDispatch_SoleAvailableWorkerIsAssignedDirectly(t *testing.T) {
	engine, db, notifier := newTestEngine(t)
	available := seedWorker(t, db, "amara", allDays, "60601")
	seedWorker(t, db, "bo", offDay(), "60601")

	booking := seedConfirmedBooking(t, db, "60601")

	result, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, bookingModel.DispatchStateDirectAssigned, result.Mode)
	require.NotNil(t, result.WorkerID)
	assert.Equal(t, available.ID, *result.WorkerID)
	assert.Empty(t, notifier.recipients, "direct assignment skips the broadcast")

	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	require.NotNil(t, after.WorkerID)
	assert.Equal(t, available.ID, *after.WorkerID)
}

func TestDispatch_BroadcastNotifiesEveryCandidate(t *testing.T) {
	engine, db, notifier := newTestEngine(t)
	seedWorker(t, db, "amara", allDays, "60601")
	seedWorker(t, db, "bo", allDays, "60601")
	seedWorker(t, db, "chi", allDays, "60601")

	booking := seedConfirmedBooking(t, db, "60601")

	result, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, bookingModel.DispatchStateBroadcastOpen, result.Mode)
	assert.Equal(t, 3, result.Notified)
	assert.Len(t, notifier.recipients, 3)

	var pending int64
	require.NoError(t, db.Model(&dispatchModel.CoverageNotification{}).
		Where("booking_id = ? AND response IS NULL", booking.ID).Count(&pending).Error)
	assert.Equal(t, int64(3), pending)
}

func TestDispatch_RefusedWhenAlreadyDispatched(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	seedWorker(t, db, "amara", allDays, "60601")
	booking := seedConfirmedBooking(t, db, "60601")

	_, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)

	_, err = engine.Dispatch(booking.Reference)
	require.Error(t, err)
	assert.Equal(t, types.ErrKindStateConflict, types.KindOf(err))
}

func TestRespond_FirstAcceptWinsLateAcceptConflicts(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	workers := []workerModel.Worker{
		seedWorker(t, db, "amara", allDays, "60601"),
		seedWorker(t, db, "bo", allDays, "60601"),
		seedWorker(t, db, "chi", allDays, "60601"),
	}
	booking := seedConfirmedBooking(t, db, "60601")

	_, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)

	var notifications []dispatchModel.CoverageNotification
	require.NoError(t, db.Where("booking_id = ?", booking.ID).Order("priority").Find(&notifications).Error)
	require.Len(t, notifications, 3)

	first, err := engine.Respond(notifications[1].ID, dispatchModel.ResponseAccepted, "worker")
	require.NoError(t, err)
	assert.True(t, first.Won)
	require.NotNil(t, first.Booking.WorkerID)
	assert.Equal(t, workers[1].ID, *first.Booking.WorkerID)
	assert.Equal(t, bookingModel.DispatchStateBound, first.Booking.DispatchState)

	// A second accept finds the job taken.
	_, err = engine.Respond(notifications[2].ID, dispatchModel.ResponseAccepted, "worker")
	require.Error(t, err)
	assert.Equal(t, types.ErrKindStateConflict, types.KindOf(err))

	// A decline after binding is still recorded, no exhaustion.
	late, err := engine.Respond(notifications[0].ID, dispatchModel.ResponseDeclined, "worker")
	require.NoError(t, err)
	assert.False(t, late.Won)
	assert.False(t, late.Exhausted)

	// Binding survived the late answers.
	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	require.NotNil(t, after.WorkerID)
	assert.Equal(t, workers[1].ID, *after.WorkerID)

	var accepted int64
	require.NoError(t, db.Model(&dispatchModel.CoverageNotification{}).
		Where("booking_id = ? AND response = ?", booking.ID, dispatchModel.ResponseAccepted).
		Count(&accepted).Error)
	assert.Equal(t, int64(1), accepted)
}

func TestRespond_ConcurrentAcceptsProduceOneWinner(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	for i := 0; i < 5; i++ {
		seedWorker(t, db, fmt.Sprintf("worker%d", i), allDays, "60601")
	}
	booking := seedConfirmedBooking(t, db, "60601")

	_, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)

	var notifications []dispatchModel.CoverageNotification
	require.NoError(t, db.Where("booking_id = ?", booking.ID).Find(&notifications).Error)
	require.Len(t, notifications, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners, conflicts int

	for _, n := range notifications {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			result, err := engine.Respond(id, dispatchModel.ResponseAccepted, "worker")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && result.Won:
				winners++
			case types.KindOf(err) == types.ErrKindStateConflict:
				conflicts++
			default:
				t.Errorf("unexpected respond outcome: %v", err)
			}
		}(n.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 4, conflicts)

	var accepted int64
	require.NoError(t, db.Model(&dispatchModel.CoverageNotification{}).
		Where("booking_id = ? AND response = ?", booking.ID, dispatchModel.ResponseAccepted).
		Count(&accepted).Error)
	assert.Equal(t, int64(1), accepted)
}

func TestRespond_AllDeclinedSignalsExhaustion(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	seedWorker(t, db, "amara", allDays, "60601")
	seedWorker(t, db, "bo", allDays, "60601")
	booking := seedConfirmedBooking(t, db, "60601")

	_, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)

	var notifications []dispatchModel.CoverageNotification
	require.NoError(t, db.Where("booking_id = ?", booking.ID).Find(&notifications).Error)
	require.Len(t, notifications, 2)

	first, err := engine.Respond(notifications[0].ID, dispatchModel.ResponseDeclined, "worker")
	require.NoError(t, err)
	assert.False(t, first.Exhausted)

	second, err := engine.Respond(notifications[1].ID, dispatchModel.ResponseDeclined, "worker")
	require.NoError(t, err)
	assert.True(t, second.Exhausted)

	var signals int64
	require.NoError(t, db.Model(&bookingModel.BookingStatusEvent{}).
		Where("booking_id = ? AND event_type = ? AND detail = ?", booking.ID, "dispatch_exhausted", ReasonAllDeclined).
		Count(&signals).Error)
	assert.Equal(t, int64(1), signals)

	// The booking stays unbound for manual follow-up.
	var after bookingModel.Booking
	require.NoError(t, db.First(&after, booking.ID).Error)
	assert.Nil(t, after.WorkerID)
}

func TestRespond_DoubleAnswerRefused(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	seedWorker(t, db, "amara", allDays, "60601")
	seedWorker(t, db, "bo", allDays, "60601")
	booking := seedConfirmedBooking(t, db, "60601")

	_, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)

	var notification dispatchModel.CoverageNotification
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&notification).Error)

	_, err = engine.Respond(notification.ID, dispatchModel.ResponseDeclined, "worker")
	require.NoError(t, err)

	_, err = engine.Respond(notification.ID, dispatchModel.ResponseDeclined, "worker")
	require.Error(t, err)
	assert.Equal(t, types.ErrKindStateConflict, types.KindOf(err))
}

func TestRespond_InvalidResponseRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Respond(1, dispatchModel.Response("maybe"), "worker")
	require.Error(t, err)
	assert.Equal(t, types.ErrKindValidation, types.KindOf(err))
}

func TestDispatch_ConflictingBookingFiltersWorker(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	busy := seedWorker(t, db, "amara", allDays, "60601")
	free := seedWorker(t, db, "bo", allDays, "60601")

	// amara already holds a confirmed job at the same slot.
	existing := seedConfirmedBooking(t, db, "60601")
	require.NoError(t, db.Model(&bookingModel.Booking{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"worker_id": busy.ID, "dispatch_state": bookingModel.DispatchStateBound}).Error)

	booking := seedConfirmedBooking(t, db, "60601")

	result, err := engine.Dispatch(booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, bookingModel.DispatchStateDirectAssigned, result.Mode)
	require.NotNil(t, result.WorkerID)
	assert.Equal(t, free.ID, *result.WorkerID)
}
