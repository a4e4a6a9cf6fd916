package notify

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"homecare-booking/database"
	"homecare-booking/httpServices/messaging"
	notificationModel "homecare-booking/models/notification"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSender scripts the provider. Each call is counted.
type fakeSender struct {
	err      error
	rejected bool
	calls    int
}

func (f *fakeSender) Send(req messaging.SendRequest) (*messaging.SendResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &messaging.SendResponse{MessageID: "msg_1", Accepted: !f.rejected}, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestDispatch_SendsAndRecordsDelivery(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{}
	svc := NewService(db, sender)

	sent, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "New job at 60601")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, sender.calls)

	var record notificationModel.Notification
	require.NoError(t, db.Where("booking_id = ? AND recipient = ?", 1, "amara@example.com").First(&record).Error)
	assert.Equal(t, notificationModel.DeliveryStatusSent, record.Status)
	assert.Equal(t, "job_offer", record.Type)
}

func TestDispatch_DedupWindowAbsorbsRetries(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{}
	svc := NewService(db, sender)

	for i := 0; i < 3; i++ {
		sent, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "New job at 60601")
		require.NoError(t, err)
		assert.True(t, sent)
	}

	// One provider call, one audit row: the window absorbed the retries.
	assert.Equal(t, 1, sender.calls)
	var rows int64
	require.NoError(t, db.Model(&notificationModel.Notification{}).
		Where("booking_id = ? AND recipient = ?", 1, "amara@example.com").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestDispatch_DedupKeyIsBookingRecipientAndType(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{}
	svc := NewService(db, sender)

	_, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)

	// Different type, different booking, different recipient: all send.
	_, err = svc.Dispatch(1, "amara@example.com", "booking_cancelled", notificationModel.ChannelEmail, "cancelled")
	require.NoError(t, err)
	_, err = svc.Dispatch(2, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)
	_, err = svc.Dispatch(1, "bo@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)

	assert.Equal(t, 4, sender.calls)
}

func TestDispatch_ExpiredWindowSendsAgain(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{}
	svc := NewService(db, sender)

	_, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)

	// Age the sent row past the window.
	old := time.Now().Add(-DedupWindow - time.Minute)
	require.NoError(t, db.Model(&notificationModel.Notification{}).
		Where("booking_id = ?", 1).Update("sent_at", old).Error)

	_, err = svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)
	assert.Equal(t, 2, sender.calls)
}

func TestDispatch_ProviderFailureIsRecordedNotDeduped(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{err: errors.New("provider down")}
	svc := NewService(db, sender)

	sent, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.Error(t, err)
	assert.False(t, sent)

	var record notificationModel.Notification
	require.NoError(t, db.Where("booking_id = ?", 1).First(&record).Error)
	assert.Equal(t, notificationModel.DeliveryStatusFailed, record.Status)
	require.NotNil(t, record.Error)
	assert.Contains(t, *record.Error, "provider down")

	// Failed rows never absorb retries; the next attempt reaches the provider.
	sender.err = nil
	sent, err = svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 2, sender.calls)
}

func TestDispatch_ProviderRejectionRecordedAsFailed(t *testing.T) {
	db := openTestDB(t)
	sender := &fakeSender{rejected: true}
	svc := NewService(db, sender)

	sent, err := svc.Dispatch(1, "amara@example.com", "job_offer", notificationModel.ChannelEmail, "offer")
	require.NoError(t, err)
	assert.False(t, sent)

	var record notificationModel.Notification
	require.NoError(t, db.Where("booking_id = ?", 1).First(&record).Error)
	assert.Equal(t, notificationModel.DeliveryStatusFailed, record.Status)
}
