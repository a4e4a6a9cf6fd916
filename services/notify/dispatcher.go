package notify

import (
	"fmt"
	"time"

	"homecare-booking/httpServices/messaging"
	"homecare-booking/logger"
	notificationModel "homecare-booking/models/notification"

	"gorm.io/gorm"
)

// DedupWindow is how long a sent notification absorbs upstream retries for
// the same (booking, recipient, type) tuple.
const DedupWindow = 5 * time.Minute

// Sender is the outbound provider surface. Satisfied by
// httpServices/messaging.Client.
type Sender interface {
	Send(req messaging.SendRequest) (*messaging.SendResponse, error)
}

// Dispatcher performs idempotent outbound sends and records delivery status.
type Dispatcher interface {
	Dispatch(bookingID uint, recipient, msgType string, channel notificationModel.Channel, body string) (bool, error)
}

// Service is the database-backed Dispatcher.
type Service struct {
	DB     *gorm.DB
	Sender Sender
}

func NewService(db *gorm.DB, sender Sender) *Service {
	return &Service{DB: db, Sender: sender}
}

// Dispatch sends one notification for the (booking, recipient, type) tuple.
// A sent row younger than the dedup window short-circuits to sent=true
// without contacting the provider. A provider failure is recorded and
// returned; the row keeps the audit trail either way.
func (s *Service) Dispatch(bookingID uint, recipient, msgType string, channel notificationModel.Channel, body string) (bool, error) {
	var existing notificationModel.Notification
	err := s.DB.Where(
		"booking_id = ? AND recipient = ? AND type = ? AND status = ? AND sent_at > ?",
		bookingID, recipient, msgType, notificationModel.DeliveryStatusSent, time.Now().Add(-DedupWindow),
	).First(&existing).Error

	if err == nil {
		logger.Debug(fmt.Sprintf("Notification dedup hit for booking %d, recipient %s, type %s", bookingID, recipient, msgType))
		return true, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}

	record := notificationModel.Notification{
		BookingID: bookingID,
		Recipient: recipient,
		Type:      msgType,
		Channel:   channel,
		SentAt:    time.Now(),
	}

	resp, sendErr := s.Sender.Send(messaging.SendRequest{
		Recipient: recipient,
		Channel:   string(channel),
		Template:  msgType,
		Body:      body,
	})

	if sendErr != nil || (resp != nil && !resp.Accepted) {
		record.Status = notificationModel.DeliveryStatusFailed
		if sendErr != nil {
			msg := sendErr.Error()
			record.Error = &msg
		}
	} else {
		record.Status = notificationModel.DeliveryStatusSent
	}

	if err := s.DB.Create(&record).Error; err != nil {
		logger.Error("Failed to record notification delivery", err)
		return false, err
	}

	if sendErr != nil {
		return false, sendErr
	}
	return record.Status == notificationModel.DeliveryStatusSent, nil
}
