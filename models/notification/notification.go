package notification

import (
	"time"
)

// Channel is the outbound delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// DeliveryStatus records the outcome of one outbound send attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Notification is the delivery log for the notification dispatcher. The
// (booking, recipient, type) tuple is the dedup key: a sent row younger than
// the dedup window absorbs upstream retries without a second send.
type Notification struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint   `gorm:"not null;index:idx_notifications_dedup" json:"booking_id"`
	Recipient string `gorm:"type:varchar(255);not null;index:idx_notifications_dedup" json:"recipient"`

	// Type names the message template: job_offer, booking_confirmed,
	// booking_cancelled, no_coverage_alert.
	Type string `gorm:"type:varchar(50);not null;index:idx_notifications_dedup" json:"type"`

	Channel Channel        `gorm:"type:varchar(10);not null;default:email" json:"channel"`
	Status  DeliveryStatus `gorm:"type:varchar(10);not null" json:"status"`
	Error   *string        `gorm:"type:text" json:"error,omitempty"`

	SentAt    time.Time `gorm:"not null;index" json:"sent_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
