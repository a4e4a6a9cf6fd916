package dispatch

import (
	"time"

	bookingModel "homecare-booking/models/booking"
	workerModel "homecare-booking/models/worker"
)

// Response is a worker's answer to a broadcast notification.
type Response string

const (
	ResponseAccepted Response = "accepted"
	ResponseDeclined Response = "declined"
)

func (r Response) String() string {
	return string(r)
}

func (r Response) IsValid() bool {
	return r == ResponseAccepted || r == ResponseDeclined
}

// CoverageNotification is one row per (booking, candidate worker) broadcast.
// Rows are created in a batch when direct assignment is not possible and are
// mutated only by the response-recording operation; they are never deleted.
// Invariant: across all rows for a booking at most one has Response=accepted.
type CoverageNotification struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint                 `gorm:"not null;index" json:"booking_id"`
	Booking   bookingModel.Booking `gorm:"foreignKey:BookingID" json:"booking"`

	WorkerID uint               `gorm:"not null;index" json:"worker_id"`
	Worker   workerModel.Worker `gorm:"foreignKey:WorkerID" json:"worker"`

	// Priority orders candidates by distance score, lowest first.
	Priority int `gorm:"not null;default:0" json:"priority"`

	SentAt      time.Time  `gorm:"not null" json:"sent_at"`
	Response    *Response  `gorm:"type:varchar(10)" json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// HasResponded returns true once the worker answered either way.
func (n *CoverageNotification) HasResponded() bool {
	return n.Response != nil
}
