package booking

import (
	"time"
)

// BookingStatusEvent is one append-only row per lifecycle transition. It is
// the audit trail for every state machine write; rows are never updated.
type BookingStatusEvent struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint    `gorm:"not null;index" json:"booking_id"`
	Booking   Booking `gorm:"foreignKey:BookingID" json:"booking"`

	Status        BookingStatus `gorm:"type:varchar(20);not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	DispatchState DispatchState `gorm:"type:varchar(20);not null" json:"dispatch_state"`

	// EventType names the operation that produced the transition: created,
	// authorized, captured, cancelled, expired, dispatched, bound,
	// job_started, job_done, dispatch_exhausted.
	EventType string `gorm:"type:varchar(50);not null;index" json:"event_type"`

	// Detail carries the operation specific note (cancel reason, exhaustion
	// reason, gateway ref).
	Detail string `gorm:"type:varchar(255)" json:"detail,omitempty"`

	CreatedBy string    `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName sets the table name for the BookingStatusEvent model.
func (BookingStatusEvent) TableName() string {
	return "booking_status_events"
}
