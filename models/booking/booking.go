package booking

import (
	"time"

	customerModel "homecare-booking/models/customer"
	workerModel "homecare-booking/models/worker"
)

// Booking is the central aggregate. Status and PaymentStatus are two
// independent axes: Status tracks the job, PaymentStatus tracks the money.
// Only the two together gate the completed state.
type Booking struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Reference is the opaque public identifier handed to customers and
	// used by gateway callbacks.
	Reference string `gorm:"type:varchar(36);not null;unique" json:"reference"`

	Status        BookingStatus `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:pending" json:"payment_status"`
	DispatchState DispatchState `gorm:"type:varchar(20);not null;default:unassigned" json:"dispatch_state"`

	ScheduledDate  time.Time `gorm:"type:date;not null" json:"scheduled_date"`
	ScheduledStart string    `gorm:"type:varchar(5);not null" json:"scheduled_start"` // HH:MM

	// Either a registered customer or an embedded guest contact, never both.
	CustomerID *uint                   `gorm:"index" json:"customer_id,omitempty"`
	Customer   *customerModel.Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	GuestName  *string                 `gorm:"type:varchar(255)" json:"guest_name,omitempty"`
	GuestEmail *string                 `gorm:"type:varchar(255)" json:"guest_email,omitempty"`
	GuestPhone *string                 `gorm:"type:varchar(20)" json:"guest_phone,omitempty"`
	GuestAddr  *string                 `gorm:"type:text" json:"guest_address,omitempty"`

	// WorkerID is written exactly once, by the dispatch engine's winning
	// conditional update.
	WorkerID *uint               `gorm:"index" json:"worker_id,omitempty"`
	Worker   *workerModel.Worker `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`

	// GatewayPaymentRef is present iff a payment attempt has been initiated.
	GatewayPaymentRef *string `gorm:"type:varchar(255);index" json:"gateway_payment_ref,omitempty"`

	Zip     string `gorm:"type:varchar(10);not null;index" json:"zip"`
	Address string `gorm:"type:text;not null" json:"address"`

	// TotalAmount is in the smallest currency unit.
	TotalAmount int64         `gorm:"not null" json:"total_amount"`
	Items       []BookingItem `gorm:"foreignKey:BookingID" json:"items,omitempty"`

	// ServiceDoneAt records the externally signaled service-delivery event.
	ServiceDoneAt *time.Time `json:"service_done_at,omitempty"`

	CancelReason *string `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`

	CreatedBy string     `gorm:"type:varchar(255);not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime;index" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// BookingItem is one priced line item of a booking.
type BookingItem struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID   uint      `gorm:"not null;index" json:"booking_id"`
	Description string    `gorm:"type:varchar(255);not null" json:"description"`
	Amount      int64     `gorm:"not null" json:"amount"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
