package transaction

import (
	"time"

	bookingModel "homecare-booking/models/booking"
)

// OperationType names the gateway operation a ledger row records.
type OperationType string

const (
	OperationAuthorization OperationType = "authorization"
	OperationCapture       OperationType = "capture"
	OperationRefund        OperationType = "refund"
)

func (ot OperationType) String() string {
	return string(ot)
}

func (ot OperationType) IsValid() bool {
	switch ot {
	case OperationAuthorization, OperationCapture, OperationRefund:
		return true
	default:
		return false
	}
}

// Status is the ledger row state. Rows are immutable once terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once the row must never be mutated again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction is one append-mostly ledger row per gateway operation. It is
// the audit trail and the backfill source for reconciliation repairs.
// Invariant: for a given gateway ref at most one completed capture row exists.
type Transaction struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	BookingID uint                 `gorm:"not null;index" json:"booking_id"`
	Booking   bookingModel.Booking `gorm:"foreignKey:BookingID" json:"booking"`

	GatewayPaymentRef string `gorm:"type:varchar(255);not null;index" json:"gateway_payment_ref"`

	// Amount is in the smallest currency unit.
	Amount int64 `gorm:"not null" json:"amount"`

	Status        Status        `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	OperationType OperationType `gorm:"type:varchar(20);not null;index" json:"operation_type"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}
