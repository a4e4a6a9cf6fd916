package booking

import (
	"fmt"
	"regexp"
	"time"
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// BookingItemRequest is one priced line item of the intake.
type BookingItemRequest struct {
	Description string `json:"description" validate:"required,min=1,max=255"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// BookingCreateRequest represents the intake payload for creating a booking.
// Either CustomerID or the guest contact block must be populated, never both.
type BookingCreateRequest struct {
	ScheduledDate  string               `json:"scheduled_date" validate:"required"`
	ScheduledStart string               `json:"scheduled_start" validate:"required"`
	Zip            string               `json:"zip" validate:"required"`
	Address        string               `json:"address" validate:"required,min=1"`
	Items          []BookingItemRequest `json:"items" validate:"required,min=1"`

	CustomerID *uint  `json:"customer_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty" validate:"omitempty,max=255"`
	GuestEmail string `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone string `json:"guest_phone,omitempty" validate:"omitempty,max=20"`
	GuestAddr  string `json:"guest_address,omitempty"`
}

// Validate performs first step validation of the intake.
func (r BookingCreateRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("at least one line item is required")
	}
	for i, item := range r.Items {
		if item.Description == "" {
			return fmt.Errorf("item %d: description is required", i)
		}
		if item.Amount <= 0 {
			return fmt.Errorf("item %d: amount must be positive", i)
		}
	}
	if !zipPattern.MatchString(r.Zip) {
		return fmt.Errorf("zip is not a resolvable location")
	}
	if r.Address == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := time.Parse("2006-01-02", r.ScheduledDate); err != nil {
		return fmt.Errorf("scheduled_date must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", r.ScheduledStart); err != nil {
		return fmt.Errorf("scheduled_start must be HH:MM")
	}
	if r.CustomerID == nil {
		if r.GuestName == "" || r.GuestEmail == "" || r.GuestPhone == "" {
			return fmt.Errorf("guest contact (name, email, phone) is required when no customer is given")
		}
	} else if r.GuestName != "" || r.GuestEmail != "" || r.GuestPhone != "" {
		return fmt.Errorf("customer_id and guest contact are mutually exclusive")
	}
	return nil
}

// BookingCancelRequest represents the payload for cancelling a booking.
type BookingCancelRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=255"`
}

func (r BookingCancelRequest) Validate() error {
	if r.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	return nil
}

// BookingStatusView combines the three state axes for display.
type BookingStatusView struct {
	Reference     string  `json:"reference"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	DispatchState string  `json:"dispatch_state"`
	WorkerID      *uint   `json:"worker_id,omitempty"`
	WorkerName    *string `json:"worker_name,omitempty"`
	ScheduledDate string  `json:"scheduled_date"`
	TotalAmount   int64   `json:"total_amount"`
}
