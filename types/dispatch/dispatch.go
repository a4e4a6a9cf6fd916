package dispatch

import (
	"fmt"
)

// DispatchRequest asks the engine to assign or broadcast a booking.
type DispatchRequest struct {
	BookingRef string `json:"booking_ref" validate:"required"`
}

func (r DispatchRequest) Validate() error {
	if r.BookingRef == "" {
		return fmt.Errorf("booking_ref is required")
	}
	return nil
}

// RespondRequest records a worker's answer to a broadcast notification.
type RespondRequest struct {
	NotificationID uint   `json:"notification_id" validate:"required"`
	Response       string `json:"response" validate:"required,oneof=accepted declined"`
}

func (r RespondRequest) Validate() error {
	if r.NotificationID == 0 {
		return fmt.Errorf("notification_id is required")
	}
	if r.Response != "accepted" && r.Response != "declined" {
		return fmt.Errorf("response must be accepted or declined")
	}
	return nil
}
