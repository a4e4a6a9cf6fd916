package payment

import (
	"fmt"
)

// CreateIntentRequest initiates a payment attempt for a booking.
type CreateIntentRequest struct {
	BookingRef string `json:"booking_ref" validate:"required"`
}

func (r CreateIntentRequest) Validate() error {
	if r.BookingRef == "" {
		return fmt.Errorf("booking_ref is required")
	}
	return nil
}

// AuthorizationCallbackRequest is the gateway's authorization confirmation.
// The gateway may deliver it more than once; the state machine absorbs
// duplicates.
type AuthorizationCallbackRequest struct {
	BookingRef        string `json:"booking_ref" validate:"required"`
	GatewayPaymentRef string `json:"gateway_payment_ref" validate:"required"`
	Amount            int64  `json:"amount" validate:"required,gt=0"`
}

func (r AuthorizationCallbackRequest) Validate() error {
	if r.BookingRef == "" {
		return fmt.Errorf("booking_ref is required")
	}
	if r.GatewayPaymentRef == "" {
		return fmt.Errorf("gateway_payment_ref is required")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// CaptureCallbackRequest is the gateway's capture confirmation.
type CaptureCallbackRequest struct {
	BookingRef        string `json:"booking_ref" validate:"required"`
	GatewayPaymentRef string `json:"gateway_payment_ref" validate:"required"`
}

func (r CaptureCallbackRequest) Validate() error {
	if r.BookingRef == "" {
		return fmt.Errorf("booking_ref is required")
	}
	if r.GatewayPaymentRef == "" {
		return fmt.Errorf("gateway_payment_ref is required")
	}
	return nil
}
