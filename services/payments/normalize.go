package payments

import (
	bookingModel "homecare-booking/models/booking"
)

// statusTable is the single normalization point between the processor's
// native status vocabulary and the internal one. Processor vocabularies
// drift; any status missing from this table normalizes to failed, never to
// a success state.
var statusTable = map[string]bookingModel.PaymentStatus{
	"requires_capture": bookingModel.PaymentStatusAuthorized,
	"requires_action":  bookingModel.PaymentStatusAuthorized,
	"authorized":       bookingModel.PaymentStatusAuthorized,

	"succeeded": bookingModel.PaymentStatusPaid,
	"captured":  bookingModel.PaymentStatusPaid,
	"paid":      bookingModel.PaymentStatusPaid,

	"refunded":           bookingModel.PaymentStatusRefunded,
	"partially_refunded": bookingModel.PaymentStatusRefunded,

	"canceled":                bookingModel.PaymentStatusFailed,
	"cancelled":               bookingModel.PaymentStatusFailed,
	"failed":                  bookingModel.PaymentStatusFailed,
	"requires_payment_method": bookingModel.PaymentStatusFailed,
	"expired":                 bookingModel.PaymentStatusFailed,
}

// Normalize maps a processor status string to the internal vocabulary.
// Unknown statuses fail closed.
func Normalize(gatewayStatus string) bookingModel.PaymentStatus {
	if s, ok := statusTable[gatewayStatus]; ok {
		return s
	}
	return bookingModel.PaymentStatusFailed
}
