package payments

import (
	"testing"

	bookingModel "homecare-booking/models/booking"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_KnownStatuses(t *testing.T) {
	assert.Equal(t, bookingModel.PaymentStatusAuthorized, Normalize("requires_capture"))
	assert.Equal(t, bookingModel.PaymentStatusAuthorized, Normalize("authorized"))
	assert.Equal(t, bookingModel.PaymentStatusPaid, Normalize("succeeded"))
	assert.Equal(t, bookingModel.PaymentStatusPaid, Normalize("captured"))
	assert.Equal(t, bookingModel.PaymentStatusRefunded, Normalize("refunded"))
	assert.Equal(t, bookingModel.PaymentStatusFailed, Normalize("canceled"))
	assert.Equal(t, bookingModel.PaymentStatusFailed, Normalize("cancelled"))
}

func TestNormalize_UnknownStatusFailsClosed(t *testing.T) {
	// A vocabulary drift at the processor must never read as success.
	for _, status := range []string{"", "processing_v2", "SUCCEEDED", "ok", "settlement_pending"} {
		got := Normalize(status)
		assert.Equal(t, bookingModel.PaymentStatusFailed, got, "status %q must fail closed", status)
		assert.NotEqual(t, bookingModel.PaymentStatusAuthorized, got)
		assert.NotEqual(t, bookingModel.PaymentStatusPaid, got)
	}
}
