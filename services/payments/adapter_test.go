package payments

import (
	"errors"
	"testing"

	"homecare-booking/httpServices/gateway"
	bookingModel "homecare-booking/models/booking"
	"homecare-booking/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a scriptable stand-in for the processor client.
type fakeGateway struct {
	intentStatus string
	createErr    error
	captureErr   error

	createCalls  int
	captureCalls int
	cancelCalls  int
	refundCalls  int
	lastCreate   gateway.CreateIntentRequest
}

func (f *fakeGateway) CreateIntent(req gateway.CreateIntentRequest) (*gateway.IntentResponse, error) {
	f.createCalls++
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gateway.IntentResponse{ID: "pi_test_1", Status: f.intentStatus, Amount: req.Amount}, nil
}

func (f *fakeGateway) GetIntent(ref string) (*gateway.IntentResponse, error) {
	return &gateway.IntentResponse{ID: ref, Status: f.intentStatus, Amount: 12000}, nil
}

func (f *fakeGateway) Capture(ref string) (*gateway.IntentResponse, error) {
	f.captureCalls++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &gateway.IntentResponse{ID: ref, Status: "succeeded", Amount: 12000}, nil
}

func (f *fakeGateway) Cancel(ref string) (*gateway.IntentResponse, error) {
	f.cancelCalls++
	return &gateway.IntentResponse{ID: ref, Status: "canceled", Amount: 12000}, nil
}

func (f *fakeGateway) Refund(ref string, req gateway.RefundRequest) (*gateway.IntentResponse, error) {
	f.refundCalls++
	return &gateway.IntentResponse{ID: ref, Status: "refunded", Amount: 12000}, nil
}

func TestAuthorize_PassesIdempotencyKey(t *testing.T) {
	fake := &fakeGateway{intentStatus: "requires_capture"}
	adapter := NewAdapter(fake, "usd")

	ref, err := adapter.Authorize(12000, "cust_9", "bk-ref-abc")
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1", ref)
	assert.Equal(t, "bk-ref-abc", fake.lastCreate.IdempotencyKey)
	assert.Equal(t, int64(12000), fake.lastCreate.Amount)
}

func TestAuthorize_RejectedStatusIsGatewayError(t *testing.T) {
	fake := &fakeGateway{intentStatus: "requires_payment_method"}
	adapter := NewAdapter(fake, "usd")

	_, err := adapter.Authorize(5000, "cust_9", "bk-ref-abc")
	require.Error(t, err)
	assert.Equal(t, types.ErrKindGateway, types.KindOf(err))
}

func TestAuthorize_TransportErrorIsGatewayError(t *testing.T) {
	fake := &fakeGateway{createErr: errors.New("connection refused")}
	adapter := NewAdapter(fake, "usd")

	_, err := adapter.Authorize(5000, "cust_9", "bk-ref-abc")
	require.Error(t, err)
	assert.Equal(t, types.ErrKindGateway, types.KindOf(err))
}

func TestCancelOrRefund_PicksCancelBeforeCapture(t *testing.T) {
	fake := &fakeGateway{intentStatus: "requires_capture"}
	adapter := NewAdapter(fake, "usd")

	path, status, err := adapter.CancelOrRefund("pi_test_1", nil)
	require.NoError(t, err)
	assert.Equal(t, ReleasePathCancel, path)
	assert.Equal(t, bookingModel.PaymentStatusFailed, status)
	assert.Equal(t, 1, fake.cancelCalls)
	assert.Equal(t, 0, fake.refundCalls)
}

func TestCancelOrRefund_PicksRefundAfterCapture(t *testing.T) {
	fake := &fakeGateway{intentStatus: "succeeded"}
	adapter := NewAdapter(fake, "usd")

	path, status, err := adapter.CancelOrRefund("pi_test_1", nil)
	require.NoError(t, err)
	assert.Equal(t, ReleasePathRefund, path)
	assert.Equal(t, bookingModel.PaymentStatusRefunded, status)
	assert.Equal(t, 0, fake.cancelCalls)
	assert.Equal(t, 1, fake.refundCalls)
}

func TestCancelOrRefund_NoopWhenNothingHeld(t *testing.T) {
	fake := &fakeGateway{intentStatus: "canceled"}
	adapter := NewAdapter(fake, "usd")

	_, status, err := adapter.CancelOrRefund("pi_test_1", nil)
	require.NoError(t, err)
	assert.Equal(t, bookingModel.PaymentStatusFailed, status)
	assert.Equal(t, 0, fake.cancelCalls)
	assert.Equal(t, 0, fake.refundCalls)
}
