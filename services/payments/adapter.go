package payments

import (
	"fmt"

	"homecare-booking/httpServices/gateway"
	"homecare-booking/logger"
	bookingModel "homecare-booking/models/booking"
	"homecare-booking/types"
)

// GatewayAPI is the raw processor surface the adapter drives. Satisfied by
// httpServices/gateway.Client.
type GatewayAPI interface {
	CreateIntent(req gateway.CreateIntentRequest) (*gateway.IntentResponse, error)
	GetIntent(ref string) (*gateway.IntentResponse, error)
	Capture(ref string) (*gateway.IntentResponse, error)
	Cancel(ref string) (*gateway.IntentResponse, error)
	Refund(ref string, req gateway.RefundRequest) (*gateway.IntentResponse, error)
}

// ReleasePath names which release operation CancelOrRefund chose.
type ReleasePath string

const (
	ReleasePathCancel ReleasePath = "cancel"
	ReleasePathRefund ReleasePath = "refund"
)

// Adapter translates between the processor's API and the internal payment
// vocabulary. It is a pure translation layer: no booking state is read or
// written here.
type Adapter struct {
	api      GatewayAPI
	currency string
}

func NewAdapter(api GatewayAPI, currency string) *Adapter {
	if currency == "" {
		currency = "usd"
	}
	return &Adapter{api: api, currency: currency}
}

// Authorize places a hold for the given amount and returns the gateway ref.
// The idempotency key makes a retried authorize return the same intent.
func (a *Adapter) Authorize(amount int64, customerRef, idempotencyKey string) (string, error) {
	resp, err := a.api.CreateIntent(gateway.CreateIntentRequest{
		Amount:         amount,
		Currency:       a.currency,
		CustomerRef:    customerRef,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", types.NewGatewayError("authorize failed", err)
	}
	if Normalize(resp.Status) == bookingModel.PaymentStatusFailed {
		return "", types.NewGatewayError(fmt.Sprintf("authorize rejected with status %q", resp.Status), nil)
	}
	return resp.ID, nil
}

// Capture converts a held authorization into a transfer and returns the
// normalized resulting status.
func (a *Adapter) Capture(ref string) (bookingModel.PaymentStatus, error) {
	resp, err := a.api.Capture(ref)
	if err != nil {
		return "", types.NewGatewayError("capture failed", err)
	}
	return Normalize(resp.Status), nil
}

// FetchStatus re-fetches the authoritative intent state, normalized.
func (a *Adapter) FetchStatus(ref string) (bookingModel.PaymentStatus, int64, error) {
	resp, err := a.api.GetIntent(ref)
	if err != nil {
		return "", 0, types.NewGatewayError("status fetch failed", err)
	}
	return Normalize(resp.Status), resp.Amount, nil
}

// CancelOrRefund releases held or captured funds. It inspects the current
// gateway state and picks cancel (pre-capture) or refund (post-capture),
// returning which path was taken so the caller can log it distinctly.
func (a *Adapter) CancelOrRefund(ref string, amount *int64) (ReleasePath, bookingModel.PaymentStatus, error) {
	current, err := a.api.GetIntent(ref)
	if err != nil {
		return "", "", types.NewGatewayError("status fetch before release failed", err)
	}

	switch Normalize(current.Status) {
	case bookingModel.PaymentStatusPaid:
		resp, err := a.api.Refund(ref, gateway.RefundRequest{Amount: amount})
		if err != nil {
			return ReleasePathRefund, "", types.NewGatewayError("refund failed", err)
		}
		logger.Info(fmt.Sprintf("Refunded gateway intent %s", ref))
		return ReleasePathRefund, Normalize(resp.Status), nil
	case bookingModel.PaymentStatusAuthorized:
		resp, err := a.api.Cancel(ref)
		if err != nil {
			return ReleasePathCancel, "", types.NewGatewayError("cancel failed", err)
		}
		logger.Info(fmt.Sprintf("Cancelled gateway intent %s", ref))
		return ReleasePathCancel, Normalize(resp.Status), nil
	default:
		// Nothing held, nothing captured: the release is a no-op.
		return ReleasePathCancel, Normalize(current.Status), nil
	}
}
