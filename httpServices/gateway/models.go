package gateway

// CreateIntentRequest asks the processor to place a hold on funds.
type CreateIntentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customer_ref"`
	// IdempotencyKey makes retried creates return the same intent.
	IdempotencyKey string `json:"idempotency_key"`
}

// RefundRequest asks the processor to return captured funds.
type RefundRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

// IntentResponse is the processor's representation of a payment intent.
// Status carries the processor's native vocabulary; normalization happens
// in the payments adapter, never here.
type IntentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}
