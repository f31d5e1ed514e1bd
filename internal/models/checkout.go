package models

// CheckoutRequest starts a payment-provider checkout for one event ticket.
type CheckoutRequest struct {
	EventID string `json:"event_id"`
}

// CheckoutResponse carries the provider session id and the hosted page the
// buyer is redirected to.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
