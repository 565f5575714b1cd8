package model

import "time"

// Payment records one verified (or rejected) gateway payment.
type Payment struct {
	OrderID   string    `json:"orderId" db:"order_id"`
	PaymentID string    `json:"paymentId" db:"payment_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"` // smallest currency unit
	Verified  bool      `json:"verified" db:"verified"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CreateOrderRequest asks the gateway for a new order.
type CreateOrderRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// OrderResponse is the gateway order descriptor handed back to the client
// so it can open the checkout widget.
type OrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// VerifyPaymentRequest carries the gateway's post-checkout handshake. The
// signature covers order and payment IDs only; Amount is echoed by the
// client for the audit row.
type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
}

// VerifyPaymentResponse reports the signature check outcome. Verified=false
// carries no further detail and mutates nothing.
type VerifyPaymentResponse struct {
	Verified bool     `json:"verified"`
	Plan     PlanTier `json:"plan,omitempty"`
}
