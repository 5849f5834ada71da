package models

import (
	"time"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusSucceeded PaymentStatus = "succeeded"
	StatusFailed    PaymentStatus = "failed"
)

type PaymentType string

const (
	PaymentDeposit PaymentType = "deposit"
	PaymentFinal   PaymentType = "final"
)

type Payment struct {
	PaymentID   string        `json:"payment_id" bun:"payment_id,pk"`
	BookingID   string        `json:"booking_id" bun:"booking_id,notnull"`
	Amount      float64       `json:"amount" bun:"amount,notnull"`
	Currency    string        `json:"currency" bun:"currency,notnull"`
	PaymentType PaymentType   `json:"payment_type" bun:"payment_type,notnull"`
	Status      PaymentStatus `json:"status" bun:"status,notnull"`
	CheckoutURL string        `json:"stripe_checkout_url,omitempty" bun:"stripe_checkout_url,nullzero"`
	// SessionID is the Stripe checkout session id carried in webhook
	// metadata; it is how re-delivered events are matched to their row.
	SessionID string `json:"session_id,omitempty" bun:"session_id,nullzero"`
	// IntentID is the Stripe payment intent behind the session, recorded at
	// settle time so redundant payment_intent events match their own row.
	IntentID    string    `json:"payment_intent_id,omitempty" bun:"payment_intent_id,nullzero"`
	Description string    `json:"description,omitempty" bun:"description,nullzero"`
	PaidAt      time.Time `json:"paid_at,omitempty" bun:"paid_at,nullzero"`
	DueDate     time.Time `json:"due_date,omitempty" bun:"due_date,nullzero"`
	CreatedAt   time.Time `json:"created_at" bun:"created_at,notnull"`
}

// PaymentLinkRequest is the admin request to generate a hosted checkout
// link for a booking. Amount defaults to the booking's deposit and the
// description to "Deposit for {client_name}" when omitted.
type PaymentLinkRequest struct {
	BookingID   string  `json:"bookingId" binding:"required"`
	Amount      float64 `json:"amount,omitempty"`
	Description string  `json:"description,omitempty"`
	PaymentType string  `json:"payment_type,omitempty"`
}

type PaymentLinkResponse struct {
	PaymentID string `json:"payment_id"`
	URL       string `json:"url"`
	// QRCode is the checkout URL encoded as a base64 PNG so the admin can
	// hand the link over in person when email delivery fails.
	QRCode    string `json:"qr_code,omitempty"`
	EmailSent bool   `json:"email_sent"`
}

// BalanceSummary is the derived payment state of a priced booking. It is
// recomputed on every read, never cached.
type BalanceSummary struct {
	BookingID           string  `json:"booking_id"`
	TotalPrice          float64 `json:"total_price"`
	TotalPaid           float64 `json:"total_paid"`
	OutstandingBalance  float64 `json:"outstanding_balance"`
	DepositPaid         bool    `json:"deposit_paid"`
	FullPaymentReceived bool    `json:"full_payment_received"`
	Overdue             bool    `json:"overdue"`
}
