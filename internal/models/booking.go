package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingCountered BookingStatus = "countered"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingArchived  BookingStatus = "archived"
)

type ClientType string

const (
	ClientCommercial    ClientType = "commercial"
	ClientSmallBusiness ClientType = "small_business"
)

// SubmissionRequest is the public intake payload. Website is a honeypot
// field rendered invisibly on the form; humans never fill it.
type SubmissionRequest struct {
	ClientName     string  `json:"client_name"`
	ClientEmail    string  `json:"client_email"`
	ClientPhone    string  `json:"client_phone"`
	ClientCompany  string  `json:"client_company,omitempty"`
	ClientType     string  `json:"client_type"`
	RequestedPrice float64 `json:"requested_price"`
	DepositAmount  float64 `json:"deposit_amount,omitempty"`
	BookingDate    string  `json:"booking_date"`
	BookingTime    string  `json:"booking_time"`
	ProjectDetails string  `json:"project_details,omitempty"`
	Website        string  `json:"website,omitempty"`
}

type BookingRequest struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            string     `bun:"id,pk" json:"id"`
	ClientName    string     `bun:"client_name,notnull" json:"client_name"`
	ClientEmail   string     `bun:"client_email,notnull" json:"client_email"`
	ClientPhone   string     `bun:"client_phone,notnull" json:"client_phone"`
	ClientCompany string     `bun:"client_company,nullzero" json:"client_company,omitempty"`
	ClientType    ClientType `bun:"client_type,notnull" json:"client_type"`

	RequestedPrice float64 `bun:"requested_price,notnull" json:"requested_price"`
	ApprovedPrice  float64 `bun:"approved_price,nullzero" json:"approved_price,omitempty"`
	CounterPrice   float64 `bun:"counter_price,nullzero" json:"counter_price,omitempty"`
	DepositAmount  float64 `bun:"deposit_amount,notnull" json:"deposit_amount"`

	BookingDate    string `bun:"booking_date,notnull" json:"booking_date"`
	BookingTime    string `bun:"booking_time,notnull" json:"booking_time"`
	ProjectDetails string `bun:"project_details,nullzero" json:"project_details,omitempty"`

	Status     BookingStatus `bun:"status,notnull" json:"status"`
	AdminNotes string        `bun:"admin_notes,nullzero" json:"admin_notes,omitempty"`

	// ApprovalToken deep-links the client back into a pre-filled payment flow.
	ApprovalToken string `bun:"approval_token,unique,notnull" json:"approval_token"`

	DepositPaid     bool      `bun:"deposit_paid" json:"deposit_paid"`
	DepositPaidAt   time.Time `bun:"deposit_paid_at,nullzero" json:"deposit_paid_at,omitempty"`
	FinalPaymentDue time.Time `bun:"final_payment_due,nullzero" json:"final_payment_due,omitempty"`

	ApprovedAt time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// EffectivePrice is the price that is authoritative for the booking's
// current status: approved price if set, else counter price, else the
// client's original requested price.
func (b *BookingRequest) EffectivePrice() float64 {
	if b.ApprovedPrice > 0 {
		return b.ApprovedPrice
	}
	if b.CounterPrice > 0 {
		return b.CounterPrice
	}
	return b.RequestedPrice
}

// BookingEvent is the payload streamed to Kafka on every lifecycle transition.
type BookingEvent struct {
	Type      string    `json:"type"`
	BookingID string    `json:"booking_id"`
	Status    string    `json:"status"`
	Price     float64   `json:"price"`
	Deposit   float64   `json:"deposit"`
	Timestamp time.Time `json:"timestamp"`
}
