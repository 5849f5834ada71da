package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/utils"
)

// BookingLifecycle is the slice of the booking workflow the webhook needs
// to push a booking forward once its deposit clears.
type BookingLifecycle interface {
	GetBooking(ctx context.Context, id string) (*models.BookingRequest, error)
	MarkDepositPaid(ctx context.Context, id string, paidAt time.Time) error
	AcceptCounter(ctx context.Context, id string) error
}

// WebhookError carries an HTTP status and a client-safe message alongside
// the detailed internal error.
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string // safe to expose to clients
	InternalError string // detailed error for logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

// WebhookProcessor reconciles verified Stripe events against the payment
// ledger and the booking lifecycle.
type WebhookProcessor struct {
	store    storage.Store
	bookings BookingLifecycle
	log      *logger.Logger
}

func NewWebhookProcessor(store storage.Store, bookings BookingLifecycle, log *logger.Logger) *WebhookProcessor {
	return &WebhookProcessor{store: store, bookings: bookings, log: log}
}

// Process dispatches a verified Stripe event. Unhandled event types are
// acknowledged without action so Stripe stops re-delivering them.
func (p *WebhookProcessor) Process(ctx context.Context, event stripe.Event) error {
	p.log.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			p.log.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal checkout session: %v", err))
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}
		return p.handleSessionCompleted(ctx, &session)

	case "payment_intent.succeeded":
		// Redundant with checkout.session.completed; reconciliation is
		// idempotent so processing both is harmless.
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			p.log.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal payment intent: %v", err))
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
				OriginalErr:   err,
			}
		}
		return p.handleIntentSucceeded(ctx, &intent)

	default:
		p.log.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

// handleSessionCompleted marks the booking's pending payment succeeded and
// pushes the booking lifecycle forward. Re-delivered events are detected by
// session id and acknowledged without side effects.
func (p *WebhookProcessor) handleSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	bookingID := session.Metadata["booking_id"]
	if bookingID == "" {
		p.log.Error("WEBHOOK", "Checkout session has no booking_id in metadata")
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid session data",
			InternalError: "Checkout session has no booking_id in metadata",
		}
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}

	if existing, err := p.store.GetPaymentBySessionID(session.ID); err == nil && existing != nil {
		if existing.Status == models.StatusSucceeded {
			p.log.Info("WEBHOOK", fmt.Sprintf("Session %s already reconciled, acknowledging", session.ID))
			return nil
		}
		return p.settle(ctx, existing, session.ID, intentID, bookingID)
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return p.processingError(fmt.Sprintf("Failed to look up session %s: %v", session.ID, err), err)
	}

	// Match the most recent pending payment for the booking; if none exists
	// (link created outside this service, or the row was lost) synthesize a
	// succeeded row so the ledger still reflects the money received.
	pending, err := p.store.GetLatestPendingByBooking(bookingID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return p.processingError(fmt.Sprintf("Failed to find pending payment for booking %s: %v", bookingID, err), err)
	}

	if pending != nil {
		return p.settle(ctx, pending, session.ID, intentID, bookingID)
	}

	amount := float64(session.AmountTotal) / 100.0
	synthesized := &models.Payment{
		PaymentID:   utils.GeneratePaymentID(),
		BookingID:   bookingID,
		Amount:      amount,
		Currency:    string(session.Currency),
		PaymentType: paymentTypeFromMetadata(session.Metadata),
		Status:      models.StatusSucceeded,
		SessionID:   session.ID,
		IntentID:    intentID,
		Description: "Reconciled from Stripe checkout session",
		PaidAt:      time.Now(),
		CreatedAt:   time.Now(),
	}
	if err := p.store.SavePayment(synthesized); err != nil {
		return p.processingError(fmt.Sprintf("Failed to record payment for booking %s: %v", bookingID, err), err)
	}
	p.log.Info("WEBHOOK", fmt.Sprintf("Synthesized payment %s for booking %s from session %s",
		synthesized.PaymentID, bookingID, session.ID))

	return p.advanceBooking(ctx, bookingID)
}

func (p *WebhookProcessor) settle(ctx context.Context, payment *models.Payment, sessionID, intentID, bookingID string) error {
	payment.Status = models.StatusSucceeded
	payment.SessionID = sessionID
	if intentID != "" {
		payment.IntentID = intentID
	}
	payment.PaidAt = time.Now()
	if err := p.store.UpdatePayment(payment); err != nil {
		return p.processingError(fmt.Sprintf("Failed to settle payment %s: %v", payment.PaymentID, err), err)
	}
	p.log.Info("WEBHOOK", fmt.Sprintf("Payment %s settled for booking %s", payment.PaymentID, bookingID))

	if payment.PaymentType != models.PaymentDeposit {
		return nil
	}
	return p.advanceBooking(ctx, bookingID)
}

// advanceBooking marks the deposit paid and, for countered bookings,
// records the client's acceptance. Both calls are no-ops on repeat.
func (p *WebhookProcessor) advanceBooking(ctx context.Context, bookingID string) error {
	b, err := p.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return p.processingError(fmt.Sprintf("Booking %s not found for settled payment: %v", bookingID, err), err)
	}

	if b.Status == models.BookingCountered {
		if err := p.bookings.AcceptCounter(ctx, bookingID); err != nil {
			return p.processingError(fmt.Sprintf("Failed to accept counter for booking %s: %v", bookingID, err), err)
		}
	}

	if err := p.bookings.MarkDepositPaid(ctx, bookingID, time.Now()); err != nil {
		return p.processingError(fmt.Sprintf("Failed to mark deposit paid for booking %s: %v", bookingID, err), err)
	}

	p.log.LogBooking("DEPOSIT_PAID", bookingID, "Deposit reconciled from Stripe webhook")
	return nil
}

// handleIntentSucceeded matches the intent to its own payment row. Settling
// by booking alone is unsafe: a retried deposit intent could flip a later,
// still-unpaid payment for the same booking. An intent with no matching row
// is acknowledged and left to checkout.session.completed.
func (p *WebhookProcessor) handleIntentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	existing, err := p.store.GetPaymentByIntentID(intent.ID)
	if errors.Is(err, storage.ErrNotFound) {
		p.log.Info("WEBHOOK", fmt.Sprintf("Intent %s has no payment row, acknowledging", intent.ID))
		return nil
	}
	if err != nil {
		return p.processingError(fmt.Sprintf("Failed to look up intent %s: %v", intent.ID, err), err)
	}

	if existing.Status == models.StatusSucceeded {
		p.log.Info("WEBHOOK", fmt.Sprintf("Intent %s already reconciled, acknowledging", intent.ID))
		return nil
	}
	return p.settle(ctx, existing, existing.SessionID, intent.ID, existing.BookingID)
}

func (p *WebhookProcessor) processingError(internal string, err error) *WebhookError {
	p.log.Error("WEBHOOK", internal)
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "Failed to process payment event",
		InternalError: internal,
		OriginalErr:   err,
	}
}

func paymentTypeFromMetadata(metadata map[string]string) models.PaymentType {
	if metadata["payment_type"] == string(models.PaymentFinal) {
		return models.PaymentFinal
	}
	return models.PaymentDeposit
}
