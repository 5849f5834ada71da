package services

import (
	"errors"
	"fmt"
	"strings"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrWebhookVerification    = errors.New("webhook signature verification failed")
)

// StripeService handles integration with the Stripe payment gateway.
type StripeService struct {
	client        *client.API
	webhookSecret string
	currency      string
	baseURL       string
	log           *logger.Logger
}

// NewStripeService creates a new instance of StripeService
func NewStripeService(secretKey, webhookSecret, currency, baseURL string, log *logger.Logger) (*StripeService, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client:        sc,
		webhookSecret: webhookSecret,
		currency:      currency,
		baseURL:       strings.TrimRight(baseURL, "/"),
		log:           log,
	}, nil
}

// Currency returns the configured settlement currency.
func (s *StripeService) Currency() string {
	return s.currency
}

// CheckoutSession is the subset of the hosted session the gateway needs.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// CreateCheckoutSession creates a hosted Stripe Checkout session for a
// booking payment. The booking and payment ids ride along as metadata so
// the webhook can reconcile the completed session.
func (s *StripeService) CreateCheckoutSession(paymentID string, req *models.PaymentLinkRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		s.log.Error("STRIPE", fmt.Sprintf("Invalid amount for booking %s: %.2f", req.BookingID, req.Amount))
		return nil, fmt.Errorf("invalid payment amount: %.2f", req.Amount)
	}

	// Stripe uses the smallest currency unit
	amountInCents := int64(req.Amount * 100)

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(amountInCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/payment/cancelled"),
	}
	params.AddMetadata("booking_id", req.BookingID)
	params.AddMetadata("payment_id", paymentID)
	params.AddMetadata("payment_type", req.PaymentType)

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for booking %s: %v", req.BookingID, err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Checkout session %s created for booking %s (%.2f %s)",
		sess.ID, req.BookingID, req.Amount, s.currency))

	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook checks the Stripe signature and parses the event payload.
func (s *StripeService) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		s.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return stripe.Event{}, ErrStripeClientInitFailed
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, opts)
	if err != nil {
		s.log.Error("WEBHOOK", fmt.Sprintf("Signature verification failed: %v", err))
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}
	return event, nil
}
