package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/payment/reconcile"
	"ms-booking/internal/payment/services"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/utils"
)

// PaymentMailer sends the generated checkout URL to the client.
type PaymentMailer interface {
	PaymentLink(ctx context.Context, to, clientName, description, url string, amount float64) error
}

type StripeHandler struct {
	stripeService *services.StripeService
	paymentStore  storage.Store
	processor     *payment.WebhookProcessor
	bookings      payment.BookingLifecycle
	producer      *kafka.Producer
	mailer        PaymentMailer
	eventTopic    string
	logger        *logger.Logger
}

func NewStripeHandler(
	stripeService *services.StripeService,
	paymentStore storage.Store,
	processor *payment.WebhookProcessor,
	bookings payment.BookingLifecycle,
	producer *kafka.Producer,
	mailer PaymentMailer,
	eventTopic string,
	logger *logger.Logger,
) *StripeHandler {
	return &StripeHandler{
		stripeService: stripeService,
		paymentStore:  paymentStore,
		processor:     processor,
		bookings:      bookings,
		producer:      producer,
		mailer:        mailer,
		eventTopic:    eventTopic,
		logger:        logger,
	}
}

// CreatePaymentLink generates a hosted Stripe checkout link for a booking.
// When the amount is omitted it defaults to the booking's deposit.
func (h *StripeHandler) CreatePaymentLink(c *gin.Context) {
	var req models.PaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), req.BookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
		return
	}

	if req.Amount == 0 {
		req.Amount = booking.DepositAmount
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload",
			fmt.Sprintf("payment amount must be positive, got %.2f", req.Amount)))
		return
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("Deposit for %s", booking.ClientName)
	}
	if req.PaymentType == "" {
		req.PaymentType = string(models.PaymentDeposit)
	}

	paymentID := utils.GeneratePaymentID()

	session, err := h.stripeService.CreateCheckoutSession(paymentID, &req)
	if err != nil {
		// Gateway failures leave no payment row behind.
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment link creation failed", err.Error()))
		return
	}

	record := &models.Payment{
		PaymentID:   paymentID,
		BookingID:   booking.ID,
		Amount:      req.Amount,
		Currency:    h.stripeService.Currency(),
		PaymentType: models.PaymentType(req.PaymentType),
		Status:      models.StatusPending,
		CheckoutURL: session.URL,
		SessionID:   session.SessionID,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := h.paymentStore.SavePayment(record); err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment record creation failed", err.Error()))
		return
	}

	resp := models.PaymentLinkResponse{
		PaymentID: paymentID,
		URL:       session.URL,
	}

	if png, err := qrcode.Encode(session.URL, qrcode.Medium, 256); err == nil {
		resp.QRCode = base64.StdEncoding.EncodeToString(png)
	} else {
		h.logger.Warn("PAYMENT", fmt.Sprintf("Failed to generate QR code for payment %s: %v", paymentID, err))
	}

	// Email delivery is best effort; the link is returned regardless so the
	// admin can hand it over another way.
	if err := h.mailer.PaymentLink(c.Request.Context(), booking.ClientEmail, booking.ClientName,
		req.Description, session.URL, req.Amount); err != nil {
		h.logger.Warn("EMAIL", fmt.Sprintf("Failed to email payment link for booking %s: %v", booking.ID, err))
	} else {
		resp.EmailSent = true
	}

	h.publishPaymentEvent("payment.link_created", record)

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment link created", resp))
}

// Webhook receives Stripe event notifications.
func (h *StripeHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	event, err := h.stripeService.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Webhook verification failed", "invalid signature"))
		return
	}

	if err := h.processor.Process(c.Request.Context(), event); err != nil {
		var whErr *payment.WebhookError
		if errors.As(err, &whErr) {
			c.JSON(whErr.StatusCode, utils.ErrorResponse("Webhook processing failed", whErr.PublicError))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Webhook processing failed", "internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// PaymentSummary returns the derived balance state for a booking.
func (h *StripeHandler) PaymentSummary(c *gin.Context) {
	bookingID := c.Param("bookingID")

	booking, err := h.bookings.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
		return
	}

	payments, err := h.paymentStore.ListByBooking(bookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load payments", err.Error()))
		return
	}

	summary := reconcile.Summarize(booking, payments, time.Now())
	c.JSON(http.StatusOK, utils.SuccessResponse("Payment summary", summary))
}

// ListPayments returns the raw payment rows for a booking.
func (h *StripeHandler) ListPayments(c *gin.Context) {
	bookingID := c.Param("bookingID")

	payments, err := h.paymentStore.ListByBooking(bookingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to load payments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payments", payments))
}

func (h *StripeHandler) publishPaymentEvent(eventType string, p *models.Payment) {
	if h.producer == nil {
		return
	}
	event := map[string]interface{}{
		"type":       eventType,
		"payment_id": p.PaymentID,
		"booking_id": p.BookingID,
		"amount":     p.Amount,
		"status":     p.Status,
		"timestamp":  time.Now(),
	}
	data, _ := json.Marshal(event)
	if err := h.producer.Publish(h.eventTopic, p.PaymentID, data); err != nil {
		h.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment event: %v", err))
	}
}
