package payment_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v82"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/payment/storage"
)

type MockPaymentStore struct {
	mock.Mock
}

func (m *MockPaymentStore) SavePayment(p *models.Payment) error {
	return m.Called(p).Error(0)
}

func (m *MockPaymentStore) GetPayment(paymentID string) (*models.Payment, error) {
	args := m.Called(paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) UpdatePayment(p *models.Payment) error {
	return m.Called(p).Error(0)
}

func (m *MockPaymentStore) ListByBooking(bookingID string) ([]*models.Payment, error) {
	args := m.Called(bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetLatestPendingByBooking(bookingID string) (*models.Payment, error) {
	args := m.Called(bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetPaymentBySessionID(sessionID string) (*models.Payment, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) GetPaymentByIntentID(intentID string) (*models.Payment, error) {
	args := m.Called(intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentStore) Close() error {
	return m.Called().Error(0)
}

func (m *MockPaymentStore) HealthCheck() error {
	return m.Called().Error(0)
}

type MockBookings struct {
	mock.Mock
}

func (m *MockBookings) GetBooking(ctx context.Context, id string) (*models.BookingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingRequest), args.Error(1)
}

func (m *MockBookings) MarkDepositPaid(ctx context.Context, id string, paidAt time.Time) error {
	return m.Called(ctx, id, paidAt).Error(0)
}

func (m *MockBookings) AcceptCounter(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func sessionEvent(sessionID, bookingID string, amountCents int64, paymentType string) stripe.Event {
	metadata := map[string]string{"booking_id": bookingID}
	if paymentType != "" {
		metadata["payment_type"] = paymentType
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"id":             sessionID,
		"amount_total":   amountCents,
		"currency":       "usd",
		"payment_intent": "pi_" + sessionID,
		"metadata":       metadata,
	})
	return stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func newProcessor(t *testing.T) (*payment.WebhookProcessor, *MockPaymentStore, *MockBookings) {
	t.Helper()
	store := new(MockPaymentStore)
	bookings := new(MockBookings)
	return payment.NewWebhookProcessor(store, bookings, logger.NewLogger()), store, bookings
}

func TestSessionCompletedSettlesPendingDeposit(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	pending := &models.Payment{
		PaymentID:   "pay-1",
		BookingID:   "bk-1",
		Amount:      1500,
		PaymentType: models.PaymentDeposit,
		Status:      models.StatusPending,
	}
	store.On("GetPaymentBySessionID", "cs_1").Return(nil, storage.ErrNotFound)
	store.On("GetLatestPendingByBooking", "bk-1").Return(pending, nil)
	store.On("UpdatePayment", pending).Return(nil)
	bookings.On("GetBooking", ctx, "bk-1").Return(&models.BookingRequest{ID: "bk-1", Status: models.BookingApproved}, nil)
	bookings.On("MarkDepositPaid", ctx, "bk-1", mock.Anything).Return(nil)

	err := p.Process(ctx, sessionEvent("cs_1", "bk-1", 150000, "deposit"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, pending.Status)
	assert.Equal(t, "cs_1", pending.SessionID)
	assert.Equal(t, "pi_cs_1", pending.IntentID)
	assert.False(t, pending.PaidAt.IsZero())
	bookings.AssertCalled(t, "MarkDepositPaid", ctx, "bk-1", mock.Anything)
	bookings.AssertNotCalled(t, "AcceptCounter", mock.Anything, mock.Anything)
}

func TestSessionCompletedRedeliveryIsAcknowledged(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	settled := &models.Payment{
		PaymentID: "pay-1",
		BookingID: "bk-1",
		SessionID: "cs_1",
		Status:    models.StatusSucceeded,
	}
	store.On("GetPaymentBySessionID", "cs_1").Return(settled, nil)

	err := p.Process(ctx, sessionEvent("cs_1", "bk-1", 150000, "deposit"))

	assert.NoError(t, err)
	store.AssertNotCalled(t, "UpdatePayment", mock.Anything)
	store.AssertNotCalled(t, "SavePayment", mock.Anything)
	bookings.AssertNotCalled(t, "MarkDepositPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionCompletedSynthesizesMissingRow(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	store.On("GetPaymentBySessionID", "cs_1").Return(nil, storage.ErrNotFound)
	store.On("GetLatestPendingByBooking", "bk-1").Return(nil, storage.ErrNotFound)

	var saved *models.Payment
	store.On("SavePayment", mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(0).(*models.Payment)
	}).Return(nil)
	bookings.On("GetBooking", ctx, "bk-1").Return(&models.BookingRequest{ID: "bk-1", Status: models.BookingApproved}, nil)
	bookings.On("MarkDepositPaid", ctx, "bk-1", mock.Anything).Return(nil)

	err := p.Process(ctx, sessionEvent("cs_1", "bk-1", 150000, "deposit"))

	assert.NoError(t, err)
	assert.NotNil(t, saved)
	assert.Equal(t, 1500.0, saved.Amount)
	assert.Equal(t, models.StatusSucceeded, saved.Status)
	assert.Equal(t, "cs_1", saved.SessionID)
	assert.Equal(t, models.PaymentDeposit, saved.PaymentType)
}

func TestSessionCompletedCounteredBookingAccepts(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	pending := &models.Payment{
		PaymentID:   "pay-1",
		BookingID:   "bk-1",
		PaymentType: models.PaymentDeposit,
		Status:      models.StatusPending,
	}
	store.On("GetPaymentBySessionID", "cs_1").Return(nil, storage.ErrNotFound)
	store.On("GetLatestPendingByBooking", "bk-1").Return(pending, nil)
	store.On("UpdatePayment", pending).Return(nil)
	bookings.On("GetBooking", ctx, "bk-1").Return(&models.BookingRequest{ID: "bk-1", Status: models.BookingCountered}, nil)
	bookings.On("AcceptCounter", ctx, "bk-1").Return(nil)
	bookings.On("MarkDepositPaid", ctx, "bk-1", mock.Anything).Return(nil)

	err := p.Process(ctx, sessionEvent("cs_1", "bk-1", 150000, "deposit"))

	assert.NoError(t, err)
	bookings.AssertCalled(t, "AcceptCounter", ctx, "bk-1")
	bookings.AssertCalled(t, "MarkDepositPaid", ctx, "bk-1", mock.Anything)
}

func TestSessionCompletedFinalPaymentDoesNotAdvanceBooking(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	pending := &models.Payment{
		PaymentID:   "pay-2",
		BookingID:   "bk-1",
		PaymentType: models.PaymentFinal,
		Status:      models.StatusPending,
	}
	store.On("GetPaymentBySessionID", "cs_2").Return(nil, storage.ErrNotFound)
	store.On("GetLatestPendingByBooking", "bk-1").Return(pending, nil)
	store.On("UpdatePayment", pending).Return(nil)

	err := p.Process(ctx, sessionEvent("cs_2", "bk-1", 350000, "final"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, pending.Status)
	bookings.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	bookings.AssertNotCalled(t, "MarkDepositPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionCompletedWithoutBookingMetadata(t *testing.T) {
	p, store, _ := newProcessor(t)

	raw, _ := json.Marshal(map[string]interface{}{"id": "cs_3", "amount_total": 1000})
	event := stripe.Event{Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}}

	err := p.Process(context.Background(), event)

	var whErr *payment.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusBadRequest, whErr.StatusCode)
	store.AssertNotCalled(t, "SavePayment", mock.Anything)
}

func intentEvent(intentID string) stripe.Event {
	raw, _ := json.Marshal(map[string]interface{}{
		"id":       intentID,
		"metadata": map[string]string{"booking_id": "bk-1"},
	})
	return stripe.Event{Type: "payment_intent.succeeded", Data: &stripe.EventData{Raw: raw}}
}

func TestIntentSucceededAlreadyReconciled(t *testing.T) {
	p, store, bookings := newProcessor(t)

	settled := &models.Payment{
		PaymentID:   "pay-1",
		BookingID:   "bk-1",
		PaymentType: models.PaymentDeposit,
		Status:      models.StatusSucceeded,
		IntentID:    "pi_1",
	}
	store.On("GetPaymentByIntentID", "pi_1").Return(settled, nil)

	err := p.Process(context.Background(), intentEvent("pi_1"))

	assert.NoError(t, err)
	store.AssertNotCalled(t, "UpdatePayment", mock.Anything)
	bookings.AssertNotCalled(t, "MarkDepositPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntentRedeliveryLeavesOtherPendingPaymentsAlone(t *testing.T) {
	// A deposit intent retried after its session settled must not flip a
	// later, still-unpaid payment for the same booking.
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	// The deposit already settled through checkout.session.completed
	pendingFinal := &models.Payment{
		PaymentID:   "pay-final",
		BookingID:   "bk-1",
		Amount:      4200,
		PaymentType: models.PaymentFinal,
		Status:      models.StatusPending,
		SessionID:   "cs_final",
	}
	store.On("GetPaymentByIntentID", "pi_deposit").Return(nil, storage.ErrNotFound)

	err := p.Process(ctx, intentEvent("pi_deposit"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, pendingFinal.Status)
	assert.True(t, pendingFinal.PaidAt.IsZero())
	store.AssertNotCalled(t, "GetLatestPendingByBooking", mock.Anything)
	store.AssertNotCalled(t, "UpdatePayment", mock.Anything)
	bookings.AssertNotCalled(t, "MarkDepositPaid", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntentSucceededSettlesItsOwnPendingRow(t *testing.T) {
	p, store, bookings := newProcessor(t)
	ctx := context.Background()

	pending := &models.Payment{
		PaymentID:   "pay-1",
		BookingID:   "bk-1",
		PaymentType: models.PaymentDeposit,
		Status:      models.StatusPending,
		SessionID:   "cs_1",
		IntentID:    "pi_1",
	}
	store.On("GetPaymentByIntentID", "pi_1").Return(pending, nil)
	store.On("UpdatePayment", pending).Return(nil)
	bookings.On("GetBooking", ctx, "bk-1").Return(&models.BookingRequest{ID: "bk-1", Status: models.BookingApproved}, nil)
	bookings.On("MarkDepositPaid", ctx, "bk-1", mock.Anything).Return(nil)

	err := p.Process(ctx, intentEvent("pi_1"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, pending.Status)
	bookings.AssertCalled(t, "MarkDepositPaid", ctx, "bk-1", mock.Anything)
}

func TestUnhandledEventTypeAcknowledged(t *testing.T) {
	p, store, _ := newProcessor(t)

	event := stripe.Event{Type: "charge.refunded", Data: &stripe.EventData{Raw: json.RawMessage(`{}`)}}

	assert.NoError(t, p.Process(context.Background(), event))
	store.AssertExpectations(t)
}

func TestProcessingErrorSurfacesInternalDetail(t *testing.T) {
	p, store, _ := newProcessor(t)

	store.On("GetPaymentBySessionID", "cs_1").Return(nil, storage.ErrNotFound)
	store.On("GetLatestPendingByBooking", "bk-1").Return(nil, fmt.Errorf("connection reset"))

	err := p.Process(context.Background(), sessionEvent("cs_1", "bk-1", 150000, "deposit"))

	var whErr *payment.WebhookError
	assert.ErrorAs(t, err, &whErr)
	assert.Equal(t, http.StatusInternalServerError, whErr.StatusCode)
	assert.Equal(t, "Failed to process payment event", whErr.PublicError)
	assert.Contains(t, whErr.InternalError, "connection reset")
}
