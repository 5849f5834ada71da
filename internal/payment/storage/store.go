package storage

import (
	"errors"

	"ms-booking/internal/models"
)

// ErrNotFound is returned when no payment row matches the lookup.
var ErrNotFound = errors.New("payment not found")

type Store interface {
	// Payment operations
	SavePayment(payment *models.Payment) error
	GetPayment(id string) (*models.Payment, error)
	UpdatePayment(payment *models.Payment) error
	ListByBooking(bookingID string) ([]*models.Payment, error)
	GetLatestPendingByBooking(bookingID string) (*models.Payment, error)
	GetPaymentBySessionID(sessionID string) (*models.Payment, error)
	GetPaymentByIntentID(intentID string) (*models.Payment, error)

	// Health and maintenance
	Close() error
	HealthCheck() error
}
