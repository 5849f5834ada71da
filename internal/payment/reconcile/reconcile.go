// Package reconcile derives the payment state of a booking from its
// payment rows. Nothing here is persisted; summaries are recomputed on
// every read so they can never drift from the underlying ledger.
package reconcile

import (
	"time"

	"ms-booking/internal/models"
)

// Summarize folds a booking's payment rows into a balance summary.
// Only succeeded payments count toward the paid total; the outstanding
// balance never goes below zero even if the ledger overshoots the price.
func Summarize(b *models.BookingRequest, payments []*models.Payment, now time.Time) models.BalanceSummary {
	total := b.EffectivePrice()

	var paid float64
	depositPaid := b.DepositPaid
	for _, p := range payments {
		if p.Status != models.StatusSucceeded {
			continue
		}
		paid += p.Amount
		if p.PaymentType == models.PaymentDeposit {
			depositPaid = true
		}
	}

	outstanding := total - paid
	if outstanding < 0 {
		outstanding = 0
	}

	overdue := false
	if !b.FinalPaymentDue.IsZero() && now.After(b.FinalPaymentDue) && outstanding > 0 {
		overdue = true
	}

	return models.BalanceSummary{
		BookingID:           b.ID,
		TotalPrice:          total,
		TotalPaid:           paid,
		OutstandingBalance:  outstanding,
		DepositPaid:         depositPaid,
		FullPaymentReceived: total > 0 && paid >= total,
		Overdue:             overdue,
	}
}
