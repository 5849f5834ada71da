package booking

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ms-booking/internal/models"
)

const (
	MinRequestedPrice = 300
	MaxRequestedPrice = 100000

	// Deposits are 50% below this price and 30% at or above it.
	depositTierThreshold = 5000
	depositRateLow       = 0.50
	depositRateHigh      = 0.30
)

// DepositFor computes the required deposit for a price. The tiered rate
// is a fixed business rule, not configurable per request.
func DepositFor(price float64) float64 {
	if price >= depositTierThreshold {
		return price * depositRateHigh
	}
	return price * depositRateLow
}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidateSubmission checks every field of an intake payload and returns
// the full list of failures, so the client can fix the form in one pass.
func ValidateSubmission(req models.SubmissionRequest) []string {
	var errs []string

	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		errs = append(errs, "client_name is required")
	} else if len(name) > 100 {
		errs = append(errs, "client_name must be 100 characters or less")
	}

	email := strings.TrimSpace(req.ClientEmail)
	if email == "" || !emailRe.MatchString(email) {
		errs = append(errs, "client_email must be a valid email address")
	} else if len(email) > 255 {
		errs = append(errs, "client_email must be 255 characters or less")
	}

	// "N/A" is a permitted sentinel for the quick-form flow
	phone := strings.TrimSpace(req.ClientPhone)
	if phone == "" {
		errs = append(errs, "client_phone is required")
	} else if phone != "N/A" && len(phone) > 50 {
		errs = append(errs, "client_phone must be 50 characters or less")
	}

	switch models.ClientType(req.ClientType) {
	case models.ClientCommercial, models.ClientSmallBusiness:
	default:
		errs = append(errs, "client_type must be commercial or small_business")
	}

	if req.RequestedPrice < MinRequestedPrice || req.RequestedPrice > MaxRequestedPrice {
		errs = append(errs, fmt.Sprintf("requested_price must be between %d and %d", MinRequestedPrice, MaxRequestedPrice))
	}

	if req.DepositAmount < 0 || req.DepositAmount > req.RequestedPrice {
		errs = append(errs, "deposit_amount must be between 0 and requested_price")
	}

	if len(req.ProjectDetails) > 5000 {
		errs = append(errs, "project_details must be 5000 characters or less")
	}

	if len(req.ClientCompany) > 200 {
		errs = append(errs, "client_company must be 200 characters or less")
	}

	if !dateRe.MatchString(req.BookingDate) {
		errs = append(errs, "booking_date must be in YYYY-MM-DD format")
	} else if _, err := time.Parse("2006-01-02", req.BookingDate); err != nil {
		errs = append(errs, "booking_date is not a valid calendar date")
	}

	if strings.TrimSpace(req.BookingTime) == "" {
		errs = append(errs, "booking_time is required")
	}

	return errs
}

// ValidationError carries the itemized field failures of a rejected
// submission.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// RateLimitError signals a resubmission inside the cooldown window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many submissions, try again in %s", e.RetryAfter.Round(time.Second))
}
