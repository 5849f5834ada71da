package notify

import (
	"context"
	"fmt"
	"strings"

	"ms-booking/internal/config"
	"ms-booking/internal/models"
)

// Service renders booking lifecycle emails and hands them to the Mailer.
type Service struct {
	mailer Mailer
	email  config.EmailConfig
	site   config.SiteConfig
}

func NewService(mailer Mailer, email config.EmailConfig, site config.SiteConfig) *Service {
	return &Service{mailer: mailer, email: email, site: site}
}

func (s *Service) portalLink(token string) string {
	return fmt.Sprintf("%s/booking-portal?token=%s", strings.TrimRight(s.site.BaseURL, "/"), token)
}

func (s *Service) loginLink() string {
	return strings.TrimRight(s.site.BaseURL, "/") + "/client/login"
}

func (s *Service) BookingReceivedAdmin(ctx context.Context, b *models.BookingRequest) error {
	subject := fmt.Sprintf("New booking request from %s", b.ClientName)
	body := fmt.Sprintf(`A new booking request has been submitted.

Client:    %s
Email:     %s
Phone:     %s
Company:   %s
Type:      %s
Date:      %s %s
Price:     $%.2f
Details:   %s

Review it in the admin dashboard to approve, counter or reject.
`, b.ClientName, b.ClientEmail, b.ClientPhone, b.ClientCompany, b.ClientType,
		b.BookingDate, b.BookingTime, b.RequestedPrice, b.ProjectDetails)
	return s.mailer.Send(ctx, s.email.AdminAddress, subject, body)
}

func (s *Service) BookingReceivedClient(ctx context.Context, b *models.BookingRequest) error {
	subject := "We received your booking request"
	body := fmt.Sprintf(`Hi %s,

Thanks for your booking request. Here is what we have on file:

Date:      %s %s
Price:     $%.2f

We review every request personally and will get back to you shortly with
a confirmation or a revised offer.
`, b.ClientName, b.BookingDate, b.BookingTime, b.RequestedPrice)
	return s.mailer.Send(ctx, b.ClientEmail, subject, body)
}

func (s *Service) BookingApproved(ctx context.Context, b *models.BookingRequest) error {
	subject := "Your booking is confirmed"
	body := fmt.Sprintf(`Hi %s,

Great news: your booking for %s %s has been approved.

Agreed price:    $%.2f
Deposit due:     $%.2f

To secure your date, please pay the deposit through your booking portal:

%s

The remaining balance is due after delivery.
`, b.ClientName, b.BookingDate, b.BookingTime, b.EffectivePrice(), b.DepositAmount,
		s.portalLink(b.ApprovalToken))
	return s.mailer.Send(ctx, b.ClientEmail, subject, body)
}

func (s *Service) PortalAccess(ctx context.Context, b *models.BookingRequest, tempPassword string) error {
	subject := "Your client portal access"
	body := fmt.Sprintf(`Hi %s,

A client portal account has been created for your project. You can use it
to follow progress, review deliverables and manage payments.

Login:     %s
Password:  %s

Sign in here and change your password on first login:

%s
`, b.ClientName, b.ClientEmail, tempPassword, s.loginLink())
	return s.mailer.Send(ctx, b.ClientEmail, subject, body)
}

func (s *Service) CounterOffer(ctx context.Context, b *models.BookingRequest) error {
	subject := "A revised offer for your booking"
	body := fmt.Sprintf(`Hi %s,

Thanks again for your request. Based on the scope you described we can
offer the following:

Requested price:  $%.2f
Our offer:        $%.2f
Deposit due:      $%.2f

If that works for you, accept the offer and pay the deposit through your
booking portal:

%s

Nothing is booked until the deposit is received, so your date stays open
to others in the meantime.
`, b.ClientName, b.RequestedPrice, b.CounterPrice, b.DepositAmount, s.portalLink(b.ApprovalToken))
	return s.mailer.Send(ctx, b.ClientEmail, subject, body)
}

func (s *Service) BookingRejected(ctx context.Context, b *models.BookingRequest) error {
	subject := "About your booking request"
	body := fmt.Sprintf(`Hi %s,

Unfortunately we are unable to take on your project for %s.
`, b.ClientName, b.BookingDate)
	if b.AdminNotes != "" {
		body += "\n" + b.AdminNotes + "\n"
	}
	body += "\nFeel free to reach out with a different date or scope.\n"
	return s.mailer.Send(ctx, b.ClientEmail, subject, body)
}

func (s *Service) LeadCaptured(ctx context.Context, o *models.Opportunity) error {
	subject := fmt.Sprintf("New lead: %s", o.ContactName)
	body := fmt.Sprintf(`A new lead has been captured.

Name:    %s
Email:   %s
Source:  %s
Value:   $%.2f
`, o.ContactName, o.ContactEmail, o.Source, o.Value)
	return s.mailer.Send(ctx, s.email.AdminAddress, subject, body)
}

// PaymentLink is sent by the payment API when an admin issues a checkout
// link manually; it is not part of the Notifier fan-out.
func (s *Service) PaymentLink(ctx context.Context, to, clientName, description, url string, amount float64) error {
	subject := "Payment request"
	body := fmt.Sprintf(`Hi %s,

%s

Amount due:  $%.2f

Pay securely here:

%s
`, clientName, description, amount, url)
	return s.mailer.Send(ctx, to, subject, body)
}
