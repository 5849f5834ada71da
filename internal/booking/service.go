package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrHoneypot marks a submission caught by the hidden form field. The
	// caller must answer with a generic 400 so bots cannot learn they
	// were detected.
	ErrHoneypot = errors.New("automated submission detected")

	// ErrInvalidTransition guards the state machine against repeated or
	// out-of-order decision calls.
	ErrInvalidTransition = errors.New("transition not allowed from current booking status")
)

type Store interface {
	CreateBooking(ctx context.Context, b *models.BookingRequest) error
	GetBookingByID(ctx context.Context, id string) (*models.BookingRequest, error)
	GetBookingByToken(ctx context.Context, token string) (*models.BookingRequest, error)
	UpdateBooking(ctx context.Context, b *models.BookingRequest) error
	ListBookings(ctx context.Context, status models.BookingStatus) ([]models.BookingRequest, error)

	CreateOpportunity(ctx context.Context, o *models.Opportunity) error
	GetOpportunityByBookingID(ctx context.Context, bookingID string) (*models.Opportunity, error)
	UpdateOpportunity(ctx context.Context, o *models.Opportunity) error

	CreateProject(ctx context.Context, p *models.Project) error
	GetProjectByBookingID(ctx context.Context, bookingID string) (*models.Project, error)

	SaveProvisionStep(ctx context.Context, s *models.ProvisionStep) error
	GetProvisionSteps(ctx context.Context, bookingID string) ([]models.ProvisionStep, error)
}

// RateLimiter claims the submission slot for an email address. The claim
// and the check are one atomic operation so two near-simultaneous
// submissions cannot both pass. Release gives the slot back when the
// submission fails after the claim, so the client is not locked out by
// a booking that was never stored.
type RateLimiter interface {
	Claim(ctx context.Context, email string) (bool, time.Duration, error)
	Release(ctx context.Context, email string) error
}

// Notifier is the transactional-email gateway. Every method is
// best-effort from the service's point of view: a send failure is logged
// and never rolls back the operation that triggered it.
type Notifier interface {
	BookingReceivedAdmin(ctx context.Context, b *models.BookingRequest) error
	BookingReceivedClient(ctx context.Context, b *models.BookingRequest) error
	BookingApproved(ctx context.Context, b *models.BookingRequest) error
	PortalAccess(ctx context.Context, b *models.BookingRequest, tempPassword string) error
	CounterOffer(ctx context.Context, b *models.BookingRequest) error
	BookingRejected(ctx context.Context, b *models.BookingRequest) error
	LeadCaptured(ctx context.Context, o *models.Opportunity) error
}

// Provisioner creates the login identity and client account for an
// approved booking.
type Provisioner interface {
	ProvisionAccount(ctx context.Context, b *models.BookingRequest, projectID string) (*models.ClientAccount, string, error)
	ResetCredential(ctx context.Context, b *models.BookingRequest) (string, error)
}

type EventPublisher interface {
	PublishBookingEvent(eventType string, b models.BookingRequest) error
}

type Service struct {
	store       Store
	limiter     RateLimiter
	notifier    Notifier
	provisioner Provisioner
	events      EventPublisher
	logger      *logger.Logger
}

func NewService(store Store, limiter RateLimiter, notifier Notifier, provisioner Provisioner, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		limiter:     limiter,
		notifier:    notifier,
		provisioner: provisioner,
		events:      events,
		logger:      log,
	}
}

// ---------------- INTAKE ----------------

func (s *Service) Submit(ctx context.Context, req models.SubmissionRequest) (*models.BookingRequest, error) {
	// Honeypot check comes first: no persistence, no notification, no
	// distinct error surface.
	if req.Website != "" {
		s.logger.LogSecurity("HONEYPOT", fmt.Sprintf("silent rejection for email %s", req.ClientEmail))
		return nil, ErrHoneypot
	}

	if errs := ValidateSubmission(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	ok, retryAfter, err := s.limiter.Claim(ctx, req.ClientEmail)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !ok {
		s.logger.Warn("BOOKING", fmt.Sprintf("cooldown rejection for %s (retry in %s)", req.ClientEmail, retryAfter))
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	deposit := req.DepositAmount
	if deposit == 0 {
		deposit = DepositFor(req.RequestedPrice)
	}

	b := &models.BookingRequest{
		ID:             uuid.NewString(),
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		ClientCompany:  req.ClientCompany,
		ClientType:     models.ClientType(req.ClientType),
		RequestedPrice: req.RequestedPrice,
		DepositAmount:  deposit,
		BookingDate:    req.BookingDate,
		BookingTime:    req.BookingTime,
		ProjectDetails: req.ProjectDetails,
		Status:         models.BookingPending,
		ApprovalToken:  uuid.NewString(),
		CreatedAt:      time.Now(),
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		// Give the cooldown slot back so the client can resubmit right away
		if relErr := s.limiter.Release(ctx, req.ClientEmail); relErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("failed to release cooldown for %s: %v", req.ClientEmail, relErr))
		}
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}
	s.logger.LogBooking("SUBMIT", b.ID, fmt.Sprintf("pending booking for %s, price %.2f, deposit %.2f", b.ClientEmail, b.RequestedPrice, b.DepositAmount))

	// Record a sales lead for the pipeline; failure here never fails the
	// submission.
	lead := &models.Opportunity{
		ID:           uuid.NewString(),
		BookingID:    b.ID,
		ContactName:  b.ClientName,
		ContactEmail: b.ClientEmail,
		Stage:        models.StageNewLead,
		Source:       "booking_form",
		Value:        b.RequestedPrice,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateOpportunity(ctx, lead); err != nil {
		s.logger.Error("CRM", fmt.Sprintf("failed to record lead for booking %s: %v", b.ID, err))
	}

	// Best-effort notifications
	if err := s.notifier.BookingReceivedAdmin(ctx, b); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("admin notification failed for booking %s: %v", b.ID, err))
	}
	if err := s.notifier.BookingReceivedClient(ctx, b); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("client confirmation failed for booking %s: %v", b.ID, err))
	}
	if err := s.events.PublishBookingEvent("booking.submitted", *b); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish failed (booking submitted): %v", err))
	}

	return b, nil
}

// CaptureLead records a marketing capture (newsletter, chatbot) as a
// new_lead opportunity with no booking reference.
func (s *Service) CaptureLead(ctx context.Context, req models.LeadRequest) (*models.Opportunity, error) {
	if req.Website != "" {
		s.logger.LogSecurity("HONEYPOT", "silent lead rejection")
		return nil, ErrHoneypot
	}
	var errs []string
	if req.Name == "" {
		errs = append(errs, "name is required")
	}
	if req.Email == "" || !emailRe.MatchString(req.Email) {
		errs = append(errs, "email must be a valid email address")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	source := req.Source
	if source == "" {
		source = "marketing"
	}
	lead := &models.Opportunity{
		ID:           uuid.NewString(),
		ContactName:  req.Name,
		ContactEmail: req.Email,
		Stage:        models.StageNewLead,
		Source:       source,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateOpportunity(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to record lead: %w", err)
	}
	if err := s.notifier.LeadCaptured(ctx, lead); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("lead notification failed: %v", err))
	}
	return lead, nil
}

// ---------------- ADMIN DECISIONS ----------------

// Approve moves a pending booking to approved and runs the provisioning
// fan-out. Re-approving a booking that already left pending is rejected,
// so a second ClientAccount or Project can never be created for the same
// booking.
func (s *Service) Approve(ctx context.Context, id string, approvedPrice float64, adminNotes string) (*models.BookingRequest, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.Status != models.BookingPending {
		return nil, fmt.Errorf("%w: cannot approve a %s booking", ErrInvalidTransition, b.Status)
	}

	price := approvedPrice
	if price <= 0 {
		price = b.RequestedPrice
	}
	b.ApprovedPrice = price
	if price != b.RequestedPrice {
		// Admin overrode the price, so the deposit tier may have moved
		b.DepositAmount = DepositFor(price)
	}
	b.Status = models.BookingApproved
	b.ApprovedAt = time.Now()
	if adminNotes != "" {
		b.AdminNotes = adminNotes
	}

	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to approve booking %s: %w", id, err)
	}
	s.logger.LogBooking("APPROVE", b.ID, fmt.Sprintf("approved at %.2f, deposit %.2f", b.ApprovedPrice, b.DepositAmount))

	s.runProvisioning(ctx, b)
	return b, nil
}

// Counter proposes a new price. The deposit is recomputed against the
// counter price's own tier, not the tier of the original request.
func (s *Service) Counter(ctx context.Context, id string, counterPrice float64, adminNotes string) (*models.BookingRequest, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.Status != models.BookingPending {
		return nil, fmt.Errorf("%w: cannot counter a %s booking", ErrInvalidTransition, b.Status)
	}
	if counterPrice <= 0 {
		return nil, &ValidationError{Fields: []string{"counter_price must be a positive number"}}
	}

	b.CounterPrice = counterPrice
	b.DepositAmount = DepositFor(counterPrice)
	b.Status = models.BookingCountered
	if adminNotes != "" {
		b.AdminNotes = adminNotes
	}

	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to counter booking %s: %w", id, err)
	}
	s.logger.LogBooking("COUNTER", b.ID, fmt.Sprintf("countered %.2f -> %.2f, deposit %.2f", b.RequestedPrice, b.CounterPrice, b.DepositAmount))

	if err := s.notifier.CounterOffer(ctx, b); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("counter-offer email failed for booking %s: %v", b.ID, err))
	}
	if err := s.events.PublishBookingEvent("booking.countered", *b); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish failed (booking countered): %v", err))
	}
	return b, nil
}

func (s *Service) Reject(ctx context.Context, id string, adminNotes string) (*models.BookingRequest, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.Status != models.BookingPending && b.Status != models.BookingCountered {
		return nil, fmt.Errorf("%w: cannot reject a %s booking", ErrInvalidTransition, b.Status)
	}

	b.Status = models.BookingRejected
	if adminNotes != "" {
		b.AdminNotes = adminNotes
	}
	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to reject booking %s: %w", id, err)
	}
	s.logger.LogBooking("REJECT", b.ID, "booking rejected")

	if err := s.notifier.BookingRejected(ctx, b); err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("rejection email failed for booking %s: %v", b.ID, err))
	}
	if err := s.events.PublishBookingEvent("booking.rejected", *b); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish failed (booking rejected): %v", err))
	}
	return b, nil
}

// Archive is terminal housekeeping; it carries no side effects.
func (s *Service) Archive(ctx context.Context, id string) (*models.BookingRequest, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	switch b.Status {
	case models.BookingApproved, models.BookingAccepted, models.BookingCountered, models.BookingRejected:
	default:
		return nil, fmt.Errorf("%w: cannot archive a %s booking", ErrInvalidTransition, b.Status)
	}
	b.Status = models.BookingArchived
	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to archive booking %s: %w", id, err)
	}
	return b, nil
}

// ---------------- WEBHOOK-DRIVEN TRANSITIONS ----------------

// AcceptCounter is invoked by the payment webhook when a client pays
// against a countered booking; the payment is the acceptance. Calling it
// on a booking that already left countered is a safe no-op so webhook
// re-delivery cannot double-provision.
func (s *Service) AcceptCounter(ctx context.Context, id string) error {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.Status != models.BookingCountered {
		return nil
	}

	b.Status = models.BookingAccepted
	b.ApprovedAt = time.Now()
	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return fmt.Errorf("failed to accept counter for booking %s: %w", id, err)
	}
	s.logger.LogBooking("ACCEPT", b.ID, fmt.Sprintf("counter accepted by payment at %.2f", b.CounterPrice))

	// Provisioning was deferred while the counter was outstanding
	s.runProvisioning(ctx, b)

	if err := s.events.PublishBookingEvent("booking.accepted", *b); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish failed (booking accepted): %v", err))
	}
	return nil
}

// MarkDepositPaid flags the booking once its deposit payment succeeds.
// Idempotent under webhook retries.
func (s *Service) MarkDepositPaid(ctx context.Context, id string, paidAt time.Time) error {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.DepositPaid {
		return nil
	}
	b.DepositPaid = true
	b.DepositPaidAt = paidAt
	if err := s.store.UpdateBooking(ctx, b); err != nil {
		return fmt.Errorf("failed to mark deposit paid for booking %s: %w", id, err)
	}
	s.logger.LogBooking("DEPOSIT", b.ID, "deposit marked paid")
	return nil
}

// ---------------- READS ----------------

func (s *Service) GetBooking(ctx context.Context, id string) (*models.BookingRequest, error) {
	return s.store.GetBookingByID(ctx, id)
}

func (s *Service) GetBookingByToken(ctx context.Context, token string) (*models.BookingRequest, error) {
	return s.store.GetBookingByToken(ctx, token)
}

func (s *Service) ListBookings(ctx context.Context, status models.BookingStatus) ([]models.BookingRequest, error) {
	return s.store.ListBookings(ctx, status)
}

func (s *Service) ProvisionSteps(ctx context.Context, bookingID string) ([]models.ProvisionStep, error) {
	return s.store.GetProvisionSteps(ctx, bookingID)
}

// ---------------- PROVISIONING FAN-OUT ----------------

// RetryProvisioning re-runs the fan-out for an approved or accepted
// booking. Steps that already completed are skipped.
func (s *Service) RetryProvisioning(ctx context.Context, id string) ([]models.ProvisionStep, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("booking %s not found: %w", id, err)
	}
	if b.Status != models.BookingApproved && b.Status != models.BookingAccepted {
		return nil, fmt.Errorf("%w: booking %s is %s, nothing to provision", ErrInvalidTransition, id, b.Status)
	}
	s.runProvisioning(ctx, b)
	return s.store.GetProvisionSteps(ctx, b.ID)
}

var provisionOrder = []string{
	models.StepOpportunity,
	models.StepProject,
	models.StepAccount,
	models.StepApprovalEmail,
	models.StepPortalEmail,
	models.StepEvent,
}

type provisionState struct {
	opportunityID string
	projectID     string
	tempPassword  string
}

// runProvisioning executes the approval fan-out. Every step is attempted
// and its outcome persisted; a failed step never stops the ones after it.
// The caller already committed the status transition, so partial failure
// here still reports success for the decision itself.
func (s *Service) runProvisioning(ctx context.Context, b *models.BookingRequest) {
	done := make(map[string]bool)
	if steps, err := s.store.GetProvisionSteps(ctx, b.ID); err == nil {
		for _, st := range steps {
			if st.Status == models.StepDone {
				done[st.Step] = true
			}
		}
	}

	state := &provisionState{}
	for _, step := range provisionOrder {
		if done[step] {
			s.restoreStepState(ctx, b, step, state)
			continue
		}

		err := s.runStep(ctx, b, step, state)
		record := &models.ProvisionStep{
			ID:        uuid.NewString(),
			BookingID: b.ID,
			Step:      step,
			Status:    models.StepDone,
			RunAt:     time.Now(),
		}
		if err != nil {
			record.Status = models.StepFailed
			record.Error = err.Error()
			s.logger.Error("PROVISION", fmt.Sprintf("step %s failed for booking %s: %v", step, b.ID, err))
		} else {
			s.logger.Info("PROVISION", fmt.Sprintf("step %s completed for booking %s", step, b.ID))
		}
		if saveErr := s.store.SaveProvisionStep(ctx, record); saveErr != nil {
			s.logger.Error("PROVISION", fmt.Sprintf("failed to record step %s for booking %s: %v", step, b.ID, saveErr))
		}
	}
}

// restoreStepState reloads identifiers produced by steps that completed
// in an earlier run, so retried steps after them still have their inputs.
func (s *Service) restoreStepState(ctx context.Context, b *models.BookingRequest, step string, state *provisionState) {
	switch step {
	case models.StepOpportunity:
		if o, err := s.store.GetOpportunityByBookingID(ctx, b.ID); err == nil {
			state.opportunityID = o.ID
		}
	case models.StepProject:
		if p, err := s.store.GetProjectByBookingID(ctx, b.ID); err == nil {
			state.projectID = p.ID
		}
	}
}

func (s *Service) runStep(ctx context.Context, b *models.BookingRequest, step string, state *provisionState) error {
	switch step {
	case models.StepOpportunity:
		// Promote the submission lead to won, or create one if the lead
		// record never made it in.
		existing, err := s.store.GetOpportunityByBookingID(ctx, b.ID)
		if err == nil && existing != nil {
			existing.Stage = models.StageWon
			existing.Value = b.EffectivePrice()
			if err := s.store.UpdateOpportunity(ctx, existing); err != nil {
				return err
			}
			state.opportunityID = existing.ID
			return nil
		}
		o := &models.Opportunity{
			ID:           uuid.NewString(),
			BookingID:    b.ID,
			ContactName:  b.ClientName,
			ContactEmail: b.ClientEmail,
			Stage:        models.StageWon,
			Source:       "booking_form",
			Value:        b.EffectivePrice(),
			CreatedAt:    time.Now(),
		}
		if err := s.store.CreateOpportunity(ctx, o); err != nil {
			return err
		}
		state.opportunityID = o.ID
		return nil

	case models.StepProject:
		name := b.ClientName
		if b.ClientCompany != "" {
			name = b.ClientCompany
		}
		p := &models.Project{
			ID:            uuid.NewString(),
			BookingID:     b.ID,
			OpportunityID: state.opportunityID,
			Name:          fmt.Sprintf("%s - %s", name, b.BookingDate),
			Status:        models.ProjectPreProduction,
			ShootDate:     b.BookingDate,
			CreatedAt:     time.Now(),
		}
		if err := s.store.CreateProject(ctx, p); err != nil {
			return err
		}
		state.projectID = p.ID
		return nil

	case models.StepAccount:
		_, temp, err := s.provisioner.ProvisionAccount(ctx, b, state.projectID)
		if err != nil {
			return err
		}
		state.tempPassword = temp
		return nil

	case models.StepApprovalEmail:
		return s.notifier.BookingApproved(ctx, b)

	case models.StepPortalEmail:
		temp := state.tempPassword
		if temp == "" {
			// Retried run: the original credential is gone, issue a new one
			var err error
			temp, err = s.provisioner.ResetCredential(ctx, b)
			if err != nil {
				return err
			}
		}
		return s.notifier.PortalAccess(ctx, b, temp)

	case models.StepEvent:
		return s.events.PublishBookingEvent("booking.approved", *b)
	}
	return fmt.Errorf("unknown provisioning step: %s", step)
}
