package db

import (
	"context"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

func (d *DB) CreateBooking(ctx context.Context, b *models.BookingRequest) error {
	_, err := d.Bun.NewInsert().Model(b).Exec(ctx)
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	var b models.BookingRequest
	err := d.Bun.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookingByToken resolves the approval token carried by the client's
// payment deep link.
func (d *DB) GetBookingByToken(ctx context.Context, token string) (*models.BookingRequest, error) {
	var b models.BookingRequest
	err := d.Bun.NewSelect().
		Model(&b).
		Where("approval_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DB) UpdateBooking(ctx context.Context, b *models.BookingRequest) error {
	_, err := d.Bun.NewUpdate().
		Model(b).
		Column("client_name", "client_email", "client_phone", "client_company", "client_type",
			"requested_price", "approved_price", "counter_price", "deposit_amount",
			"booking_date", "booking_time", "project_details",
			"status", "admin_notes", "deposit_paid", "deposit_paid_at", "final_payment_due",
			"approved_at").
		Where("id = ?", b.ID).
		Exec(ctx)
	return err
}

func (d *DB) ListBookings(ctx context.Context, status models.BookingStatus) ([]models.BookingRequest, error) {
	var bookings []models.BookingRequest
	q := d.Bun.NewSelect().
		Model(&bookings).
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.BookingRequest{}
	}
	return bookings, nil
}

// ---------------- CRM ----------------

func (d *DB) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	_, err := d.Bun.NewInsert().Model(o).Exec(ctx)
	return err
}

func (d *DB) GetOpportunityByBookingID(ctx context.Context, bookingID string) (*models.Opportunity, error) {
	var o models.Opportunity
	err := d.Bun.NewSelect().
		Model(&o).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (d *DB) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	_, err := d.Bun.NewUpdate().
		Model(o).
		Column("stage", "value", "booking_id").
		Where("id = ?", o.ID).
		Exec(ctx)
	return err
}

// ---------------- PROJECTS ----------------

func (d *DB) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}

func (d *DB) GetProjectByBookingID(ctx context.Context, bookingID string) (*models.Project, error) {
	var p models.Project
	err := d.Bun.NewSelect().
		Model(&p).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ---------------- ACCOUNTS ----------------

func (d *DB) CreatePortalUser(ctx context.Context, u *models.PortalUser) error {
	_, err := d.Bun.NewInsert().Model(u).Exec(ctx)
	return err
}

func (d *DB) GetPortalUserByEmail(ctx context.Context, email string) (*models.PortalUser, error) {
	var u models.PortalUser
	err := d.Bun.NewSelect().
		Model(&u).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) UpdatePortalUser(ctx context.Context, u *models.PortalUser) error {
	_, err := d.Bun.NewUpdate().
		Model(u).
		Column("password_hash", "role").
		Where("id = ?", u.ID).
		Exec(ctx)
	return err
}

func (d *DB) CreateClientAccount(ctx context.Context, a *models.ClientAccount) error {
	_, err := d.Bun.NewInsert().Model(a).Exec(ctx)
	return err
}

func (d *DB) GetClientAccountByBookingID(ctx context.Context, bookingID string) (*models.ClientAccount, error) {
	var a models.ClientAccount
	err := d.Bun.NewSelect().
		Model(&a).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ---------------- PROVISION STEPS ----------------

func (d *DB) SaveProvisionStep(ctx context.Context, s *models.ProvisionStep) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

func (d *DB) GetProvisionSteps(ctx context.Context, bookingID string) ([]models.ProvisionStep, error) {
	var steps []models.ProvisionStep
	err := d.Bun.NewSelect().
		Model(&steps).
		Where("booking_id = ?", bookingID).
		Order("run_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = []models.ProvisionStep{}
	}
	return steps, nil
}
