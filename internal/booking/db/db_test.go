package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/models"
)

func setupDB(t *testing.T) *bookingdb.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bookingdb.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return &bookingdb.DB{Bun: bunDB}
}

func sampleBooking(id, token string, created time.Time) *models.BookingRequest {
	return &models.BookingRequest{
		ID:             id,
		ClientName:     "Jordan Pierce",
		ClientEmail:    "jordan@example.com",
		ClientPhone:    "+1 555 0100",
		ClientType:     models.ClientCommercial,
		RequestedPrice: 4000,
		DepositAmount:  2000,
		BookingDate:    "2026-10-12",
		BookingTime:    "10:00",
		Status:         models.BookingPending,
		ApprovalToken:  token,
		CreatedAt:      created,
	}
}

func TestBookingRoundTrip(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	b := sampleBooking("bk-1", "tok-1", time.Now())
	assert.NoError(t, store.CreateBooking(ctx, b))

	got, err := store.GetBookingByID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, "jordan@example.com", got.ClientEmail)
	assert.Equal(t, models.BookingPending, got.Status)
	assert.Equal(t, 2000.0, got.DepositAmount)

	byToken, err := store.GetBookingByToken(ctx, "tok-1")
	assert.NoError(t, err)
	assert.Equal(t, "bk-1", byToken.ID)
}

func TestGetBookingNotFound(t *testing.T) {
	store := setupDB(t)

	_, err := store.GetBookingByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateBookingPersistsDecision(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	b := sampleBooking("bk-1", "tok-1", time.Now())
	assert.NoError(t, store.CreateBooking(ctx, b))

	b.Status = models.BookingApproved
	b.ApprovedPrice = 4500
	b.DepositAmount = 2250
	b.AdminNotes = "confirmed crew availability"
	b.ApprovedAt = time.Now()
	assert.NoError(t, store.UpdateBooking(ctx, b))

	got, err := store.GetBookingByID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, models.BookingApproved, got.Status)
	assert.Equal(t, 4500.0, got.ApprovedPrice)
	assert.Equal(t, "confirmed crew availability", got.AdminNotes)
}

func TestListBookingsFiltersAndOrders(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	older := sampleBooking("bk-old", "tok-old", time.Now().Add(-time.Hour))
	newer := sampleBooking("bk-new", "tok-new", time.Now())
	rejected := sampleBooking("bk-rej", "tok-rej", time.Now().Add(-2*time.Hour))
	rejected.Status = models.BookingRejected

	assert.NoError(t, store.CreateBooking(ctx, older))
	assert.NoError(t, store.CreateBooking(ctx, newer))
	assert.NoError(t, store.CreateBooking(ctx, rejected))

	all, err := store.ListBookings(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first
	assert.Equal(t, "bk-new", all[0].ID)

	pending, err := store.ListBookings(ctx, models.BookingPending)
	assert.NoError(t, err)
	assert.Len(t, pending, 2)

	none, err := store.ListBookings(ctx, models.BookingArchived)
	assert.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOpportunityLifecycle(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	o := &models.Opportunity{
		ID:           "opp-1",
		BookingID:    "bk-1",
		ContactName:  "Jordan Pierce",
		ContactEmail: "jordan@example.com",
		Stage:        models.StageNewLead,
		Source:       "booking_form",
		Value:        4000,
		CreatedAt:    time.Now(),
	}
	assert.NoError(t, store.CreateOpportunity(ctx, o))

	got, err := store.GetOpportunityByBookingID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StageNewLead, got.Stage)

	got.Stage = models.StageWon
	got.Value = 4500
	assert.NoError(t, store.UpdateOpportunity(ctx, got))

	won, err := store.GetOpportunityByBookingID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StageWon, won.Stage)
	assert.Equal(t, 4500.0, won.Value)
}

func TestProjectRoundTrip(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	p := &models.Project{
		ID:        "prj-1",
		BookingID: "bk-1",
		Name:      "Pierce Media - 2026-10-12",
		Status:    models.ProjectPreProduction,
		ShootDate: "2026-10-12",
		CreatedAt: time.Now(),
	}
	assert.NoError(t, store.CreateProject(ctx, p))

	got, err := store.GetProjectByBookingID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, models.ProjectPreProduction, got.Status)
	assert.Equal(t, "2026-10-12", got.ShootDate)
}

func TestPortalUserAndAccount(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	u := &models.PortalUser{
		ID:           "usr-1",
		Email:        "jordan@example.com",
		PasswordHash: "hash-1",
		Role:         "client",
		CreatedAt:    time.Now(),
	}
	assert.NoError(t, store.CreatePortalUser(ctx, u))

	got, err := store.GetPortalUserByEmail(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "usr-1", got.ID)

	got.PasswordHash = "hash-2"
	assert.NoError(t, store.UpdatePortalUser(ctx, got))
	rehashed, err := store.GetPortalUserByEmail(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "hash-2", rehashed.PasswordHash)

	acc := &models.ClientAccount{
		ID:             "acc-1",
		UserID:         "usr-1",
		BookingID:      "bk-1",
		Status:         models.AccountActive,
		StorageLimitGB: 50,
		CreatedAt:      time.Now(),
	}
	assert.NoError(t, store.CreateClientAccount(ctx, acc))

	byBooking, err := store.GetClientAccountByBookingID(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Equal(t, "usr-1", byBooking.UserID)
	assert.Equal(t, models.AccountActive, byBooking.Status)
}

func TestProvisionStepsOrderedByRunTime(t *testing.T) {
	store := setupDB(t)
	ctx := context.Background()

	base := time.Now()
	steps := []*models.ProvisionStep{
		{ID: "st-2", BookingID: "bk-1", Step: models.StepProject, Status: models.StepDone, RunAt: base.Add(time.Second)},
		{ID: "st-1", BookingID: "bk-1", Step: models.StepOpportunity, Status: models.StepDone, RunAt: base},
		{ID: "st-3", BookingID: "bk-1", Step: models.StepPortalEmail, Status: models.StepFailed, Error: "smtp down", RunAt: base.Add(2 * time.Second)},
	}
	for _, s := range steps {
		assert.NoError(t, store.SaveProvisionStep(ctx, s))
	}

	got, err := store.GetProvisionSteps(ctx, "bk-1")
	assert.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, models.StepOpportunity, got[0].Step)
	assert.Equal(t, models.StepPortalEmail, got[2].Step)
	assert.Equal(t, "smtp down", got[2].Error)

	empty, err := store.GetProvisionSteps(ctx, "bk-other")
	assert.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
