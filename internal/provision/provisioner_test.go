package provision_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/provision"
)

func setupProvisioner(t *testing.T) (*provision.AccountProvisioner, *bookingdb.DB) {
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

	store := &bookingdb.DB{Bun: bunDB}
	return provision.NewAccountProvisioner(store, logger.NewLogger()), store
}

func approvedBooking() *models.BookingRequest {
	return &models.BookingRequest{
		ID:            "bk-1",
		ClientName:    "Jordan Pierce",
		ClientEmail:   "jordan@example.com",
		ClientCompany: "Pierce Media",
		Status:        models.BookingApproved,
		CreatedAt:     time.Now(),
	}
}

func TestProvisionAccountCreatesUserAndAccount(t *testing.T) {
	p, store := setupProvisioner(t)
	ctx := context.Background()

	account, tempPassword, err := p.ProvisionAccount(ctx, approvedBooking(), "prj-1")

	assert.NoError(t, err)
	assert.NotEmpty(t, tempPassword)
	assert.Equal(t, "bk-1", account.BookingID)
	assert.Equal(t, "prj-1", account.ProjectID)
	assert.Equal(t, "Pierce Media", account.CompanyName)
	assert.Equal(t, models.AccountActive, account.Status)
	assert.Equal(t, provision.DefaultStorageLimitGB, account.StorageLimitGB)

	user, err := store.GetPortalUserByEmail(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "client", user.Role)
	// The clear-text credential is returned once and only its hash stored
	assert.NotEqual(t, tempPassword, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tempPassword)))
}

func TestProvisionAccountReusesExistingUser(t *testing.T) {
	p, store := setupProvisioner(t)
	ctx := context.Background()

	existing := &models.PortalUser{
		ID:           "usr-1",
		Email:        "jordan@example.com",
		PasswordHash: "hash-1",
		Role:         "client",
		CreatedAt:    time.Now(),
	}
	assert.NoError(t, store.CreatePortalUser(ctx, existing))

	account, tempPassword, err := p.ProvisionAccount(ctx, approvedBooking(), "prj-1")

	assert.NoError(t, err)
	assert.Equal(t, "usr-1", account.UserID)
	// No new credential when the login already exists
	assert.Empty(t, tempPassword)
}

func TestProvisionAccountIdempotentPerBooking(t *testing.T) {
	p, _ := setupProvisioner(t)
	ctx := context.Background()

	first, _, err := p.ProvisionAccount(ctx, approvedBooking(), "prj-1")
	assert.NoError(t, err)

	second, tempPassword, err := p.ProvisionAccount(ctx, approvedBooking(), "prj-1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, tempPassword)
}

func TestResetCredential(t *testing.T) {
	p, store := setupProvisioner(t)
	ctx := context.Background()

	b := approvedBooking()
	_, original, err := p.ProvisionAccount(ctx, b, "prj-1")
	assert.NoError(t, err)

	fresh, err := p.ResetCredential(ctx, b)
	assert.NoError(t, err)
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, original, fresh)

	user, err := store.GetPortalUserByEmail(ctx, "jordan@example.com")
	assert.NoError(t, err)
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(original)))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(fresh)))
}

func TestResetCredentialUnknownUser(t *testing.T) {
	p, _ := setupProvisioner(t)

	_, err := p.ResetCredential(context.Background(), approvedBooking())
	assert.Error(t, err)
}
