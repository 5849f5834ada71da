package provision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// DefaultStorageLimitGB is the portal storage quota granted to a new
// client account.
const DefaultStorageLimitGB = 50.0

const tempPasswordLength = 12

// AccountStore is the persistence surface the provisioner needs.
type AccountStore interface {
	CreatePortalUser(ctx context.Context, u *models.PortalUser) error
	GetPortalUserByEmail(ctx context.Context, email string) (*models.PortalUser, error)
	UpdatePortalUser(ctx context.Context, u *models.PortalUser) error
	CreateClientAccount(ctx context.Context, a *models.ClientAccount) error
	GetClientAccountByBookingID(ctx context.Context, bookingID string) (*models.ClientAccount, error)
}

// AccountProvisioner creates portal logins and client accounts for
// approved bookings.
type AccountProvisioner struct {
	store AccountStore
	log   *logger.Logger
}

func NewAccountProvisioner(store AccountStore, log *logger.Logger) *AccountProvisioner {
	return &AccountProvisioner{store: store, log: log}
}

// ProvisionAccount creates (or reuses) the portal user for the booking's
// client email and attaches a client account to the booking. The returned
// password is only non-empty when a new user was created; it is never
// stored in clear text.
func (p *AccountProvisioner) ProvisionAccount(ctx context.Context, b *models.BookingRequest, projectID string) (*models.ClientAccount, string, error) {
	// Idempotent on retry: an account already tied to this booking wins.
	if existing, err := p.store.GetClientAccountByBookingID(ctx, b.ID); err == nil && existing != nil {
		return existing, "", nil
	}

	tempPassword := ""
	user, err := p.store.GetPortalUserByEmail(ctx, b.ClientEmail)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("lookup portal user: %w", err)
	}

	if user == nil {
		tempPassword = utils.GenerateTempPassword(tempPasswordLength)
		hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("hash credential: %w", err)
		}
		user = &models.PortalUser{
			ID:           uuid.New().String(),
			Email:        b.ClientEmail,
			PasswordHash: string(hash),
			Role:         "client",
			CreatedAt:    time.Now(),
		}
		if err := p.store.CreatePortalUser(ctx, user); err != nil {
			return nil, "", fmt.Errorf("create portal user: %w", err)
		}
		p.log.LogSecurity("USER_CREATED", fmt.Sprintf("portal user %s for booking %s", user.ID, b.ID))
	}

	account := &models.ClientAccount{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		BookingID:      b.ID,
		ProjectID:      projectID,
		CompanyName:    b.ClientCompany,
		Status:         models.AccountActive,
		StorageLimitGB: DefaultStorageLimitGB,
		CreatedAt:      time.Now(),
	}
	if err := p.store.CreateClientAccount(ctx, account); err != nil {
		return nil, "", fmt.Errorf("create client account: %w", err)
	}
	p.log.LogBooking("ACCOUNT_PROVISIONED", b.ID, fmt.Sprintf("account %s (user %s)", account.ID, user.ID))
	return account, tempPassword, nil
}

// ResetCredential issues a fresh temporary password for the booking's
// portal user. Used when the portal email has to be re-sent after the
// original clear-text credential is gone.
func (p *AccountProvisioner) ResetCredential(ctx context.Context, b *models.BookingRequest) (string, error) {
	user, err := p.store.GetPortalUserByEmail(ctx, b.ClientEmail)
	if errors.Is(err, sql.ErrNoRows) || user == nil {
		return "", fmt.Errorf("no portal user for %s", b.ClientEmail)
	}
	if err != nil {
		return "", fmt.Errorf("lookup portal user: %w", err)
	}

	tempPassword := utils.GenerateTempPassword(tempPasswordLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := p.store.UpdatePortalUser(ctx, user); err != nil {
		return "", fmt.Errorf("update portal user: %w", err)
	}
	p.log.LogSecurity("CREDENTIAL_RESET", fmt.Sprintf("portal user %s", user.ID))
	return tempPassword, nil
}
