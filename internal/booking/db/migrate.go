package db

import (
	"context"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// Migrate creates the CRM tables if they do not exist. File-based schema
// migrations live under migrations/ and are applied by the
// database/migrations runner; this path exists for bootstrap and tests.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.BookingRequest)(nil),
		(*models.Opportunity)(nil),
		(*models.Project)(nil),
		(*models.PortalUser)(nil),
		(*models.ClientAccount)(nil),
		(*models.ProvisionStep)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
