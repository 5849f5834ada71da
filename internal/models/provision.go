package models

import (
	"time"

	"github.com/uptrace/bun"
)

type StepStatus string

const (
	StepDone   StepStatus = "done"
	StepFailed StepStatus = "failed"
)

// Approval fan-out step names, in execution order.
const (
	StepOpportunity   = "opportunity"
	StepProject       = "project"
	StepAccount       = "account"
	StepApprovalEmail = "approval_email"
	StepPortalEmail   = "portal_email"
	StepEvent         = "event"
)

// ProvisionStep records the outcome of one approval fan-out step so a
// failed step can be retried without redoing the ones that succeeded.
type ProvisionStep struct {
	bun.BaseModel `bun:"table:provision_steps"`

	ID        string     `bun:"id,pk" json:"id"`
	BookingID string     `bun:"booking_id,notnull" json:"booking_id"`
	Step      string     `bun:"step,notnull" json:"step"`
	Status    StepStatus `bun:"status,notnull" json:"status"`
	Error     string     `bun:"error,nullzero" json:"error,omitempty"`
	RunAt     time.Time  `bun:"run_at,notnull" json:"run_at"`
}
