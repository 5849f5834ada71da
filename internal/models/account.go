package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// PortalUser is the login identity created for a client at approval time.
type PortalUser struct {
	bun.BaseModel `bun:"table:portal_users"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         string    `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ClientAccount struct {
	bun.BaseModel `bun:"table:client_accounts"`

	ID          string        `bun:"id,pk" json:"id"`
	UserID      string        `bun:"user_id,notnull" json:"user_id"`
	BookingID   string        `bun:"booking_id,nullzero" json:"booking_id,omitempty"`
	ProjectID   string        `bun:"project_id,nullzero" json:"project_id,omitempty"`
	CompanyName string        `bun:"company_name,nullzero" json:"company_name,omitempty"`
	Status      AccountStatus `bun:"status,notnull" json:"status"`

	StorageLimitGB float64 `bun:"storage_limit_gb,notnull" json:"storage_limit_gb"`
	StorageUsedGB  float64 `bun:"storage_used_gb,notnull" json:"storage_used_gb"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ProjectStatus string

const (
	ProjectPreProduction  ProjectStatus = "pre_production"
	ProjectProduction     ProjectStatus = "production"
	ProjectPostProduction ProjectStatus = "post_production"
	ProjectDelivered      ProjectStatus = "delivered"
)

type Project struct {
	bun.BaseModel `bun:"table:projects"`

	ID            string        `bun:"id,pk" json:"id"`
	BookingID     string        `bun:"booking_id,notnull" json:"booking_id"`
	OpportunityID string        `bun:"opportunity_id,nullzero" json:"opportunity_id,omitempty"`
	Name          string        `bun:"name,notnull" json:"name"`
	Status        ProjectStatus `bun:"status,notnull" json:"status"`
	ShootDate     string        `bun:"shoot_date,nullzero" json:"shoot_date,omitempty"`
	Notes         string        `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"created_at"`
}

type OpportunityStage string

const (
	StageNewLead OpportunityStage = "new_lead"
	StageWon     OpportunityStage = "won"
)

// Opportunity is a sales-pipeline entity. BookingID is an explicit nullable
// reference so the relationship stays queryable; marketing captures
// (newsletter, chatbot) leave it empty.
type Opportunity struct {
	bun.BaseModel `bun:"table:opportunities"`

	ID           string           `bun:"id,pk" json:"id"`
	BookingID    string           `bun:"booking_id,nullzero" json:"booking_id,omitempty"`
	ContactName  string           `bun:"contact_name,notnull" json:"contact_name"`
	ContactEmail string           `bun:"contact_email,notnull" json:"contact_email"`
	Stage        OpportunityStage `bun:"stage,notnull" json:"stage"`
	Source       string           `bun:"source,nullzero" json:"source,omitempty"`
	Value        float64          `bun:"value,nullzero" json:"value,omitempty"`
	CreatedAt    time.Time        `bun:"created_at,notnull" json:"created_at"`
}

// LeadRequest is a marketing capture (newsletter signup, chatbot contact).
type LeadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`
	Website string `json:"website,omitempty"`
}
