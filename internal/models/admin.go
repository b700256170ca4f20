package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is the single administrative account of an organization.
// OrganizationID stays nil until the organization entry referencing the
// admin has been written.
type Admin struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"` // Never serialize in JSON
	OrganizationID   *uuid.UUID `json:"organization_id" db:"organization_id"`
	OrganizationName string     `json:"organization_name" db:"organization_name"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// AdminCredentials are the mutable fields rotated by an organization update.
type AdminCredentials struct {
	Email            string
	PasswordHash     string
	OrganizationName string
}

// Credentials returns the admin's current rotatable fields.
func (a *Admin) Credentials() AdminCredentials {
	return AdminCredentials{
		Email:            a.Email,
		PasswordHash:     a.PasswordHash,
		OrganizationName: a.OrganizationName,
	}
}
