package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a Tenant Directory entry.
type Organization struct {
	ID               uuid.UUID `json:"id" db:"id"`
	OrganizationName string    `json:"organization_name" db:"organization_name"`
	PartitionID      string    `json:"partition_id" db:"partition_id"`
	AdminID          uuid.UUID `json:"admin_id" db:"admin_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// OrganizationView is the public shape of an organization returned by the API.
type OrganizationView struct {
	ID               string `json:"id"`
	OrganizationName string `json:"organization_name"`
	PartitionID      string `json:"partition_id"`
	AdminID          string `json:"admin_id"`
}

// View projects the directory entry onto its public shape.
func (o *Organization) View() *OrganizationView {
	return &OrganizationView{
		ID:               o.ID.String(),
		OrganizationName: o.OrganizationName,
		PartitionID:      o.PartitionID,
		AdminID:          o.AdminID.String(),
	}
}

// OrganizationRequest is the body of /org/create and /org/update.
type OrganizationRequest struct {
	OrganizationName string `json:"organization_name" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
