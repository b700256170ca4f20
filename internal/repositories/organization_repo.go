package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"orgmanager/internal/models"
)

// OrganizationRepository is the Tenant Directory.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetByName(ctx context.Context, name string) (*models.Organization, error)
	GetByPartitionID(ctx context.Context, partitionID string) (*models.Organization, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (bool, error)
	UpdatePartitionRef(ctx context.Context, id uuid.UUID, partitionID string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Organization, error)
}

type organizationRepo struct {
	db DBTX
}

func NewOrganizationRepo(db DBTX) OrganizationRepository {
	return &organizationRepo{db: db}
}

const organizationColumns = `id, organization_name, partition_id, admin_id, created_at, updated_at`

// Create inserts the entry. A concurrent creator that got past the caller's
// existence check fails here on the unique constraints.
func (r *organizationRepo) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, organization_name, partition_id, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, org.ID, org.OrganizationName, org.PartitionID, org.AdminID).
		Scan(&org.CreatedAt, &org.UpdatedAt)
	return mapPostgresError("insert organization", err)
}

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPostgresError(fmt.Sprintf("organization %s", id), err)
	}
	return org, nil
}

func (r *organizationRepo) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE organization_name = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, mapPostgresError(fmt.Sprintf("organization '%s'", name), err)
	}
	return org, nil
}

func (r *organizationRepo) GetByPartitionID(ctx context.Context, partitionID string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE partition_id = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, partitionID))
	if err != nil {
		return nil, mapPostgresError(fmt.Sprintf("partition '%s'", partitionID), err)
	}
	return org, nil
}

func (r *organizationRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM organizations WHERE organization_name = $1)`
	if err := r.db.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, mapPostgresError("check organization name", err)
	}
	return exists, nil
}

// UpdateName reports whether a row actually changed.
func (r *organizationRepo) UpdateName(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	query := `
		UPDATE organizations
		SET organization_name = $1, updated_at = NOW()
		WHERE id = $2 AND organization_name <> $1
	`
	tag, err := r.db.Exec(ctx, query, name, id)
	if err != nil {
		return false, mapPostgresError("update organization name", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdatePartitionRef reports whether a row actually changed.
func (r *organizationRepo) UpdatePartitionRef(ctx context.Context, id uuid.UUID, partitionID string) (bool, error) {
	query := `
		UPDATE organizations
		SET partition_id = $1, updated_at = NOW()
		WHERE id = $2 AND partition_id <> $1
	`
	tag, err := r.db.Exec(ctx, query, partitionID, id)
	if err != nil {
		return false, mapPostgresError("update organization partition", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *organizationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM organizations WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return mapPostgresError("delete organization", err)
}

func (r *organizationRepo) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY created_at, id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, mapPostgresError("list organizations", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, mapPostgresError("list organizations", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError("list organizations", err)
	}
	return orgs, nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	org := &models.Organization{}
	if err := row.Scan(&org.ID, &org.OrganizationName, &org.PartitionID, &org.AdminID, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	return org, nil
}
