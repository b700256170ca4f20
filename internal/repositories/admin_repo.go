package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"orgmanager/internal/models"
)

type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Admin, error)
	SetOrganization(ctx context.Context, id, organizationID uuid.UUID) error
	UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.AdminCredentials) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListOrphans(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Admin, error)
}

type adminRepo struct {
	db DBTX
}

func NewAdminRepo(db DBTX) AdminRepository {
	return &adminRepo{db: db}
}

const adminColumns = `id, email, password_hash, organization_id, organization_name, created_at, updated_at`

func (r *adminRepo) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (id, email, password_hash, organization_id, organization_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, admin.ID, admin.Email, admin.PasswordHash, admin.OrganizationID, admin.OrganizationName).
		Scan(&admin.CreatedAt, &admin.UpdatedAt)
	return mapPostgresError("insert admin", err)
}

func (r *adminRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
	admin, err := scanAdmin(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPostgresError(fmt.Sprintf("admin %s", id), err)
	}
	return admin, nil
}

// ListByEmail returns every admin registered with email, oldest first.
// Email is not unique across organizations.
func (r *adminRepo) ListByEmail(ctx context.Context, email string) ([]*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1 ORDER BY created_at, id`
	return r.list(ctx, "list admins by email", query, email)
}

// SetOrganization stores the back-reference once the organization exists.
func (r *adminRepo) SetOrganization(ctx context.Context, id, organizationID uuid.UUID) error {
	query := `UPDATE admins SET organization_id = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, organizationID, id)
	if err != nil {
		return mapPostgresError("link admin to organization", err)
	}
	if tag.RowsAffected() == 0 {
		return mapPostgresError(fmt.Sprintf("admin %s", id), pgx.ErrNoRows)
	}
	return nil
}

func (r *adminRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.AdminCredentials) error {
	query := `
		UPDATE admins
		SET email = $1, password_hash = $2, organization_name = $3, updated_at = NOW()
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, creds.Email, creds.PasswordHash, creds.OrganizationName, id)
	if err != nil {
		return mapPostgresError("update admin", err)
	}
	if tag.RowsAffected() == 0 {
		return mapPostgresError(fmt.Sprintf("admin %s", id), pgx.ErrNoRows)
	}
	return nil
}

func (r *adminRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM admins WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return mapPostgresError("delete admin", err)
}

// ListOrphans finds admins left behind by an interrupted create: never
// linked to an organization and not referenced by one.
func (r *adminRepo) ListOrphans(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Admin, error) {
	query := `
		SELECT ` + adminColumns + `
		FROM admins a
		WHERE a.organization_id IS NULL
		  AND a.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM organizations o WHERE o.admin_id = a.id)
		ORDER BY a.created_at
		LIMIT $2
	`
	return r.list(ctx, "list orphaned admins", query, createdBefore, limit)
}

func (r *adminRepo) list(ctx context.Context, op, query string, args ...any) ([]*models.Admin, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(op, err)
	}
	defer rows.Close()

	var admins []*models.Admin
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, mapPostgresError(op, err)
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(op, err)
	}
	return admins, nil
}

func scanAdmin(row pgx.Row) (*models.Admin, error) {
	admin := &models.Admin{}
	if err := row.Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.OrganizationID, &admin.OrganizationName, &admin.CreatedAt, &admin.UpdatedAt); err != nil {
		return nil, err
	}
	return admin, nil
}
