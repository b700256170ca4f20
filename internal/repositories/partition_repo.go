package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PartitionRepository manages the Postgres schema that isolates one tenant.
type PartitionRepository interface {
	CreateSchema(ctx context.Context, partitionID string) error
	SchemaExists(ctx context.Context, partitionID string) (bool, error)
	RenameSchema(ctx context.Context, oldID, newID string) error
	DropSchema(ctx context.Context, partitionID string) error
}

type partitionRepo struct {
	db DBTX
}

func NewPartitionRepo(db DBTX) PartitionRepository {
	return &partitionRepo{db: db}
}

// CreateSchema is idempotent. The users table carries the tenant scoped
// uniqueness constraint on user_email.
func (r *partitionRepo) CreateSchema(ctx context.Context, partitionID string) error {
	schema := pgx.Identifier{partitionID}.Sanitize()
	users := pgx.Identifier{partitionID, "users"}.Sanitize()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapPostgresError("begin partition create", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		`CREATE TABLE IF NOT EXISTS ` + users + ` (
			id UUID PRIMARY KEY,
			user_email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_user_email_key ON ` + users + ` (user_email)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapPostgresError(fmt.Sprintf("create partition '%s'", partitionID), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(fmt.Sprintf("commit partition '%s'", partitionID), err)
	}
	return nil
}

func (r *partitionRepo) SchemaExists(ctx context.Context, partitionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`
	if err := r.db.QueryRow(ctx, query, partitionID).Scan(&exists); err != nil {
		return false, mapPostgresError("check partition", err)
	}
	return exists, nil
}

// RenameSchema moves every table of the partition in one statement.
func (r *partitionRepo) RenameSchema(ctx context.Context, oldID, newID string) error {
	stmt := `ALTER SCHEMA ` + pgx.Identifier{oldID}.Sanitize() + ` RENAME TO ` + pgx.Identifier{newID}.Sanitize()
	_, err := r.db.Exec(ctx, stmt)
	return mapPostgresError(fmt.Sprintf("rename partition '%s' to '%s'", oldID, newID), err)
}

func (r *partitionRepo) DropSchema(ctx context.Context, partitionID string) error {
	stmt := `DROP SCHEMA IF EXISTS ` + pgx.Identifier{partitionID}.Sanitize() + ` CASCADE`
	_, err := r.db.Exec(ctx, stmt)
	return mapPostgresError(fmt.Sprintf("drop partition '%s'", partitionID), err)
}
