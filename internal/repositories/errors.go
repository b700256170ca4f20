package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"orgmanager/internal/common"
)

const (
	constraintOrganizationName = "organizations_organization_name_key"
	constraintPartitionID      = "organizations_partition_id_key"
)

// mapPostgresError maps driver errors onto the shared sentinels. op names
// the failed operation for the wrapped message.
func mapPostgresError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintOrganizationName, constraintPartitionID:
			return fmt.Errorf("%s: %w", op, common.ErrNameConflict)
		}
		return fmt.Errorf("%s: unique constraint violation: %s: %w", op, pgErr.ConstraintName, err)

	case pgerrcode.DuplicateSchema:
		return fmt.Errorf("%s: %w", op, common.ErrPartitionConflict)

	case pgerrcode.InvalidSchemaName:
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.QueryCanceled,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnavailable, err)

	default:
		return fmt.Errorf("%s: postgres error [%s]: %s: %w", op, pgErr.Code, pgErr.Message, err)
	}
}
