package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"orgmanager/internal/common"
	"orgmanager/internal/repositories"
)

const (
	partitionPrefix = "org_"
	// Postgres truncates identifiers beyond this length.
	maxPartitionIDLength = 63

	revertTimeout = 10 * time.Second
)

// DerivePartitionID maps an organization name onto its partition id:
// lower-cased, whitespace runs collapsed to "_", prefixed with "org_".
// Distinct names can share an id ("Acme Co" and "acme  co").
func DerivePartitionID(name string) string {
	return partitionPrefix + strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// ValidateOrganizationName rejects names that cannot back a partition.
func ValidateOrganizationName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: organization_name is required", common.ErrValidation)
	}
	if !utf8.ValidString(name) || strings.ContainsFunc(name, unicode.IsControl) {
		return fmt.Errorf("%w: organization_name contains invalid characters", common.ErrValidation)
	}
	if id := DerivePartitionID(name); len(id) > maxPartitionIDLength {
		return fmt.Errorf("%w: organization_name is too long", common.ErrValidation)
	}
	return nil
}

// PartitionManager owns the isolated storage namespace of each tenant: a
// Postgres schema plus a blob prefix.
type PartitionManager interface {
	Create(ctx context.Context, partitionID string) error
	Rename(ctx context.Context, oldID, newID string) error
	Drop(ctx context.Context, partitionID string) error
	Exists(ctx context.Context, partitionID string) (bool, error)
}

type partitionManager struct {
	repo    repositories.PartitionRepository
	objects ObjectStore
	log     *zap.Logger
}

func NewPartitionManager(repo repositories.PartitionRepository, objects ObjectStore, log *zap.Logger) PartitionManager {
	if objects == nil {
		objects = NewNoopObjectStore()
	}
	return &partitionManager{repo: repo, objects: objects, log: log.Named("partitions")}
}

// Create is idempotent: an existing partition is left as is.
func (m *partitionManager) Create(ctx context.Context, partitionID string) error {
	if err := m.repo.CreateSchema(ctx, partitionID); err != nil {
		return common.StorageError(err)
	}
	m.log.Debug("partition ready", zap.String("partition_id", partitionID))
	return nil
}

// Rename carries all tenant data to newID. A missing source partition is
// healed by creating newID empty, so a retried rename converges.
func (m *partitionManager) Rename(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	taken, err := m.repo.SchemaExists(ctx, newID)
	if err != nil {
		return common.StorageError(err)
	}
	if taken {
		return fmt.Errorf("partition '%s': %w", newID, common.ErrPartitionConflict)
	}

	healed := false
	err = m.repo.RenameSchema(ctx, oldID, newID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		m.log.Warn("source partition missing, creating target empty",
			zap.String("old_partition_id", oldID),
			zap.String("new_partition_id", newID))
		if err := m.repo.CreateSchema(ctx, newID); err != nil {
			return common.StorageError(err)
		}
		healed = true
	case err != nil:
		return common.StorageError(err)
	}

	if err := m.objects.MovePrefix(ctx, PartitionPrefix(oldID), PartitionPrefix(newID)); err != nil {
		m.revertRename(ctx, oldID, newID, healed)
		return common.StorageError(fmt.Errorf("move blobs of partition '%s': %w", oldID, err))
	}

	m.log.Info("partition renamed",
		zap.String("old_partition_id", oldID),
		zap.String("new_partition_id", newID))
	return nil
}

// revertRename puts the schema back under oldID after a failed blob move.
func (m *partitionManager) revertRename(ctx context.Context, oldID, newID string, healed bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()

	var errs error
	if err := m.objects.MovePrefix(ctx, PartitionPrefix(newID), PartitionPrefix(oldID)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("move blobs back: %w", err))
	}
	if healed {
		if err := m.repo.DropSchema(ctx, newID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("drop healed schema: %w", err))
		}
	} else if err := m.repo.RenameSchema(ctx, newID, oldID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("rename schema back: %w", err))
	}

	if errs != nil {
		m.log.Error("partition rename revert incomplete",
			zap.String("old_partition_id", oldID),
			zap.String("new_partition_id", newID),
			zap.Errors("errors", multierr.Errors(errs)))
		return
	}
	m.log.Warn("partition rename reverted",
		zap.String("old_partition_id", oldID),
		zap.String("new_partition_id", newID))
}

// Drop is idempotent.
func (m *partitionManager) Drop(ctx context.Context, partitionID string) error {
	if err := m.repo.DropSchema(ctx, partitionID); err != nil {
		return common.StorageError(err)
	}
	if err := m.objects.RemovePrefix(ctx, PartitionPrefix(partitionID)); err != nil {
		return common.StorageError(fmt.Errorf("remove blobs of partition '%s': %w", partitionID, err))
	}
	m.log.Info("partition dropped", zap.String("partition_id", partitionID))
	return nil
}

func (m *partitionManager) Exists(ctx context.Context, partitionID string) (bool, error) {
	exists, err := m.repo.SchemaExists(ctx, partitionID)
	return exists, common.StorageError(err)
}
