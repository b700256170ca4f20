package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
)

const reconcileBatchSize = 100

// ReconcileReport counts what one reconciliation pass repaired.
type ReconcileReport struct {
	OrphansRemoved     int `json:"orphans_removed"`
	DanglingRemoved    int `json:"dangling_removed"`
	PartitionsRepaired int `json:"partitions_repaired"`
}

// Reconcile repairs state left by interrupted operations:
// unlinked admins older than the grace period are removed, organizations
// whose admin is gone have their delete finished, and missing partitions
// of live organizations are recreated. Failures on individual records do
// not stop the pass.
func (s *organizationService) Reconcile(ctx context.Context, orphanGracePeriod time.Duration) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	var errs error

	orphans, err := s.listOrphans(ctx, time.Now().Add(-orphanGracePeriod))
	if err != nil {
		return report, err
	}
	for _, admin := range orphans {
		if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.adminRepo.Delete(ctx, admin.ID) }); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove orphaned admin %s: %w", admin.ID, err))
			continue
		}
		s.log.Info("orphaned admin removed", zap.String("admin_id", admin.ID.String()), zap.String("email", admin.Email))
		report.OrphansRemoved++
	}

	orgs, err := s.listAll(ctx)
	if err != nil {
		return report, multierr.Append(errs, err)
	}
	for _, org := range orgs {
		repaired, dangling, err := s.reconcileOrganization(ctx, org)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile organization '%s': %w", org.OrganizationName, err))
			continue
		}
		if dangling {
			report.DanglingRemoved++
		}
		if repaired {
			report.PartitionsRepaired++
		}
	}

	s.metrics.RecordReconciled("orphan_admin", report.OrphansRemoved)
	s.metrics.RecordReconciled("dangling_organization", report.DanglingRemoved)
	s.metrics.RecordReconciled("partition", report.PartitionsRepaired)
	return report, errs
}

func (s *organizationService) reconcileOrganization(ctx context.Context, org *models.Organization) (repaired, dangling bool, err error) {
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.adminRepo.GetByID(ctx, org.AdminID)
		return err
	})
	switch {
	case errors.Is(err, common.ErrNotFound):
		// An interrupted delete: the admin went, the entry stayed.
		if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.partitions.Drop(ctx, org.PartitionID) }); err != nil {
			return false, false, err
		}
		if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.orgRepo.Delete(ctx, org.ID) }); err != nil {
			return false, false, err
		}
		s.invalidate(org.OrganizationName)
		s.log.Info("dangling organization removed",
			zap.String("organization_id", org.ID.String()),
			zap.String("organization_name", org.OrganizationName))
		return false, true, nil
	case err != nil:
		return false, false, err
	}

	var exists bool
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		exists, err = s.partitions.Exists(ctx, org.PartitionID)
		return err
	})
	if err != nil || exists {
		return false, false, err
	}

	if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.partitions.Create(ctx, org.PartitionID) }); err != nil {
		return false, false, err
	}
	s.log.Warn("missing partition recreated",
		zap.String("organization_name", org.OrganizationName),
		zap.String("partition_id", org.PartitionID))
	return true, false, nil
}

func (s *organizationService) listOrphans(ctx context.Context, createdBefore time.Time) ([]*models.Admin, error) {
	var orphans []*models.Admin
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		orphans, err = s.adminRepo.ListOrphans(ctx, createdBefore, reconcileBatchSize)
		return err
	})
	return orphans, err
}

// listAll pages through the directory before anything is changed, so
// deletions do not shift the offsets.
func (s *organizationService) listAll(ctx context.Context) ([]*models.Organization, error) {
	var all []*models.Organization
	for offset := 0; ; offset += reconcileBatchSize {
		var page []*models.Organization
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			page, err = s.orgRepo.List(ctx, reconcileBatchSize, offset)
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < reconcileBatchSize {
			return all, nil
		}
	}
}

func (s *organizationService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return common.StorageError(fn(ctx))
}
