package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orgmanager/internal/caching"
	"orgmanager/internal/common"
	"orgmanager/internal/logger"
	"orgmanager/internal/metrics"
	"orgmanager/internal/models"
	"orgmanager/internal/repositories"
)

// OrganizationService provisions tenants and keeps the directory in step
// with their partitions.
type OrganizationService interface {
	Create(ctx context.Context, req *models.OrganizationRequest) (*models.OrganizationView, error)
	Get(ctx context.Context, name string) (*models.OrganizationView, error)
	Update(ctx context.Context, admin *models.Admin, oldName string, req *models.OrganizationRequest) (*models.OrganizationView, error)
	Delete(ctx context.Context, admin *models.Admin, name string) error
	Reconcile(ctx context.Context, orphanGracePeriod time.Duration) (*ReconcileReport, error)
}

type organizationService struct {
	orgRepo     repositories.OrganizationRepository
	adminRepo   repositories.AdminRepository
	partitions  PartitionManager
	credentials CredentialService
	cache       caching.CacheService
	log         *zap.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
}

func NewOrganizationService(
	orgRepo repositories.OrganizationRepository,
	adminRepo repositories.AdminRepository,
	partitions PartitionManager,
	credentials CredentialService,
	cache caching.CacheService,
	log *zap.Logger,
	m *metrics.Metrics,
	timeout time.Duration,
) OrganizationService {
	if cache == nil {
		cache = caching.NewNoopCacheService()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &organizationService{
		orgRepo:     orgRepo,
		adminRepo:   adminRepo,
		partitions:  partitions,
		credentials: credentials,
		cache:       cache,
		log:         log.Named("organizations"),
		metrics:     m,
		timeout:     timeout,
	}
}

func validateOrganizationRequest(req *models.OrganizationRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", common.ErrValidation)
	}
	if err := ValidateOrganizationName(req.OrganizationName); err != nil {
		return err
	}
	if err := common.ValidateEmail(req.Email, "email"); err != nil {
		return err
	}
	return common.ValidateRequiredString(req.Password, "password")
}

// Create registers the admin, the directory entry and the partition, in
// that order. A failure undoes the completed steps.
func (s *organizationService) Create(ctx context.Context, req *models.OrganizationRequest) (view *models.OrganizationView, err error) {
	defer func() { s.metrics.RecordOperation("create", err) }()

	if err := validateOrganizationRequest(req); err != nil {
		return nil, err
	}
	name := req.OrganizationName
	partitionID := DerivePartitionID(name)

	// Friendly early rejection; the unique constraints decide under races.
	if err := s.ensureNameAvailable(ctx, uuid.Nil, name, partitionID); err != nil {
		return nil, err
	}

	digest, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	admin := &models.Admin{
		ID:               uuid.New(),
		Email:            req.Email,
		PasswordHash:     digest,
		OrganizationName: name,
	}
	org := &models.Organization{
		ID:               uuid.New(),
		OrganizationName: name,
		PartitionID:      partitionID,
		AdminID:          admin.ID,
	}

	log := logger.FromContext(ctx, s.log)
	err = newSaga("create", s.timeout, log, s.metrics).
		step("insert admin",
			func(ctx context.Context) error { return s.adminRepo.Create(ctx, admin) },
			func(ctx context.Context) error { return s.adminRepo.Delete(ctx, admin.ID) }).
		step("insert organization",
			func(ctx context.Context) error { return s.orgRepo.Create(ctx, org) },
			func(ctx context.Context) error { return s.orgRepo.Delete(ctx, org.ID) }).
		step("link admin",
			func(ctx context.Context) error { return s.adminRepo.SetOrganization(ctx, admin.ID, org.ID) },
			nil).
		stepUndoOnFailure("create partition",
			func(ctx context.Context) error { return s.partitions.Create(ctx, partitionID) },
			func(ctx context.Context) error { return s.partitions.Drop(ctx, partitionID) }).
		execute(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNameConflict) {
			return nil, fmt.Errorf("organization '%s': %w", name, common.ErrNameConflict)
		}
		return nil, err
	}

	log.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("organization_name", name),
		zap.String("partition_id", partitionID))
	return org.View(), nil
}

// Get is served from the cache when possible. Cache failures fall back to
// the directory.
func (s *organizationService) Get(ctx context.Context, name string) (*models.OrganizationView, error) {
	if err := common.ValidateRequiredString(name, "organization_name"); err != nil {
		return nil, err
	}

	if cached, err := s.cache.GetOrganization(ctx, name); err != nil {
		s.log.Warn("organization cache read failed", zap.String("organization_name", name), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	org, err := s.getByName(ctx, name)
	if err != nil {
		return nil, err
	}

	view := org.View()
	if err := s.cache.SetOrganization(ctx, view); err != nil {
		s.log.Warn("organization cache write failed", zap.String("organization_name", name), zap.Error(err))
	}
	return view, nil
}

// Update renames the organization and rotates its admin credentials. The
// partition moves first so that a failure there leaves the directory
// untouched.
func (s *organizationService) Update(ctx context.Context, admin *models.Admin, oldName string, req *models.OrganizationRequest) (view *models.OrganizationView, err error) {
	defer func() { s.metrics.RecordOperation("update", err) }()

	if err := common.ValidateRequiredString(oldName, "old_name"); err != nil {
		return nil, err
	}
	if err := validateOrganizationRequest(req); err != nil {
		return nil, err
	}

	org, err := s.getByName(ctx, oldName)
	if err != nil {
		return nil, err
	}
	if !ownsOrganization(admin, org) {
		return nil, fmt.Errorf("organization '%s': %w", oldName, common.ErrForbidden)
	}

	newName := req.OrganizationName
	newPartitionID := DerivePartitionID(newName)
	if err := s.ensureNameAvailable(ctx, org.ID, newName, newPartitionID); err != nil {
		return nil, err
	}

	digest, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	previous := admin.Credentials()
	next := models.AdminCredentials{
		Email:            req.Email,
		PasswordHash:     digest,
		OrganizationName: newName,
	}
	oldPartitionID := org.PartitionID

	log := logger.FromContext(ctx, s.log)
	err = newSaga("update", s.timeout, log, s.metrics).
		step("rename partition",
			func(ctx context.Context) error { return s.partitions.Rename(ctx, oldPartitionID, newPartitionID) },
			func(ctx context.Context) error { return s.partitions.Rename(ctx, newPartitionID, oldPartitionID) }).
		step("update admin",
			func(ctx context.Context) error { return s.adminRepo.UpdateCredentials(ctx, admin.ID, next) },
			func(ctx context.Context) error { return s.adminRepo.UpdateCredentials(ctx, admin.ID, previous) }).
		step("update organization name",
			func(ctx context.Context) error {
				_, err := s.orgRepo.UpdateName(ctx, org.ID, newName)
				return err
			},
			func(ctx context.Context) error {
				_, err := s.orgRepo.UpdateName(ctx, org.ID, oldName)
				return err
			}).
		step("update partition reference",
			func(ctx context.Context) error {
				_, err := s.orgRepo.UpdatePartitionRef(ctx, org.ID, newPartitionID)
				return err
			},
			nil).
		execute(ctx)

	s.invalidate(oldName, newName)
	if err != nil {
		if errors.Is(err, common.ErrNameConflict) {
			return nil, fmt.Errorf("organization '%s': %w", newName, common.ErrNameConflict)
		}
		return nil, err
	}

	// Re-read so the caller sees the stored row whether or not anything
	// changed.
	refreshed, err := s.getByID(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	log.Info("organization updated",
		zap.String("organization_id", org.ID.String()),
		zap.String("old_name", oldName),
		zap.String("new_name", newName),
		zap.String("partition_id", newPartitionID))
	return refreshed.View(), nil
}

// Delete drops the partition before the directory entries. It is not
// reversible; a failure part way is finished by the reconciliation pass.
func (s *organizationService) Delete(ctx context.Context, admin *models.Admin, name string) (err error) {
	defer func() { s.metrics.RecordOperation("delete", err) }()

	if err := common.ValidateRequiredString(name, "organization_name"); err != nil {
		return err
	}
	if admin == nil || admin.OrganizationName != name {
		return fmt.Errorf("organization '%s': %w", name, common.ErrForbidden)
	}

	org, err := s.getByName(ctx, name)
	if err != nil {
		return err
	}
	if !ownsOrganization(admin, org) {
		return fmt.Errorf("organization '%s': %w", name, common.ErrForbidden)
	}

	log := logger.FromContext(ctx, s.log)
	err = newSaga("delete", s.timeout, log, s.metrics).
		step("drop partition",
			func(ctx context.Context) error { return s.partitions.Drop(ctx, org.PartitionID) },
			nil).
		step("delete admin",
			func(ctx context.Context) error { return ignoreNotFound(s.adminRepo.Delete(ctx, admin.ID)) },
			nil).
		step("delete organization",
			func(ctx context.Context) error { return ignoreNotFound(s.orgRepo.Delete(ctx, org.ID)) },
			nil).
		execute(ctx)

	s.invalidate(name)
	if err != nil {
		return err
	}

	log.Info("organization deleted",
		zap.String("organization_id", org.ID.String()),
		zap.String("organization_name", name),
		zap.String("partition_id", org.PartitionID))
	return nil
}

// ensureNameAvailable rejects a name, or the partition it derives to, held
// by an organization other than self.
// A nil self means a new organization.
func (s *organizationService) ensureNameAvailable(ctx context.Context, self uuid.UUID, name, partitionID string) error {
	if self == uuid.Nil {
		var exists bool
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			exists, err = s.orgRepo.ExistsByName(ctx, name)
			return err
		})
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("organization '%s': %w", name, common.ErrNameConflict)
		}
	} else {
		existing, err := s.getByName(ctx, name)
		switch {
		case err == nil && existing.ID != self:
			return fmt.Errorf("organization '%s': %w", name, common.ErrNameConflict)
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		}
	}

	var owner *models.Organization
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		owner, err = s.orgRepo.GetByPartitionID(ctx, partitionID)
		return err
	})
	switch {
	case err == nil && owner.ID != self:
		return fmt.Errorf("organization '%s' maps to partition '%s' owned by '%s': %w",
			name, partitionID, owner.OrganizationName, common.ErrNameConflict)
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return err
	}
	return nil
}

func (s *organizationService) getByName(ctx context.Context, name string) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	org, err := s.orgRepo.GetByName(ctx, name)
	return org, common.StorageError(err)
}

func (s *organizationService) getByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	org, err := s.orgRepo.GetByID(ctx, id)
	return org, common.StorageError(err)
}

// invalidate runs detached from the request so a cancelled caller still
// clears stale views.
func (s *organizationService) invalidate(names ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.cache.InvalidateOrganization(ctx, names...); err != nil {
		s.log.Warn("organization cache invalidation failed",
			zap.String("names", strings.Join(names, ",")), zap.Error(err))
	}
}

func ownsOrganization(admin *models.Admin, org *models.Organization) bool {
	return admin != nil && admin.OrganizationName == org.OrganizationName && admin.ID == org.AdminID
}

func ignoreNotFound(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}
