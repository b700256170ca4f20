package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
	"orgmanager/internal/repositories"
)

// Directory is an in-memory stand-in for the Postgres directory and its
// partition schemas. It enforces the same uniqueness rules as the real
// tables and can be told to fail individual operations.
type Directory struct {
	mu       sync.Mutex
	orgs     map[uuid.UUID]*models.Organization
	admins   map[uuid.UUID]*models.Admin
	schemas  map[string]bool
	failures map[string]error
	calls    []string
	tick     time.Time
}

func NewDirectory() *Directory {
	return &Directory{
		orgs:     make(map[uuid.UUID]*models.Organization),
		admins:   make(map[uuid.UUID]*models.Admin),
		schemas:  make(map[string]bool),
		failures: make(map[string]error),
		tick:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
// Operation names are the repository method names, e.g. "CreateSchema".
func (d *Directory) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Calls returns the recorded mutating operations in order.
func (d *Directory) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *Directory) Organizations() repositories.OrganizationRepository { return orgStore{d} }
func (d *Directory) Admins() repositories.AdminRepository                { return adminStore{d} }
func (d *Directory) Partitions() repositories.PartitionRepository        { return partitionStore{d} }

// HasSchema reports whether the partition schema exists.
func (d *Directory) HasSchema(partitionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemas[partitionID]
}

// AddSchema creates a schema without any directory entry.
func (d *Directory) AddSchema(partitionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[partitionID] = true
}

// RemoveSchema drops a schema behind the directory's back.
func (d *Directory) RemoveSchema(partitionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.schemas, partitionID)
}

func (d *Directory) OrganizationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orgs)
}

func (d *Directory) AdminCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.admins)
}

// PutAdmin stores admin as is, bypassing the create path.
func (d *Directory) PutAdmin(admin *models.Admin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := *admin
	d.admins[a.ID] = &a
}

// RemoveAdmin deletes an admin behind the directory's back.
func (d *Directory) RemoveAdmin(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.admins, id)
}

// enter records op and returns its injected failure. Callers hold d.mu.
func (d *Directory) enter(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.calls = append(d.calls, op)
	return d.failures[op]
}

// now returns strictly increasing timestamps so ordering is stable.
func (d *Directory) now() time.Time {
	d.tick = d.tick.Add(time.Millisecond)
	return d.tick
}

type orgStore struct{ d *Directory }

func (s orgStore) Create(ctx context.Context, org *models.Organization) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "CreateOrganization"); err != nil {
		return err
	}
	for _, o := range d.orgs {
		if o.OrganizationName == org.OrganizationName || o.PartitionID == org.PartitionID {
			return fmt.Errorf("insert organization: %w", common.ErrNameConflict)
		}
	}
	org.CreatedAt = d.now()
	org.UpdatedAt = org.CreatedAt
	o := *org
	d.orgs[o.ID] = &o
	return nil
}

func (s orgStore) find(ctx context.Context, desc string, match func(*models.Organization) bool) (*models.Organization, error) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, o := range d.orgs {
		if match(o) {
			c := *o
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", desc, common.ErrNotFound)
}

func (s orgStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.find(ctx, "organization "+id.String(), func(o *models.Organization) bool { return o.ID == id })
}

func (s orgStore) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	return s.find(ctx, fmt.Sprintf("organization '%s'", name), func(o *models.Organization) bool { return o.OrganizationName == name })
}

func (s orgStore) GetByPartitionID(ctx context.Context, partitionID string) (*models.Organization, error) {
	return s.find(ctx, fmt.Sprintf("partition '%s'", partitionID), func(o *models.Organization) bool { return o.PartitionID == partitionID })
}

func (s orgStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	_, err := s.GetByName(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s orgStore) update(ctx context.Context, op string, id uuid.UUID, apply func(*models.Organization) bool) (bool, error) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, op); err != nil {
		return false, err
	}
	o, ok := d.orgs[id]
	if !ok {
		return false, nil
	}
	changed := apply(o)
	if changed {
		o.UpdatedAt = d.now()
	}
	return changed, nil
}

func (s orgStore) UpdateName(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	for _, o := range s.snapshot() {
		if o.ID != id && o.OrganizationName == name {
			return false, fmt.Errorf("rename organization: %w", common.ErrNameConflict)
		}
	}
	return s.update(ctx, "UpdateOrganizationName", id, func(o *models.Organization) bool {
		if o.OrganizationName == name {
			return false
		}
		o.OrganizationName = name
		return true
	})
}

func (s orgStore) UpdatePartitionRef(ctx context.Context, id uuid.UUID, partitionID string) (bool, error) {
	for _, o := range s.snapshot() {
		if o.ID != id && o.PartitionID == partitionID {
			return false, fmt.Errorf("update partition reference: %w", common.ErrNameConflict)
		}
	}
	return s.update(ctx, "UpdatePartitionRef", id, func(o *models.Organization) bool {
		if o.PartitionID == partitionID {
			return false
		}
		o.PartitionID = partitionID
		return true
	})
}

func (s orgStore) Delete(ctx context.Context, id uuid.UUID) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "DeleteOrganization"); err != nil {
		return err
	}
	delete(d.orgs, id)
	return nil
}

func (s orgStore) List(ctx context.Context, limit, offset int) ([]*models.Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := s.snapshot()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s orgStore) snapshot() []*models.Organization {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Organization, 0, len(d.orgs))
	for _, o := range d.orgs {
		c := *o
		out = append(out, &c)
	}
	return out
}

type adminStore struct{ d *Directory }

func (s adminStore) Create(ctx context.Context, admin *models.Admin) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "CreateAdmin"); err != nil {
		return err
	}
	admin.CreatedAt = d.now()
	admin.UpdatedAt = admin.CreatedAt
	a := *admin
	d.admins[a.ID] = &a
	return nil
}

func (s adminStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, ok := d.admins[id]
	if !ok {
		return nil, fmt.Errorf("admin %s: %w", id, common.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s adminStore) ListByEmail(ctx context.Context, email string) ([]*models.Admin, error) {
	return s.filter(ctx, func(a *models.Admin) bool { return a.Email == email }), ctx.Err()
}

func (s adminStore) filter(ctx context.Context, match func(*models.Admin) bool) []*models.Admin {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*models.Admin
	for _, a := range d.admins {
		if match(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s adminStore) modify(ctx context.Context, op string, id uuid.UUID, apply func(*models.Admin)) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, op); err != nil {
		return err
	}
	a, ok := d.admins[id]
	if !ok {
		return fmt.Errorf("admin %s: %w", id, common.ErrNotFound)
	}
	apply(a)
	a.UpdatedAt = d.now()
	return nil
}

func (s adminStore) SetOrganization(ctx context.Context, id, organizationID uuid.UUID) error {
	return s.modify(ctx, "SetOrganization", id, func(a *models.Admin) { a.OrganizationID = &organizationID })
}

func (s adminStore) UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.AdminCredentials) error {
	return s.modify(ctx, "UpdateCredentials", id, func(a *models.Admin) {
		a.Email = creds.Email
		a.PasswordHash = creds.PasswordHash
		a.OrganizationName = creds.OrganizationName
	})
}

func (s adminStore) Delete(ctx context.Context, id uuid.UUID) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "DeleteAdmin"); err != nil {
		return err
	}
	delete(d.admins, id)
	return nil
}

func (s adminStore) ListOrphans(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Admin, error) {
	referenced := make(map[uuid.UUID]bool)
	for _, o := range (orgStore{s.d}).snapshot() {
		referenced[o.AdminID] = true
	}
	out := s.filter(ctx, func(a *models.Admin) bool {
		return a.OrganizationID == nil && a.CreatedAt.Before(createdBefore) && !referenced[a.ID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, ctx.Err()
}

type partitionStore struct{ d *Directory }

func (s partitionStore) CreateSchema(ctx context.Context, partitionID string) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "CreateSchema"); err != nil {
		return err
	}
	d.schemas[partitionID] = true
	return nil
}

func (s partitionStore) SchemaExists(ctx context.Context, partitionID string) (bool, error) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return d.schemas[partitionID], nil
}

func (s partitionStore) RenameSchema(ctx context.Context, oldID, newID string) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "RenameSchema"); err != nil {
		return err
	}
	if !d.schemas[oldID] {
		return fmt.Errorf("rename partition '%s': %w", oldID, common.ErrNotFound)
	}
	if d.schemas[newID] {
		return fmt.Errorf("rename partition '%s': %w", newID, common.ErrPartitionConflict)
	}
	delete(d.schemas, oldID)
	d.schemas[newID] = true
	return nil
}

func (s partitionStore) DropSchema(ctx context.Context, partitionID string) error {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter(ctx, "DropSchema"); err != nil {
		return err
	}
	delete(d.schemas, partitionID)
	return nil
}
