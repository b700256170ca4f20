package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
)

type OrganizationRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    OrganizationRepository
	orgID   uuid.UUID
	adminID uuid.UUID
	context context.Context
}

func (suite *OrganizationRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewOrganizationRepo(mock)
	suite.orgID = uuid.New()
	suite.adminID = uuid.New()
	suite.context = context.Background()
}

func (suite *OrganizationRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestOrganizationRepoTestSuite(t *testing.T) {
	suite.Run(t, new(OrganizationRepoTestSuite))
}

func (suite *OrganizationRepoTestSuite) organizationRows(name, partitionID string) *pgxmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows([]string{"id", "organization_name", "partition_id", "admin_id", "created_at", "updated_at"}).
		AddRow(suite.orgID, name, partitionID, suite.adminID, now, now)
}

func (suite *OrganizationRepoTestSuite) TestCreate_Success() {
	org := &models.Organization{ID: suite.orgID, OrganizationName: "Acme", PartitionID: "org_acme", AdminID: suite.adminID}
	now := time.Now().UTC()

	suite.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO organizations (id, organization_name, partition_id, admin_id, created_at, updated_at)`)).
		WithArgs(org.ID, org.OrganizationName, org.PartitionID, org.AdminID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err := suite.repo.Create(suite.context, org)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), now, org.CreatedAt)
}

func (suite *OrganizationRepoTestSuite) TestCreate_DuplicateNameIsNameConflict() {
	org := &models.Organization{ID: suite.orgID, OrganizationName: "Acme", PartitionID: "org_acme", AdminID: suite.adminID}

	suite.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO organizations`)).
		WithArgs(org.ID, org.OrganizationName, org.PartitionID, org.AdminID).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organizations_organization_name_key"})

	err := suite.repo.Create(suite.context, org)
	assert.ErrorIs(suite.T(), err, common.ErrNameConflict)
}

func (suite *OrganizationRepoTestSuite) TestCreate_DuplicatePartitionIsNameConflict() {
	org := &models.Organization{ID: suite.orgID, OrganizationName: "acme", PartitionID: "org_acme", AdminID: suite.adminID}

	suite.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO organizations`)).
		WithArgs(org.ID, org.OrganizationName, org.PartitionID, org.AdminID).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organizations_partition_id_key"})

	err := suite.repo.Create(suite.context, org)
	assert.ErrorIs(suite.T(), err, common.ErrNameConflict)
}

func (suite *OrganizationRepoTestSuite) TestGetByName_Found() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM organizations WHERE organization_name = $1`)).
		WithArgs("Acme").
		WillReturnRows(suite.organizationRows("Acme", "org_acme"))

	org, err := suite.repo.GetByName(suite.context, "Acme")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.orgID, org.ID)
	assert.Equal(suite.T(), "org_acme", org.PartitionID)
	assert.Equal(suite.T(), suite.adminID, org.AdminID)
}

func (suite *OrganizationRepoTestSuite) TestGetByName_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM organizations WHERE organization_name = $1`)).
		WithArgs("Missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "organization_name", "partition_id", "admin_id", "created_at", "updated_at"}))

	org, err := suite.repo.GetByName(suite.context, "Missing")
	assert.Nil(suite.T(), org)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *OrganizationRepoTestSuite) TestGetByPartitionID_Found() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM organizations WHERE partition_id = $1`)).
		WithArgs("org_acme").
		WillReturnRows(suite.organizationRows("Acme", "org_acme"))

	org, err := suite.repo.GetByPartitionID(suite.context, "org_acme")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Acme", org.OrganizationName)
}

func (suite *OrganizationRepoTestSuite) TestExistsByName() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM organizations WHERE organization_name = $1)`)).
		WithArgs("Acme").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := suite.repo.ExistsByName(suite.context, "Acme")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), exists)
}

func (suite *OrganizationRepoTestSuite) TestUpdateName_ReportsChange() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE organizations`)).
		WithArgs("Acme2", suite.orgID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	changed, err := suite.repo.UpdateName(suite.context, suite.orgID, "Acme2")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), changed)
}

func (suite *OrganizationRepoTestSuite) TestUpdateName_SameNameIsNoChange() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE organizations`)).
		WithArgs("Acme", suite.orgID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := suite.repo.UpdateName(suite.context, suite.orgID, "Acme")
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), changed)
}

func (suite *OrganizationRepoTestSuite) TestUpdatePartitionRef_ConflictIsNameConflict() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`SET partition_id = $1`)).
		WithArgs("org_beta", suite.orgID).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organizations_partition_id_key"})

	_, err := suite.repo.UpdatePartitionRef(suite.context, suite.orgID, "org_beta")
	assert.ErrorIs(suite.T(), err, common.ErrNameConflict)
}

func (suite *OrganizationRepoTestSuite) TestDelete_Timeout() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM organizations WHERE id = $1`)).
		WithArgs(suite.orgID).
		WillReturnError(context.DeadlineExceeded)

	err := suite.repo.Delete(suite.context, suite.orgID)
	assert.ErrorIs(suite.T(), err, common.ErrUnavailable)
}

func (suite *OrganizationRepoTestSuite) TestList_Paginates() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at, id LIMIT $1 OFFSET $2`)).
		WithArgs(10, 20).
		WillReturnRows(suite.organizationRows("Acme", "org_acme"))

	orgs, err := suite.repo.List(suite.context, 10, 20)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), orgs, 1)
}

func (suite *OrganizationRepoTestSuite) TestList_QueryError() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM organizations ORDER BY`)).
		WithArgs(10, 0).
		WillReturnError(errors.New("boom"))

	orgs, err := suite.repo.List(suite.context, 10, 0)
	assert.Nil(suite.T(), orgs)
	assert.ErrorContains(suite.T(), err, "list organizations")
}
