package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
)

type AdminRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    AdminRepository
	adminID uuid.UUID
	orgID   uuid.UUID
	context context.Context
}

func (suite *AdminRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewAdminRepo(mock)
	suite.adminID = uuid.New()
	suite.orgID = uuid.New()
	suite.context = context.Background()
}

func (suite *AdminRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestAdminRepoTestSuite(t *testing.T) {
	suite.Run(t, new(AdminRepoTestSuite))
}

func adminRowColumns() []string {
	return []string{"id", "email", "password_hash", "organization_id", "organization_name", "created_at", "updated_at"}
}

func (suite *AdminRepoTestSuite) TestCreate_Unlinked() {
	admin := &models.Admin{ID: suite.adminID, Email: "a@x.com", PasswordHash: "digest", OrganizationName: "Acme"}
	now := time.Now().UTC()

	suite.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO admins`)).
		WithArgs(admin.ID, admin.Email, admin.PasswordHash, admin.OrganizationID, admin.OrganizationName).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err := suite.repo.Create(suite.context, admin)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), now, admin.UpdatedAt)
}

func (suite *AdminRepoTestSuite) TestListByEmail_ReturnsEveryMatch() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	otherOrg := uuid.New()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE email = $1 ORDER BY created_at, id`)).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows(adminRowColumns()).
			AddRow(suite.adminID, "a@x.com", "d1", &suite.orgID, "Acme", now, now).
			AddRow(uuid.New(), "a@x.com", "d2", &otherOrg, "Beta", now, now))

	admins, err := suite.repo.ListByEmail(suite.context, "a@x.com")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), admins, 2)
	assert.Equal(suite.T(), "Acme", admins[0].OrganizationName)
	assert.Equal(suite.T(), suite.orgID, *admins[0].OrganizationID)
	assert.Equal(suite.T(), "Beta", admins[1].OrganizationName)
}

func (suite *AdminRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE id = $1`)).
		WithArgs(suite.adminID).
		WillReturnRows(pgxmock.NewRows(adminRowColumns()))

	admin, err := suite.repo.GetByID(suite.context, suite.adminID)
	assert.Nil(suite.T(), admin)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *AdminRepoTestSuite) TestSetOrganization_Success() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE admins SET organization_id = $1`)).
		WithArgs(suite.orgID, suite.adminID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.SetOrganization(suite.context, suite.adminID, suite.orgID)
	assert.NoError(suite.T(), err)
}

func (suite *AdminRepoTestSuite) TestSetOrganization_MissingAdmin() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE admins SET organization_id = $1`)).
		WithArgs(suite.orgID, suite.adminID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.SetOrganization(suite.context, suite.adminID, suite.orgID)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *AdminRepoTestSuite) TestUpdateCredentials_Success() {
	creds := models.AdminCredentials{Email: "b@x.com", PasswordHash: "digest2", OrganizationName: "Acme2"}
	suite.mock.ExpectExec(regexp.QuoteMeta(`SET email = $1, password_hash = $2, organization_name = $3`)).
		WithArgs(creds.Email, creds.PasswordHash, creds.OrganizationName, suite.adminID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.UpdateCredentials(suite.context, suite.adminID, creds)
	assert.NoError(suite.T(), err)
}

func (suite *AdminRepoTestSuite) TestDelete_Success() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM admins WHERE id = $1`)).
		WithArgs(suite.adminID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := suite.repo.Delete(suite.context, suite.adminID)
	assert.NoError(suite.T(), err)
}

func (suite *AdminRepoTestSuite) TestListOrphans() {
	cutoff := time.Now().Add(-15 * time.Minute)
	created := cutoff.Add(-time.Hour)
	suite.mock.ExpectQuery(regexp.QuoteMeta(`a.organization_id IS NULL`)).
		WithArgs(cutoff, 100).
		WillReturnRows(pgxmock.NewRows(adminRowColumns()).
			AddRow(suite.adminID, "a@x.com", "d1", nil, "Acme", created, created))

	admins, err := suite.repo.ListOrphans(suite.context, cutoff, 100)
	assert.NoError(suite.T(), err)
	if assert.Len(suite.T(), admins, 1) {
		assert.Nil(suite.T(), admins[0].OrganizationID)
	}
}
