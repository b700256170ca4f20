package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
)

func (suite *OrganizationServiceTestSuite) TestReconcile_CleanDirectory() {
	suite.create("Acme", "a@x.com", "p1")

	report, err := suite.service.Reconcile(suite.context, time.Minute)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), &ReconcileReport{}, report)
	assert.Equal(suite.T(), 1, suite.dir.OrganizationCount())
	assert.True(suite.T(), suite.dir.HasSchema("org_acme"))
}

func (suite *OrganizationServiceTestSuite) TestReconcile_RemovesOrphanedAdmins() {
	suite.create("Acme", "a@x.com", "p1")
	suite.dir.PutAdmin(&models.Admin{
		ID:               uuid.New(),
		Email:            "lost@x.com",
		OrganizationName: "Lost",
		CreatedAt:        time.Now().Add(-time.Hour),
	})

	report, err := suite.service.Reconcile(suite.context, time.Minute)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, report.OrphansRemoved)
	assert.Equal(suite.T(), 1, suite.dir.AdminCount())
}

func (suite *OrganizationServiceTestSuite) TestReconcile_KeepsRecentOrphans() {
	suite.dir.PutAdmin(&models.Admin{
		ID:        uuid.New(),
		Email:     "creating@x.com",
		CreatedAt: time.Now(),
	})

	report, err := suite.service.Reconcile(suite.context, time.Hour)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 0, report.OrphansRemoved)
	assert.Equal(suite.T(), 1, suite.dir.AdminCount())
}

func (suite *OrganizationServiceTestSuite) TestReconcile_FinishesInterruptedDelete() {
	view := suite.create("Acme", "a@x.com", "p1")
	suite.dir.RemoveAdmin(uuid.MustParse(view.AdminID))

	report, err := suite.service.Reconcile(suite.context, time.Minute)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, report.DanglingRemoved)
	assert.Equal(suite.T(), 0, suite.dir.OrganizationCount())
	assert.False(suite.T(), suite.dir.HasSchema("org_acme"))

	_, err = suite.service.Get(suite.context, "Acme")
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *OrganizationServiceTestSuite) TestReconcile_RecreatesMissingPartition() {
	suite.create("Acme", "a@x.com", "p1")
	suite.dir.RemoveSchema("org_acme")

	report, err := suite.service.Reconcile(suite.context, time.Minute)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, report.PartitionsRepaired)
	assert.True(suite.T(), suite.dir.HasSchema("org_acme"))
}

func (suite *OrganizationServiceTestSuite) TestReconcile_ContinuesPastFailures() {
	suite.create("Acme", "a@x.com", "p1")
	beta := suite.create("Beta", "b@x.com", "p2")
	suite.dir.RemoveSchema("org_acme")
	suite.dir.RemoveAdmin(uuid.MustParse(beta.AdminID))
	suite.dir.FailOn("CreateSchema", errors.New("disk full"))

	report, err := suite.service.Reconcile(suite.context, time.Minute)
	assert.ErrorContains(suite.T(), err, "disk full")
	assert.ErrorContains(suite.T(), err, "reconcile organization 'Acme'")
	assert.Equal(suite.T(), 0, report.PartitionsRepaired)
	assert.Equal(suite.T(), 1, report.DanglingRemoved)
	assert.Equal(suite.T(), 1, suite.dir.OrganizationCount())
}
