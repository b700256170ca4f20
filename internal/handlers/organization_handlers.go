package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
	"orgmanager/internal/services"
)

// OrganizationHandlers handles organization provisioning requests
type OrganizationHandlers struct {
	orgService services.OrganizationService
}

// NewOrganizationHandlers creates a new organization handlers instance
func NewOrganizationHandlers(orgService services.OrganizationService) *OrganizationHandlers {
	return &OrganizationHandlers{orgService: orgService}
}

// CreateOrganization registers an organization and its admin
func (h *OrganizationHandlers) CreateOrganization(c echo.Context) error {
	var req models.OrganizationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendError(c, fmt.Errorf("%w: invalid request format", common.ErrValidation))
	}

	view, err := h.orgService.Create(c.Request().Context(), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, view)
}

// GetOrganization looks an organization up by name
func (h *OrganizationHandlers) GetOrganization(c echo.Context) error {
	view, err := h.orgService.Get(c.Request().Context(), c.QueryParam("organization_name"))
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateOrganization renames the caller's organization and rotates its
// admin credentials
func (h *OrganizationHandlers) UpdateOrganization(c echo.Context) error {
	admin, ok := common.GetAdminFromContext(c.Request().Context())
	if !ok {
		return common.SendError(c, common.ErrInvalidToken)
	}

	var req models.OrganizationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendError(c, fmt.Errorf("%w: invalid request format", common.ErrValidation))
	}

	view, err := h.orgService.Update(c.Request().Context(), admin, c.QueryParam("old_name"), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// DeleteOrganization removes the caller's organization and its partition
func (h *OrganizationHandlers) DeleteOrganization(c echo.Context) error {
	admin, ok := common.GetAdminFromContext(c.Request().Context())
	if !ok {
		return common.SendError(c, common.ErrInvalidToken)
	}

	name := c.QueryParam("organization_name")
	if err := h.orgService.Delete(c.Request().Context(), admin, name); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Organization '%s' and all associated data deleted successfully.", name),
	})
}
