package handlers

import (
	"github.com/labstack/echo/v4"

	"orgmanager/internal/middleware"
	"orgmanager/internal/services"
)

// Routes bundles what RegisterRoutes mounts.
type Routes struct {
	Organizations *OrganizationHandlers
	Auth          *AuthHandlers
	Health        *HealthHandlers
	AuthService   services.AuthService
}

// RegisterRoutes mounts the public API. Mutating organization routes sit
// behind the bearer token middleware.
func RegisterRoutes(e *echo.Echo, r Routes) {
	versionMiddleware := middleware.NewVersionMiddleware()

	e.GET("/", r.Health.Root)
	e.GET("/health", r.Health.LivenessCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)

	api := e.Group("")
	api.Use(versionMiddleware.VersionHeader("v1"))

	api.POST("/admin/login", r.Auth.Login)

	org := api.Group("/org")
	org.POST("/create", r.Organizations.CreateOrganization)
	org.GET("/get", r.Organizations.GetOrganization)

	protected := org.Group("")
	protected.Use(middleware.JWTMiddleware(r.AuthService))
	protected.PUT("/update", r.Organizations.UpdateOrganization)
	protected.DELETE("/delete", r.Organizations.DeleteOrganization)
}
