package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one version of the HTTP API.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active" or "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

// VersionMiddleware stamps responses with the API version they were served by.
type VersionMiddleware struct {
	versions       map[string]APIVersion
	defaultVersion string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		versions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active"},
		},
		defaultVersion: "v1",
	}
}

// deprecate marks version as deprecated until sunset.
func (vm *VersionMiddleware) deprecate(version string, sunset time.Time) {
	vm.versions[version] = APIVersion{Version: version, Status: "deprecated", SunsetDate: &sunset}
}

// VersionHeader sets X-API-Version, plus deprecation headers for a
// deprecated version.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	if version == "" {
		version = vm.defaultVersion
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)

			if ver, ok := vm.versions[version]; ok && ver.Status == "deprecated" && ver.SunsetDate != nil {
				h.Set("X-API-Deprecated", "true")
				h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
			}
			return next(c)
		}
	}
}
