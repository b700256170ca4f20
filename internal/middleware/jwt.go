package middleware

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
	"orgmanager/internal/services"
)

// AdminContextKey is the echo context key holding the authenticated admin.
const AdminContextKey = "admin"

// JWTMiddleware requires a bearer token that resolves to a current admin.
// The admin is stored on the echo context and on the request context.
func JWTMiddleware(auth services.AuthService) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  AdminContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return auth.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, common.ErrUnavailable) {
				return common.SendError(c, err)
			}
			return common.SendError(c, common.ErrInvalidToken)
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			if admin, ok := c.Get(AdminContextKey).(*models.Admin); ok {
				c.SetRequest(c.Request().WithContext(common.WithAdmin(c.Request().Context(), admin)))
			}
			return next(c)
		})
	}
}
