package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"orgmanager/internal/common"
	"orgmanager/internal/models"
	"orgmanager/internal/services"
)

// AuthHandlers handles admin authentication
type AuthHandlers struct {
	authService services.AuthService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// Login exchanges admin email and password for a bearer token
func (h *AuthHandlers) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return common.SendError(c, fmt.Errorf("%w: invalid request format", common.ErrValidation))
	}

	token, err := h.authService.Login(c.Request().Context(), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}
