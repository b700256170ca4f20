package common

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"orgmanager/internal/models"
)

type contextKey string

const (
	AdminKey     contextKey = "admin"
	RequestIDKey contextKey = "request_id"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, fieldName)
	}
	return nil
}

// ValidateEmail checks that value is a bare address such as a@x.com.
func ValidateEmail(value, fieldName string) error {
	if err := ValidateRequiredString(value, fieldName); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return fmt.Errorf("%w: %s must be a valid email address", ErrValidation, fieldName)
	}
	return nil
}

// WithAdmin stores the authenticated administrator on ctx.
func WithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, AdminKey, admin)
}

// GetAdminFromContext extracts the authenticated administrator from the request context
func GetAdminFromContext(ctx context.Context) (*models.Admin, bool) {
	admin, ok := ctx.Value(AdminKey).(*models.Admin)
	return admin, ok && admin != nil
}

// GetRequestIDFromContext extracts the request id set by the request id middleware
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
