package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Sentinel errors shared by every layer. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	ErrNameConflict       = errors.New("organization name already exists")
	ErrPartitionConflict  = errors.New("partition already exists")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrUnavailable        = errors.New("storage unavailable")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrValidation         = errors.New("validation failed")
)

// StorageError folds context expiry into ErrUnavailable so callers only
// have to look for one sentinel.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// HTTPStatus maps an error from the service layer onto a status code and an
// error code for the JSON envelope.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNameConflict), errors.Is(err, ErrPartitionConflict):
		return http.StatusBadRequest, "NAME_CONFLICT"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "SERVER_ERROR"
	}
}

// SendError writes err using the standard envelope. Unknown errors are
// reported with a generic message so internals do not leak.
func SendError(c echo.Context, err error) error {
	status, code := HTTPStatus(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "operation could not be completed"
	case http.StatusServiceUnavailable:
		message = ErrUnavailable.Error()
	}
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	return c.JSON(status, CreateErrorResponse(code, message, nil))
}
