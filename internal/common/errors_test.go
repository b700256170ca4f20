package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"name conflict", fmt.Errorf("organization 'Acme': %w", ErrNameConflict), http.StatusBadRequest, "NAME_CONFLICT"},
		{"partition conflict", ErrPartitionConflict, http.StatusBadRequest, "NAME_CONFLICT"},
		{"validation", ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid credentials", ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid token", ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not found", ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unavailable", StorageError(context.DeadlineExceeded), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"unknown", errors.New("pq: something broke"), http.StatusInternalServerError, "SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := HTTPStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestStorageError(t *testing.T) {
	assert.NoError(t, StorageError(nil))

	err := StorageError(fmt.Errorf("get organization: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, err, StorageError(err), "already mapped errors are left alone")

	assert.Equal(t, ErrNotFound, StorageError(ErrNotFound))
}

func TestSendError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"client error keeps its message", fmt.Errorf("organization 'Acme': %w", ErrNameConflict), http.StatusBadRequest, "organization 'Acme': organization name already exists"},
		{"internal error is masked", errors.New("connection reset by peer"), http.StatusInternalServerError, "operation could not be completed"},
		{"unavailable is masked", StorageError(fmt.Errorf("dial 10.0.0.1: %w", context.DeadlineExceeded)), http.StatusServiceUnavailable, "storage unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, SendError(c, tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
		})
	}
}

func TestSendError_Unauthorized(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, SendError(c, ErrInvalidToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"a@x.com", true},
		{"first.last@sub.example.org", true},
		{"", false},
		{"not-an-email", false},
		{"Alice <a@x.com>", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateEmail(tt.input, "email")
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}
