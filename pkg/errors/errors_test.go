package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateNameError_QuotesName(t *testing.T) {
	err := DuplicateNameError("Summer")

	assert.Equal(t, `A template named "Summer" already exists`, err.Error())
	assert.True(t, IsValidationError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err.ToHTTPError()))
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "validation", err: NewValidationError("shop is required"), code: http.StatusBadRequest},
		{name: "wrapped validation", err: fmt.Errorf("create: %w", NewValidationError("bad")), code: http.StatusBadRequest},
		{name: "not found", err: NewNotFoundError(ReasonNoAssignment, "no chart"), code: http.StatusNotFound},
		{name: "upstream", err: &UpstreamError{URL: "https://x.test", StatusCode: 503}, code: http.StatusBadGateway},
		{name: "http error", err: httperror.NewHTTPError(http.StatusConflict, "conflict"), code: http.StatusConflict},
		{name: "plain", err: fmt.Errorf("boom"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := ToHTTPError(tt.err)
			require.NotNil(t, httpErr)
			assert.Equal(t, tt.code, httperror.GetStatusCode(httpErr))
		})
	}

	assert.Nil(t, ToHTTPError(nil))
}

func TestNotFoundReason(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewNotFoundError(ReasonTemplateInactive, ""))

	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, ReasonTemplateInactive, NotFoundReason(err))
	assert.Equal(t, "", NotFoundReason(fmt.Errorf("other")))
}

func TestUpstreamError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &UpstreamError{
		URL:        "https://api.test/size-chart/public",
		Shop:       "acme",
		ProductID:  "123",
		StatusCode: 500,
		Message:    "failed to load size chart",
		Err:        cause,
	}

	assert.Equal(t, "failed to load size chart (status 500): connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	details := err.Details()
	assert.Equal(t, "acme", details["shop"])
	assert.Equal(t, "123", details["product_id"])
	assert.Equal(t, 500, details["status_code"])
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError(ReasonNotFound, "Profile not found")))
	assert.True(t, IsNotFound(httperror.NewHTTPError(http.StatusNotFound, "template not found")))
	assert.False(t, IsNotFound(NewValidationError("id is required")))
	assert.False(t, IsNotFound(nil))
	assert.Equal(t, http.StatusBadRequest, StatusCode(NewValidationError("id is required")))
}
