package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

type createRequest struct {
	Name string `json:"name" validate:"required,max=10"`
	Kind string `json:"kind" validate:"omitempty,oneof=table custom"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(createRequest{Name: "Summer", Kind: "table"})
	require.NoError(t, err)

	_, err = Validate(createRequest{})
	require.Error(t, err)
	assert.Equal(t, "Name is required", err.Error())

	_, err = Validate(createRequest{Name: "a very long name", Kind: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name must be at most 10 characters")
	assert.Contains(t, err.Error(), "Kind must be one of: table custom")
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Name":         "name",
		"TemplateID":   "template_id",
		"ProductTitle": "product_title",
		"ChartData":    "chart_data",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestBindRequest(t *testing.T) {
	e := echo.New()

	bind := func(body string) (createRequest, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return BindRequest[createRequest](e.NewContext(req, httptest.NewRecorder()))
	}

	got, err := bind(`{"name":"Summer","kind":"custom"}`)
	require.NoError(t, err)
	assert.Equal(t, "Summer", got.Name)

	_, err = bind(`{"kind":"custom"}`)
	require.Error(t, err)
	var verr *fernerrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name is required", verr.Message)
	assert.Equal(t, "name", verr.Field)

	_, err = bind(`{"name":`)
	require.Error(t, err)
	assert.True(t, fernerrors.IsValidationError(err))
}
