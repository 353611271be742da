package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/memory"
	assignmentsvc "github.com/Ramsey-B/fern/internal/services/assignment"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fixture struct {
	store *memory.Store
	e     *echo.Echo
}

func newFixture() *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	store := memory.NewStore()
	service := assignmentsvc.NewService(logger, store, store.Templates(), store.Assignments(), nil, nil)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(service).Register(e.Group("/api/v1/products/:product_id/assignments", middleware.TestAuth()))
	return &fixture{store: store, e: e}
}

func (f *fixture) template(t *testing.T, name string, data map[string]any) *models.Template {
	t.Helper()
	created, err := f.store.Templates().Create(context.Background(), &models.Template{
		Shop: "acme", Name: name, Active: true, ChartData: data,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) call(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderShopDomain, "acme")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestAssignListUnassign(t *testing.T) {
	f := newFixture()
	table := f.template(t, "Tops", map[string]any{"columns": []any{}})
	custom := f.template(t, "Made to order", map[string]any{"isMeasurementTemplate": true, "measurementFields": []any{}})

	rec := f.call(http.MethodPost, "/api/v1/products/123/assignments", `{"template_id":"`+table.ID+`","product_title":"Linen Kurta"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "123", created.ProductID)
	assert.Equal(t, table.ID, created.TemplateID)

	rec = f.call(http.MethodPost, "/api/v1/products/123/assignments", `{"template_id":"`+custom.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.call(http.MethodGet, "/api/v1/products/123/assignments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list AssignmentListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	require.NotNil(t, list.Items[0].Template)

	rec = f.call(http.MethodDelete, "/api/v1/products/123/assignments/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var unassigned UnassignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unassigned))
	assert.Equal(t, 1, unassigned.Deleted)

	rec = f.call(http.MethodGet, "/api/v1/products/123/assignments", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, custom.ID, list.Items[0].TemplateID)
}

func TestAssignErrors(t *testing.T) {
	f := newFixture()

	rec := f.call(http.MethodPost, "/api/v1/products/123/assignments", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "TemplateID is required")

	rec = f.call(http.MethodPost, "/api/v1/products/123/assignments", `{"template_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.call(http.MethodDelete, "/api/v1/products/123/assignments/grid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
