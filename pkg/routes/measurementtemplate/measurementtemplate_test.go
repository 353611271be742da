package measurementtemplate

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/memory"
	"github.com/Ramsey-B/fern/internal/services/profile"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storefront"
)

type fixture struct {
	store *memory.Store
	e     *echo.Echo
}

func newFixture() *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	store := memory.NewStore()
	service := profile.NewService(logger, store.Templates(), nil, nil, nil)

	e := echo.New()
	NewHandler(service, logger, false).Register(e.Group("/measurement-template"))
	return &fixture{store: store, e: e}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, storefront.ProfilesResponse, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var resp storefront.ProfilesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return rec.Code, resp, raw
}

func profileJSON(name string) string {
	b, _ := json.Marshal(storefront.ProfileDraft{
		Name: name,
		ChartData: map[string]any{
			"measurementFields": []any{map[string]any{"id": "chest", "name": "Chest", "enabled": true}},
			"savedMeasurements": map[string]any{"chest": 38},
		},
	})
	return string(b)
}

func multipartRequest(t *testing.T, target, payload string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField(FormField, payload))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func jsonRequest(method, target, payload string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestCreate_Multipart(t *testing.T) {
	f := newFixture()

	code, resp, _ := f.do(t, multipartRequest(t, "/measurement-template/public?shop=s1", profileJSON("Summer")))
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Template)
	assert.Equal(t, "Summer", resp.Template.Name)
	assert.Equal(t, true, resp.Template.ChartData["isMeasurementTemplate"])
}

func TestCreate_JSONAndDuplicate(t *testing.T) {
	f := newFixture()

	code, _, _ := f.do(t, jsonRequest(http.MethodPost, "/measurement-template/public?shop=s1", profileJSON(" Summer ")))
	require.Equal(t, http.StatusCreated, code)

	code, resp, _ := f.do(t, jsonRequest(http.MethodPost, "/measurement-template/public?shop=s1", profileJSON("Summer")))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, `"Summer"`)
}

func TestCreate_Invalid(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "missing name", payload: `{"chartData":{"measurementFields":[{"id":"chest"}]}}`, want: "Profile name is required"},
		{name: "missing fields", payload: `{"name":"A","chartData":{}}`, want: "measurementFields is required"},
		{name: "no enabled field", payload: `{"name":"A","chartData":{"measurementFields":[{"id":"chest","enabled":false}]}}`, want: "At least one measurement field must be enabled"},
		{name: "not json", payload: `{`, want: "Invalid template payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp, _ := f.do(t, jsonRequest(http.MethodPost, "/measurement-template/public?shop=s1", tt.payload))
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}

func TestList_OnlySavedProfiles(t *testing.T) {
	f := newFixture()

	code, _, raw := f.do(t, httptest.NewRequest(http.MethodGet, "/measurement-template/public?shop=s1", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, raw["templates"])

	_, err := f.store.Templates().Create(context.Background(), &models.Template{
		Shop: "s1", Name: "Merchant", Active: true,
		ChartData: map[string]any{"isMeasurementTemplate": true, "measurementFields": []any{}},
	})
	require.NoError(t, err)
	f.do(t, jsonRequest(http.MethodPost, "/measurement-template/public?shop=s1", profileJSON("Summer")))

	code, resp, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/measurement-template/public?shop=s1", nil))
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Templates, 1)
	assert.Equal(t, "Summer", resp.Templates[0].Name)
	assert.NotNil(t, resp.Templates[0].CreatedAt)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	_, created, _ := f.do(t, jsonRequest(http.MethodPost, "/measurement-template/public?shop=s1", profileJSON("Summer")))
	require.NotNil(t, created.Template)

	code, _, _ := f.do(t, httptest.NewRequest(http.MethodDelete, "/measurement-template/public?shop=s1", nil))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = f.do(t, httptest.NewRequest(http.MethodDelete, "/measurement-template/public?shop=s2&id="+created.Template.ID, nil))
	assert.Equal(t, http.StatusNotFound, code)

	code, resp, _ := f.do(t, httptest.NewRequest(http.MethodDelete, "/measurement-template/public?shop=s1&id="+created.Template.ID, nil))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, _, _ = f.do(t, httptest.NewRequest(http.MethodDelete, "/measurement-template/public?shop=s1&id="+created.Template.ID, nil))
	assert.Equal(t, http.StatusNotFound, code)
}
