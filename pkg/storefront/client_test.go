package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/"}, nil, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})), server.URL
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestResolveChart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ChartPath, r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("shop"))
		assert.Equal(t, "123", r.URL.Query().Get("productId"))
		assert.Equal(t, "custom", r.URL.Query().Get("templateType"))
		writeJSON(w, http.StatusOK, ChartResponse{
			HasChart:    true,
			ProductName: "Linen Kurta",
			Template: &Template{
				ID:        "t1",
				Name:      "Made to order",
				ChartData: map[string]any{"isMeasurementTemplate": true},
			},
		})
	})

	kind := chart.KindCustom
	resp, err := client.ResolveChart(context.Background(), "acme", "123", &kind)
	require.NoError(t, err)
	assert.Equal(t, "Linen Kurta", resp.ProductName)
	assert.Equal(t, "t1", resp.Template.ID)
	assert.Equal(t, chart.KindCustom, chart.Classify(resp.Template.ChartData))
}

func TestResolveChart_NotFoundKeepsReason(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ChartResponse{Error: "The size chart assigned to this product is inactive", Reason: "template_inactive"})
	})

	_, err := client.ResolveChart(context.Background(), "acme", "123", nil)
	require.Error(t, err)
	assert.Equal(t, fernerrors.ReasonTemplateInactive, fernerrors.NotFoundReason(err))
}

func TestResolveChart_ServerErrorCarriesContext(t *testing.T) {
	client, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.ResolveChart(context.Background(), "acme", "123", nil)
	var upstream *fernerrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.Equal(t, "acme", upstream.Shop)
	assert.Equal(t, "123", upstream.ProductID)
	assert.Contains(t, upstream.URL, base+ChartPath)
}

func TestProfiles(t *testing.T) {
	var deleted string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ProfilesPath, r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, ProfilesResponse{Success: true, Templates: []Template{{ID: "p1", Name: "Summer"}}})
		case http.MethodPost:
			var draft ProfileDraft
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
			if draft.Name == "Summer" {
				writeJSON(w, http.StatusBadRequest, ProfilesResponse{Error: `A template named "Summer" already exists`})
				return
			}
			writeJSON(w, http.StatusCreated, ProfilesResponse{Success: true, Template: &Template{ID: "p2", Name: draft.Name}})
		case http.MethodDelete:
			deleted = r.URL.Query().Get("id")
			writeJSON(w, http.StatusOK, ProfilesResponse{Success: true})
		}
	})
	ctx := context.Background()

	profiles, err := client.ListProfiles(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Summer", profiles[0].Name)

	_, err = client.SaveProfile(ctx, "acme", ProfileDraft{Name: "Summer"})
	require.Error(t, err)
	assert.True(t, fernerrors.IsValidationError(err))
	assert.Equal(t, `A template named "Summer" already exists`, err.Error())

	saved, err := client.SaveProfile(ctx, "acme", ProfileDraft{Name: "Winter"})
	require.NoError(t, err)
	assert.Equal(t, "p2", saved.ID)

	require.NoError(t, client.DeleteProfile(ctx, "acme", "p1"))
	assert.Equal(t, "p1", deleted)
}

func TestDeleteProfile_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ProfilesResponse{Error: "Profile not found"})
	})

	err := client.DeleteProfile(context.Background(), "acme", "p1")
	assert.True(t, fernerrors.IsNotFoundError(err))
}
