package profile

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/memory"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/objectstore"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestService() (*Service, *memory.Store, *recordingPublisher) {
	store := memory.NewStore()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	publisher := &recordingPublisher{}
	service := NewService(
		logger,
		store.Templates(),
		nil,
		events.NewEmitter(publisher, logger),
		objectstore.NewNormalizer("charts", "us-east-1"),
	)
	return service, store, publisher
}

func profileData() map[string]any {
	return map[string]any{
		"measurementFields": []any{
			map[string]any{"id": "chest", "name": "Chest", "required": true, "guideImage": "guides/chest.png"},
			map[string]any{"id": "waist", "name": "Waist", "enabled": false},
		},
		"savedMeasurements": map[string]any{"chest": 38.0},
	}
}

func TestCreate_DuplicateNamePerShop(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	created, err := service.Create(ctx, "acme", Draft{Name: " Summer ", ChartData: profileData()})
	require.NoError(t, err)
	assert.Equal(t, "Summer", created.Name)

	_, err = service.Create(ctx, "acme", Draft{Name: "Summer", ChartData: profileData()})
	require.Error(t, err)
	assert.True(t, fernerrors.IsValidationError(err))
	assert.Contains(t, err.Error(), `"Summer"`)

	// the domain form is the same shop
	_, err = service.Create(ctx, "acme.myshopify.com", Draft{Name: "Summer", ChartData: profileData()})
	assert.True(t, fernerrors.IsValidationError(err))

	_, err = service.Create(ctx, "globex", Draft{Name: "Summer", ChartData: profileData()})
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{name: "blank name", draft: Draft{Name: "   ", ChartData: profileData()}, field: "name"},
		{name: "no chart data", draft: Draft{Name: "A"}, field: "measurementFields"},
		{name: "no fields", draft: Draft{Name: "A", ChartData: map[string]any{"fitPreferencesEnabled": true}}, field: "measurementFields"},
		{name: "nothing enabled", draft: Draft{Name: "A", ChartData: map[string]any{
			"measurementFields": []any{map[string]any{"id": "chest", "enabled": false}},
		}}, field: "measurementFields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, "acme", tt.draft)
			require.Error(t, err)
			var validation *fernerrors.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}

	_, err := service.Create(ctx, "", Draft{Name: "A", ChartData: profileData()})
	assert.True(t, fernerrors.IsValidationError(err))
}

func TestCreate_StoresNormalizedReturnsOriginal(t *testing.T) {
	service, store, publisher := newTestService()
	ctx := context.Background()

	created, err := service.Create(ctx, "acme", Draft{Name: "Summer", ChartData: profileData()})
	require.NoError(t, err)

	returned := created.ChartData["measurementFields"].([]any)[0].(map[string]any)
	assert.Equal(t, "guides/chest.png", returned["guideImage"])
	assert.Equal(t, true, created.ChartData["isMeasurementTemplate"])

	stored, err := store.Templates().GetByID(ctx, []string{"acme"}, created.ID)
	require.NoError(t, err)
	storedField := stored.ChartData["measurementFields"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://charts.s3.us-east-1.amazonaws.com/guides/chest.png", storedField["guideImage"])
	assert.True(t, stored.IsSavedProfile())

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.ProfileCreated, publisher.events[0].Type)
	assert.Equal(t, "acme", publisher.events[0].Shop)
}

func TestCreate_WithoutSavedMeasurementsIsStillAProfile(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	data := profileData()
	delete(data, "savedMeasurements")
	_, err := service.Create(ctx, "acme", Draft{Name: "Empty", ChartData: data})
	require.NoError(t, err)

	profiles, err := service.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Empty", profiles[0].Name)
}

func TestList_OnlySavedProfiles(t *testing.T) {
	service, store, _ := newTestService()
	ctx := context.Background()

	_, err := store.Templates().Create(ctx, &models.Template{
		Shop:      "acme",
		Name:      "Merchant form",
		Active:    true,
		ChartData: map[string]any{"isMeasurementTemplate": true, "measurementFields": []any{}},
	})
	require.NoError(t, err)
	_, err = store.Templates().Create(ctx, &models.Template{
		Shop:      "acme",
		Name:      "Tops",
		Active:    true,
		ChartData: map[string]any{"columns": []any{}, "savedMeasurements": map[string]any{}},
	})
	require.NoError(t, err)

	_, err = service.Create(ctx, "acme", Draft{Name: "Summer", ChartData: profileData()})
	require.NoError(t, err)
	_, err = service.Create(ctx, "globex", Draft{Name: "Winter", ChartData: profileData()})
	require.NoError(t, err)

	profiles, err := service.List(ctx, "acme.myshopify.com")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Summer", profiles[0].Name)
}

func TestGetAndDelete(t *testing.T) {
	service, store, publisher := newTestService()
	ctx := context.Background()

	created, err := service.Create(ctx, "acme", Draft{Name: "Summer", ChartData: profileData()})
	require.NoError(t, err)

	got, err := service.Get(ctx, "acme", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summer", got.Name)

	_, err = service.Get(ctx, "globex", created.ID)
	assert.True(t, fernerrors.IsNotFoundError(err))

	deleted, err := service.Delete(ctx, "globex", created.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "another shop cannot delete it")

	deleted, err = service.Delete(ctx, "acme", created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = service.Delete(ctx, "acme", created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Equal(t, events.ProfileDeleted, publisher.events[len(publisher.events)-1].Type)

	merchant, err := store.Templates().Create(ctx, &models.Template{
		Shop:      "acme",
		Name:      "Merchant form",
		ChartData: map[string]any{"isMeasurementTemplate": true},
	})
	require.NoError(t, err)
	deleted, err = service.Delete(ctx, "acme", merchant.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "merchant templates are not profiles")

	_, err = service.Delete(ctx, "acme", "")
	assert.True(t, fernerrors.IsValidationError(err))
}
