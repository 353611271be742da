package template

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/memory"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
)

type countingCache struct {
	cache.NoopCache
	invalidated []string
}

func (c *countingCache) Invalidate(_ context.Context, shop string) {
	c.invalidated = append(c.invalidated, shop)
}

type recordingPublisher struct {
	types []events.Type
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.types = append(p.types, event.Type)
	return nil
}

type fixture struct {
	store     *memory.Store
	cache     *countingCache
	publisher *recordingPublisher
	service   *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &fixture{
		store:     store,
		cache:     &countingCache{},
		publisher: &recordingPublisher{},
	}
	f.service = NewService(logger, store, store.Templates(), store.Assignments(), f.cache, events.NewEmitter(f.publisher, logger))
	return f
}

func ptr[T any](v T) *T {
	return &v
}

func customInput(name string) Input {
	return Input{
		Name: ptr(name),
		ChartData: map[string]any{
			"isMeasurementTemplate": true,
			"measurementFields":     []any{map[string]any{"id": "chest", "name": "Chest"}},
		},
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.service.Create(ctx, "acme", Input{Name: ptr("  Tops  "), Description: ptr("Cotton tops")})
	require.NoError(t, err)
	assert.Equal(t, "Tops", created.Name)
	assert.True(t, created.Active)
	assert.Equal(t, chart.KindTable, created.Kind())
	assert.Equal(t, []string{"acme"}, f.cache.invalidated)
	assert.Equal(t, []events.Type{events.TemplateCreated}, f.publisher.types)

	_, err = f.service.Create(ctx, "acme", Input{Name: ptr("Tops")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Tops"`)

	_, err = f.service.Create(ctx, "acme", Input{Name: ptr(" ")})
	assert.True(t, fernerrors.IsValidationError(err))

	_, err = f.service.Create(ctx, "globex", Input{Name: ptr("Tops")})
	assert.NoError(t, err)
}

func TestList_KindFilterExcludesProfiles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Create(ctx, "acme", Input{Name: ptr("Tops")})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, "acme", customInput("Made to order"))
	require.NoError(t, err)
	_, err = f.store.Templates().Create(ctx, &models.Template{
		Shop: "acme",
		Name: "Buyer profile",
		ChartData: map[string]any{
			"isMeasurementTemplate": true,
			"savedMeasurements":     map[string]any{"chest": 38},
		},
	})
	require.NoError(t, err)

	all, err := f.service.List(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	custom := chart.KindCustom
	customs, err := f.service.List(ctx, "acme", &custom)
	require.NoError(t, err)
	require.Len(t, customs, 1)
	assert.Equal(t, "Made to order", customs[0].Name)

	summary, err := f.service.Summary(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, models.TemplateSummary{Total: 2, Table: 1, Custom: 1, Active: 2, SavedProfiles: 1}, *summary)
}

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tops, err := f.service.Create(ctx, "acme", Input{Name: ptr("Tops")})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, "acme", Input{Name: ptr("Bottoms")})
	require.NoError(t, err)

	_, err = f.service.Update(ctx, "acme", tops.ID, Input{Name: ptr("Bottoms")})
	require.Error(t, err)
	assert.True(t, fernerrors.IsValidationError(err))

	updated, err := f.service.Update(ctx, "acme", tops.ID, Input{Name: ptr("Tops"), Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "Tops", updated.Name)

	updated, err = f.service.Update(ctx, "acme", tops.ID, customInput("Tops"))
	require.NoError(t, err)
	assert.Equal(t, chart.KindCustom, updated.Kind())

	_, err = f.service.Update(ctx, "globex", tops.ID, Input{Active: ptr(true)})
	assert.True(t, fernerrors.IsNotFound(err))
}

func TestDelete_RemovesAssignments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tops, err := f.service.Create(ctx, "acme", Input{Name: ptr("Tops")})
	require.NoError(t, err)
	_, err = f.store.Assignments().Create(ctx, &models.Assignment{Shop: "acme", ProductID: "123", TemplateID: tops.ID})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, "acme", tops.ID))

	assignments, err := f.store.Assignments().ListByProduct(ctx, []string{"acme"}, "123")
	require.NoError(t, err)
	assert.Empty(t, assignments)

	_, err = f.service.Get(ctx, "acme", tops.ID)
	assert.True(t, fernerrors.IsNotFound(err))
	assert.Equal(t, events.TemplateDeleted, f.publisher.types[len(f.publisher.types)-1])

	err = f.service.Delete(ctx, "acme", tops.ID)
	assert.True(t, fernerrors.IsNotFound(err))
}
