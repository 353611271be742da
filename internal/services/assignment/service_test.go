package assignment

import (
	"context"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/memory"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []events.Type
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.Type)
	return nil
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	service   *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	publisher := &recordingPublisher{}
	return &fixture{
		store:     store,
		publisher: publisher,
		service:   NewService(logger, store, store.Templates(), store.Assignments(), nil, events.NewEmitter(publisher, logger)),
	}
}

func (f *fixture) template(t *testing.T, name string, data map[string]any) *models.Template {
	t.Helper()
	created, err := f.store.Templates().Create(context.Background(), &models.Template{
		Shop:      "acme",
		Name:      name,
		Active:    true,
		ChartData: data,
	})
	require.NoError(t, err)
	return created
}

func tableData() map[string]any {
	return map[string]any{"columns": []any{}}
}

func customData() map[string]any {
	return map[string]any{"isMeasurementTemplate": true, "measurementFields": []any{}}
}

func templateIDs(list []*models.AssignmentWithTemplate) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.TemplateID)
	}
	return ids
}

func TestAssign_OnePerKind(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tops := f.template(t, "Tops", tableData())
	shirts := f.template(t, "Shirts", tableData())
	custom := f.template(t, "Made to order", customData())

	_, err := f.service.Assign(ctx, "acme", "gid://shopify/Product/123", tops.ID, "Linen Kurta")
	require.NoError(t, err)
	_, err = f.service.Assign(ctx, "acme", "123", custom.ID, "Linen Kurta")
	require.NoError(t, err)

	list, err := f.service.ListForProduct(ctx, "acme", "123")
	require.NoError(t, err)
	assert.Equal(t, []string{tops.ID, custom.ID}, templateIDs(list), "a table and a custom chart coexist")

	_, err = f.service.Assign(ctx, "acme", "123", shirts.ID, "Linen Kurta")
	require.NoError(t, err)

	list, err = f.service.ListForProduct(ctx, "acme", "123")
	require.NoError(t, err)
	assert.Equal(t, []string{custom.ID, shirts.ID}, templateIDs(list), "the other table chart is replaced")
	assert.Equal(t, "Linen Kurta", list[1].ProductTitle)
	require.NotNil(t, list[1].Template)
	assert.Equal(t, "Shirts", list[1].Template.Name)
}

func TestAssign_SameTemplateIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tops := f.template(t, "Tops", tableData())

	first, err := f.service.Assign(ctx, "acme", "123", tops.ID, "")
	require.NoError(t, err)
	second, err := f.service.Assign(ctx, "acme.myshopify.com", "123", tops.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := f.service.ListForProduct(ctx, "acme", "123")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, []events.Type{events.AssignmentCreated}, f.publisher.types)
}

func TestAssign_Rejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	profile := f.template(t, "Buyer", map[string]any{
		"isMeasurementTemplate": true,
		"savedMeasurements":     map[string]any{"chest": 38},
	})

	_, err := f.service.Assign(ctx, "acme", "123", profile.ID, "")
	assert.True(t, fernerrors.IsValidationError(err))

	_, err = f.service.Assign(ctx, "acme", "", profile.ID, "")
	assert.True(t, fernerrors.IsValidationError(err))

	_, err = f.service.Assign(ctx, "globex", "123", profile.ID, "")
	assert.True(t, fernerrors.IsNotFound(err))
}

func TestAssign_Concurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ids := []string{
		f.template(t, "A", tableData()).ID,
		f.template(t, "B", tableData()).ID,
		f.template(t, "C", tableData()).ID,
		f.template(t, "D", tableData()).ID,
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.service.Assign(ctx, "acme", "123", id, "")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	list, err := f.service.ListForProduct(ctx, "acme", "123")
	require.NoError(t, err)
	assert.Len(t, list, 1, "exactly one table chart survives")
}

func TestUnassign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tops := f.template(t, "Tops", tableData())
	custom := f.template(t, "Made to order", customData())

	_, err := f.service.Assign(ctx, "acme", "123", tops.ID, "")
	require.NoError(t, err)
	_, err = f.service.Assign(ctx, "acme", "123", custom.ID, "")
	require.NoError(t, err)

	removed, err := f.service.Unassign(ctx, "acme", "123", chart.KindCustom)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = f.service.Unassign(ctx, "acme", "123", chart.KindCustom)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	list, err := f.service.ListForProduct(ctx, "acme", "123")
	require.NoError(t, err)
	assert.Equal(t, []string{tops.ID}, templateIDs(list))
}
