// Package template is the merchant-facing template admin.
package template

import (
	"context"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/assignment"
	templaterepo "github.com/Ramsey-B/fern/internal/repositories/template"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/shop"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Input is a merchant's create or update request. Nil fields are left unchanged on update.
type Input struct {
	Name            *string
	Description     *string
	Active          *bool
	ChartData       map[string]any
	MeasurementFile *string
}

type Service struct {
	logger      ectologger.Logger
	tx          database.Transactor
	templates   templaterepo.TemplateRepository
	assignments assignment.AssignmentRepository
	cache       cache.ChartCache
	emitter     *events.Emitter
}

func NewService(
	logger ectologger.Logger,
	tx database.Transactor,
	templates templaterepo.TemplateRepository,
	assignments assignment.AssignmentRepository,
	chartCache cache.ChartCache,
	emitter *events.Emitter,
) *Service {
	if chartCache == nil {
		chartCache = cache.NoopCache{}
	}
	return &Service{
		logger:      logger,
		tx:          tx,
		templates:   templates,
		assignments: assignments,
		cache:       chartCache,
		emitter:     emitter,
	}
}

func (s *Service) Create(ctx context.Context, shopName string, input Input) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Create")
	defer span.End()

	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, fernerrors.NewValidationError("name is required").AddField("name")
	}
	name := strings.TrimSpace(*input.Name)

	data, err := chartData(input.ChartData)
	if err != nil {
		return nil, err
	}

	exists, err := s.templates.ExistsByName(ctx, shop.Variants(shopName), name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fernerrors.DuplicateNameError(name)
	}

	t := &models.Template{
		Shop:      shopName,
		Name:      name,
		Active:    true,
		ChartData: data,
	}
	if input.Description != nil {
		t.Description = strings.TrimSpace(*input.Description)
	}
	if input.Active != nil {
		t.Active = *input.Active
	}
	if input.MeasurementFile != nil {
		t.MeasurementFile = strings.TrimSpace(*input.MeasurementFile)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop": shopName,
		"name": name,
		"kind": t.Kind(),
	}).Info("Creating template")

	created, err := s.templates.Create(ctx, t)
	if err != nil {
		return nil, err
	}

	s.changed(ctx, events.TemplateCreated, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, shopName, id string) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Get")
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, fernerrors.NewValidationError("id is required").AddField("id")
	}
	return s.templates.GetByID(ctx, shop.Variants(shopName), id)
}

// List returns the shop's merchant templates, optionally of one kind. Saved
// buyer profiles are never listed.
func (s *Service) List(ctx context.Context, shopName string, kind *chart.Kind) ([]*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.List")
	defer span.End()

	templates, err := s.templates.List(ctx, shop.Variants(shopName))
	if err != nil {
		return nil, err
	}

	return ectolinq.Filter(templates, func(t *models.Template) bool {
		if t.IsSavedProfile() {
			return false
		}
		return kind == nil || t.Kind() == *kind
	}), nil
}

func (s *Service) Update(ctx context.Context, shopName, id string, input Input) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Update")
	defer span.End()

	existing, err := s.Get(ctx, shopName, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fernerrors.NewValidationError("name cannot be empty").AddField("name")
		}
		if name != existing.Name {
			exists, err := s.templates.ExistsByName(ctx, shop.Variants(shopName), name, existing.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fernerrors.DuplicateNameError(name)
			}
		}
		existing.Name = name
	}
	if input.Description != nil {
		existing.Description = strings.TrimSpace(*input.Description)
	}
	if input.Active != nil {
		existing.Active = *input.Active
	}
	if input.MeasurementFile != nil {
		existing.MeasurementFile = strings.TrimSpace(*input.MeasurementFile)
	}
	if input.ChartData != nil {
		data, err := chartData(input.ChartData)
		if err != nil {
			return nil, err
		}
		existing.ChartData = data
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop": shopName,
		"id":   existing.ID,
		"kind": existing.Kind(),
	}).Info("Updating template")

	updated, err := s.templates.Update(ctx, existing)
	if err != nil {
		return nil, err
	}

	s.changed(ctx, events.TemplateUpdated, updated)
	return updated, nil
}

// Delete removes a template and every assignment pointing at it.
func (s *Service) Delete(ctx context.Context, shopName, id string) error {
	ctx, span := tracing.StartSpan(ctx, "template.Delete")
	defer span.End()

	existing, err := s.Get(ctx, shopName, id)
	if err != nil {
		return err
	}

	variants := shop.Variants(shopName)
	var removed int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.assignments.DeleteByTemplate(ctx, variants, existing.ID)
		if err != nil {
			return err
		}
		removed = n
		return s.templates.Delete(ctx, variants, existing.ID)
	})
	if err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":                shopName,
		"id":                  existing.ID,
		"removed_assignments": removed,
	}).Info("Deleted template")

	s.changed(ctx, events.TemplateDeleted, existing)
	return nil
}

// Summary counts the shop's templates per kind.
func (s *Service) Summary(ctx context.Context, shopName string) (*models.TemplateSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "template.Summary")
	defer span.End()

	templates, err := s.templates.List(ctx, shop.Variants(shopName))
	if err != nil {
		return nil, err
	}

	summary := &models.TemplateSummary{}
	for _, t := range templates {
		if t.IsSavedProfile() {
			summary.SavedProfiles++
			continue
		}
		summary.Total++
		if t.Active {
			summary.Active++
		}
		switch t.Kind() {
		case chart.KindCustom:
			summary.Custom++
		default:
			summary.Table++
		}
	}
	return summary, nil
}

func (s *Service) changed(ctx context.Context, eventType events.Type, t *models.Template) {
	s.cache.Invalidate(ctx, t.Shop)
	s.emitter.Emit(ctx, eventType, t.Shop, map[string]any{
		"id":     t.ID,
		"name":   t.Name,
		"kind":   t.Kind(),
		"active": t.Active,
	})
}

// chartData checks that a submitted blob decodes as a chart. A missing blob is
// an empty table.
func chartData(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	if _, err := chart.Decode(raw); err != nil {
		return nil, fernerrors.NewValidationErrorf("chart_data is not a valid chart: %v", err).AddField("chart_data")
	}
	return raw, nil
}
