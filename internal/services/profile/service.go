// Package profile manages buyers' saved measurement profiles.
package profile

import (
	"context"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/template"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/objectstore"
	"github.com/Ramsey-B/fern/pkg/shop"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// guideImageKeys are the field keys that hold a guide image reference.
var guideImageKeys = []string{"guideImage", "guideImageUrl"}

// Draft is a profile as submitted by a buyer.
type Draft struct {
	Name            string
	Description     string
	ChartData       map[string]any
	MeasurementFile string
}

type Service struct {
	logger     ectologger.Logger
	templates  template.TemplateRepository
	cache      cache.ChartCache
	emitter    *events.Emitter
	normalizer *objectstore.Normalizer
}

func NewService(
	logger ectologger.Logger,
	templates template.TemplateRepository,
	chartCache cache.ChartCache,
	emitter *events.Emitter,
	normalizer *objectstore.Normalizer,
) *Service {
	if chartCache == nil {
		chartCache = cache.NoopCache{}
	}
	if normalizer == nil {
		normalizer = objectstore.NewNormalizer("", "")
	}
	return &Service{
		logger:     logger,
		templates:  templates,
		cache:      chartCache,
		emitter:    emitter,
		normalizer: normalizer,
	}
}

// Create stores a saved profile. The stored copy has its guide images
// normalized; the returned template keeps the submitted field objects.
func (s *Service) Create(ctx context.Context, shopName string, draft Draft) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Create")
	defer span.End()

	created, err := s.create(ctx, shopName, draft)
	metrics.ProfileOperationsTotal.WithLabelValues("create", status(err)).Inc()
	return created, err
}

func (s *Service) create(ctx context.Context, shopName string, draft Draft) (*models.Template, error) {
	if strings.TrimSpace(shopName) == "" {
		return nil, fernerrors.NewValidationError("shop is required").AddField("shop")
	}

	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return nil, fernerrors.NewValidationError("Profile name is required").AddField("name")
	}

	data, err := validateChartData(draft.ChartData)
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

	stored := &models.Template{
		Shop:            shopName,
		Name:            name,
		Description:     strings.TrimSpace(draft.Description),
		Active:          true,
		ChartData:       s.normalizeGuideImages(data),
		MeasurementFile: s.normalizer.Key(draft.MeasurementFile),
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop": shopName,
		"name": name,
	}).Info("Creating saved measurement profile")

	created, err := s.templates.Create(ctx, stored)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, shopName)
	s.emitter.Emit(ctx, events.ProfileCreated, shopName, map[string]any{
		"id":   created.ID,
		"name": created.Name,
	})

	result := *created
	result.ChartData = data
	return &result, nil
}

// validateChartData checks a submitted blob and returns a copy marked as a
// saved measurement profile.
func validateChartData(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		return nil, fernerrors.NewValidationError("measurementFields is required").AddField("measurementFields")
	}
	if _, ok := raw["measurementFields"].([]any); !ok {
		return nil, fernerrors.NewValidationError("measurementFields is required").AddField("measurementFields")
	}

	data := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		data[k] = v
	}
	data["isMeasurementTemplate"] = true
	if saved, ok := data["savedMeasurements"]; !ok || saved == nil {
		data["savedMeasurements"] = map[string]any{}
	}

	measurement, err := chart.DecodeMeasurement(data)
	if err != nil {
		return nil, fernerrors.NewValidationError("measurementFields is not valid").AddField("measurementFields")
	}
	if ectolinq.IsEmpty(measurement.EnabledFields()) {
		return nil, fernerrors.NewValidationError("At least one measurement field must be enabled").AddField("measurementFields")
	}

	return data, nil
}

// normalizeGuideImages returns a copy of data with s3 references and bare
// guide image keys turned into https URLs.
func (s *Service) normalizeGuideImages(data map[string]any) map[string]any {
	out := s.normalizer.DeepMap(data)
	fields, _ := out["measurementFields"].([]any)
	for _, item := range fields {
		field, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range guideImageKeys {
			if ref, ok := field[key].(string); ok && ref != "" {
				field[key] = s.normalizer.Key(ref)
			}
		}
	}
	return out
}

// List returns the shop's saved profiles, newest first.
func (s *Service) List(ctx context.Context, shopName string) ([]*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.List")
	defer span.End()

	if strings.TrimSpace(shopName) == "" {
		return nil, fernerrors.NewValidationError("shop is required").AddField("shop")
	}

	templates, err := s.templates.List(ctx, shop.Variants(shopName))
	metrics.ProfileOperationsTotal.WithLabelValues("list", status(err)).Inc()
	if err != nil {
		return nil, err
	}

	profiles := ectolinq.Filter(templates, func(t *models.Template) bool {
		return t.IsSavedProfile()
	})
	return ectolinq.Map(profiles, s.present), nil
}

// Get returns one saved profile of the shop.
func (s *Service) Get(ctx context.Context, shopName, id string) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Get")
	defer span.End()

	profile, err := s.find(ctx, shopName, id)
	if err != nil {
		return nil, err
	}
	return s.present(profile), nil
}

func (s *Service) find(ctx context.Context, shopName, id string) (*models.Template, error) {
	if strings.TrimSpace(shopName) == "" {
		return nil, fernerrors.NewValidationError("shop is required").AddField("shop")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fernerrors.NewValidationError("id is required").AddField("id")
	}

	profile, err := s.templates.GetByID(ctx, shop.Variants(shopName), id)
	if err != nil {
		if fernerrors.IsNotFound(err) {
			return nil, fernerrors.NewNotFoundError(fernerrors.ReasonNotFound, "Profile not found")
		}
		return nil, err
	}
	// merchant templates are never reachable through the profile API
	if !profile.IsSavedProfile() {
		return nil, fernerrors.NewNotFoundError(fernerrors.ReasonNotFound, "Profile not found")
	}
	return profile, nil
}

// Delete removes a saved profile. It reports false, without error, when the
// shop has no such profile.
func (s *Service) Delete(ctx context.Context, shopName, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Delete")
	defer span.End()

	deleted, err := s.delete(ctx, shopName, id)
	metrics.ProfileOperationsTotal.WithLabelValues("delete", status(err)).Inc()
	return deleted, err
}

func (s *Service) delete(ctx context.Context, shopName, id string) (bool, error) {
	profile, err := s.find(ctx, shopName, id)
	if err != nil {
		if fernerrors.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}

	if err := s.templates.Delete(ctx, shop.Variants(shopName), profile.ID); err != nil {
		if fernerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop": shopName,
		"id":   profile.ID,
	}).Info("Deleted saved measurement profile")

	s.cache.Invalidate(ctx, shopName)
	s.emitter.Emit(ctx, events.ProfileDeleted, shopName, map[string]any{
		"id":   profile.ID,
		"name": profile.Name,
	})
	return true, nil
}

func (s *Service) present(t *models.Template) *models.Template {
	out := *t
	out.ChartData = s.normalizer.DeepMap(t.ChartData)
	return &out
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
