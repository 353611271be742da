// Package resolver decides which stored template a storefront product shows.
package resolver

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/assignment"
	"github.com/Ramsey-B/fern/internal/repositories/template"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/objectstore"
	"github.com/Ramsey-B/fern/pkg/shop"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ResolvedTemplate is the public view of the chosen template.
type ResolvedTemplate struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ChartData       map[string]any `json:"chartData"`
	MeasurementFile string         `json:"measurementFile,omitempty"`
}

// ResolvedChart is the result of a successful resolution.
type ResolvedChart struct {
	ProductName string           `json:"productName,omitempty"`
	Kind        chart.Kind       `json:"kind"`
	Template    ResolvedTemplate `json:"template"`
}

// cachedResolution is what the cache stores: either a chart or the reason there is none.
type cachedResolution struct {
	Chart  *ResolvedChart `json:"chart,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

type Service struct {
	logger      ectologger.Logger
	templates   template.TemplateRepository
	assignments assignment.AssignmentRepository
	cache       cache.ChartCache
	normalizer  *objectstore.Normalizer
}

func NewService(
	logger ectologger.Logger,
	templates template.TemplateRepository,
	assignments assignment.AssignmentRepository,
	chartCache cache.ChartCache,
	normalizer *objectstore.Normalizer,
) *Service {
	if chartCache == nil {
		chartCache = cache.NoopCache{}
	}
	if normalizer == nil {
		normalizer = objectstore.NewNormalizer("", "")
	}
	return &Service{
		logger:      logger,
		templates:   templates,
		assignments: assignments,
		cache:       chartCache,
		normalizer:  normalizer,
	}
}

// Resolve picks the template assigned to a product. With a requested kind only
// templates of that kind are considered; without one the first active
// assignment wins. When nothing applies the error is a *errors.NotFoundError
// whose reason is no_assignment, template_inactive or template_missing.
func (s *Service) Resolve(ctx context.Context, shopName, productID string, requested *chart.Kind) (*ResolvedChart, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	productID = shop.NormalizeProductID(productID)
	if shopName == "" {
		return nil, fernerrors.NewValidationError("shop is required").AddField("shop")
	}
	if productID == "" {
		return nil, fernerrors.NewValidationError("productId is required").AddField("productId")
	}

	requestedLabel := "any"
	key := cache.Key{Shop: shopName, ProductID: productID}
	if requested != nil {
		requestedLabel = requested.String()
		key.Kind = requested.String()
	}

	// the generation is read before the database so a write that lands in
	// between orphans what this call caches
	generation, cacheable := s.cache.Generation(ctx, shopName)
	key.Generation = generation
	if cacheable {
		if b, ok := s.cache.Get(ctx, key); ok {
			var cached cachedResolution
			if err := json.Unmarshal(b, &cached); err == nil {
				metrics.ChartResolutionDuration.WithLabelValues("true").Observe(time.Since(start).Seconds())
				return s.finish(cached, requestedLabel)
			}
			s.logger.WithContext(ctx).WithField("product_id", productID).Warn("Discarding unreadable cached chart")
		}
	}

	resolved, err := s.resolve(ctx, shopName, productID, requested)
	if err != nil && !fernerrors.IsNotFoundError(err) {
		tracing.Fail(span, err)
		return nil, err
	}

	cached := cachedResolution{Chart: resolved, Reason: fernerrors.NotFoundReason(err)}
	if cacheable {
		if b, marshalErr := json.Marshal(cached); marshalErr == nil {
			s.cache.Set(ctx, key, b)
		}
	}

	metrics.ChartResolutionDuration.WithLabelValues("false").Observe(time.Since(start).Seconds())
	return s.finish(cached, requestedLabel)
}

func (s *Service) finish(cached cachedResolution, requestedLabel string) (*ResolvedChart, error) {
	if cached.Chart == nil {
		reason := cached.Reason
		if reason == "" {
			reason = fernerrors.ReasonNoAssignment
		}
		metrics.ChartResolutionsTotal.WithLabelValues(requestedLabel, reason).Inc()
		return nil, notFound(reason)
	}
	metrics.ChartResolutionsTotal.WithLabelValues(requestedLabel, cached.Chart.Kind.String()).Inc()
	return cached.Chart, nil
}

func (s *Service) resolve(ctx context.Context, shopName, productID string, requested *chart.Kind) (*ResolvedChart, error) {
	variants := shop.Variants(shopName)

	assignments, err := s.assignments.ListByProduct(ctx, variants, productID)
	if err != nil {
		return nil, err
	}
	if ectolinq.IsEmpty(assignments) {
		return nil, notFound(fernerrors.ReasonNoAssignment)
	}

	templates, err := s.templates.GetByIDs(ctx, ectolinq.Map(assignments, func(a *models.Assignment) string {
		return a.TemplateID
	}))
	if err != nil {
		return nil, err
	}

	handle := shop.Handle(shopName)
	byID := make(map[string]*models.Template, len(templates))
	for _, t := range templates {
		// a template id pointing into another shop is as good as missing
		if shop.Handle(t.Shop) == handle {
			byID[t.ID] = t
		}
	}

	chosen, assigned, reason := pick(assignments, byID, requested)
	if chosen == nil {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"shop":       shopName,
			"product_id": productID,
			"reason":     reason,
		}).Debug("No chart applies to product")
		return nil, notFound(reason)
	}

	return s.toResolved(chosen, assigned), nil
}

// pick applies the selection rules to assignments in stored order.
func pick(assignments []*models.Assignment, byID map[string]*models.Template, requested *chart.Kind) (*models.Template, *models.Assignment, string) {
	missing := false

	if requested != nil {
		for _, a := range assignments {
			t, ok := byID[a.TemplateID]
			if !ok {
				missing = true
				continue
			}
			if t.Kind() != *requested {
				continue
			}
			if !t.Active {
				return nil, nil, fernerrors.ReasonTemplateInactive
			}
			return t, a, ""
		}
		if missing {
			return nil, nil, fernerrors.ReasonTemplateMissing
		}
		return nil, nil, fernerrors.ReasonNoAssignment
	}

	found := false
	for _, a := range assignments {
		t, ok := byID[a.TemplateID]
		if !ok {
			continue
		}
		found = true
		if t.Active {
			return t, a, ""
		}
	}
	if found {
		return nil, nil, fernerrors.ReasonTemplateInactive
	}
	return nil, nil, fernerrors.ReasonTemplateMissing
}

func (s *Service) toResolved(t *models.Template, a *models.Assignment) *ResolvedChart {
	data, _ := chart.Parse(t.ChartData)
	// DeepMap copies, so the stored blob is never touched
	data = s.normalizer.DeepMap(data)
	for _, key := range []string{"sizeData", "columns", "measurementFields"} {
		if _, ok := data[key].([]any); !ok {
			data[key] = []any{}
		}
	}

	measurementFile := t.MeasurementFile
	if measurementFile != "" {
		measurementFile = s.normalizer.Key(measurementFile)
	}

	return &ResolvedChart{
		ProductName: a.ProductTitle,
		Kind:        chart.Classify(data),
		Template: ResolvedTemplate{
			ID:              t.ID,
			Name:            t.Name,
			Description:     t.Description,
			ChartData:       data,
			MeasurementFile: measurementFile,
		},
	}
}

func notFound(reason string) *fernerrors.NotFoundError {
	var msg string
	switch reason {
	case fernerrors.ReasonTemplateInactive:
		msg = "The size chart assigned to this product is inactive"
	case fernerrors.ReasonTemplateMissing:
		msg = "The size chart assigned to this product no longer exists"
	default:
		msg = "No size chart is assigned to this product"
	}
	return fernerrors.NewNotFoundError(reason, msg)
}

// ParseRequestedKind parses the optional templateType parameter. An empty
// value means any kind.
func ParseRequestedKind(s string) (*chart.Kind, error) {
	if s == "" {
		return nil, nil
	}
	kind, err := chart.ParseKind(s)
	if err != nil {
		return nil, fernerrors.NewValidationErrorf("templateType must be table or custom, got %s", strconv.Quote(s)).AddField("templateType")
	}
	return &kind, nil
}
