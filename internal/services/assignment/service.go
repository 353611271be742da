// Package assignment links products to templates, at most one per chart kind.
package assignment

import (
	"context"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	assignmentrepo "github.com/Ramsey-B/fern/internal/repositories/assignment"
	"github.com/Ramsey-B/fern/internal/repositories/template"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/shop"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Service struct {
	logger      ectologger.Logger
	tx          database.Transactor
	templates   template.TemplateRepository
	assignments assignmentrepo.AssignmentRepository
	cache       cache.ChartCache
	emitter     *events.Emitter
}

func NewService(
	logger ectologger.Logger,
	tx database.Transactor,
	templates template.TemplateRepository,
	assignments assignmentrepo.AssignmentRepository,
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

// Assign points a product at a template, replacing any other assignment of
// the same chart kind. Assigning the template already in place is a no-op.
// Writers for one product are serialized by a product lock held for the
// whole transaction.
func (s *Service) Assign(ctx context.Context, shopName, productID, templateID, productTitle string) (*models.Assignment, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Assign")
	defer span.End()

	productID = shop.NormalizeProductID(productID)
	if productID == "" {
		return nil, fernerrors.NewValidationError("product_id is required").AddField("product_id")
	}
	if strings.TrimSpace(templateID) == "" {
		return nil, fernerrors.NewValidationError("template_id is required").AddField("template_id")
	}

	t, err := s.templates.GetByID(ctx, shop.Variants(shopName), templateID)
	if err != nil {
		return nil, err
	}
	if t.IsSavedProfile() {
		return nil, fernerrors.NewValidationError("saved measurement profiles cannot be assigned to products").AddField("template_id")
	}
	kind := t.Kind()

	var (
		result  *models.Assignment
		removed []*models.Assignment
		created bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.assignments.LockProduct(ctx, shop.Handle(shopName), productID); err != nil {
			return err
		}

		current, err := s.withTemplates(ctx, shopName, productID)
		if err != nil {
			return err
		}

		for _, a := range current {
			if a.Template == nil || a.Template.Kind() != kind {
				continue
			}
			if a.TemplateID == templateID && result == nil {
				existing := a.Assignment
				result = &existing
				continue
			}
			stale := a.Assignment
			removed = append(removed, &stale)
		}

		if _, err := s.assignments.DeleteByIDs(ctx, ectolinq.Map(removed, func(a *models.Assignment) string {
			return a.ID
		})); err != nil {
			return err
		}

		if result != nil {
			return nil
		}

		result, err = s.assignments.Create(ctx, &models.Assignment{
			Shop:         shopName,
			ProductID:    productID,
			TemplateID:   templateID,
			ProductTitle: strings.TrimSpace(productTitle),
		})
		created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"shop":        shopName,
		"product_id":  productID,
		"template_id": templateID,
		"kind":        kind,
		"replaced":    len(removed),
		"created":     created,
	}).Info("Assigned template to product")

	for _, a := range removed {
		s.changed(ctx, events.AssignmentDeleted, a, kind)
	}
	if created {
		s.changed(ctx, events.AssignmentCreated, result, kind)
	}
	if len(removed) > 0 || created {
		s.cache.Invalidate(ctx, shopName)
	}

	return result, nil
}

// Unassign removes the product's assignment of one chart kind and reports how many were removed.
func (s *Service) Unassign(ctx context.Context, shopName, productID string, kind chart.Kind) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Unassign")
	defer span.End()

	productID = shop.NormalizeProductID(productID)
	if productID == "" {
		return 0, fernerrors.NewValidationError("product_id is required").AddField("product_id")
	}

	var removed []*models.Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.assignments.LockProduct(ctx, shop.Handle(shopName), productID); err != nil {
			return err
		}

		current, err := s.withTemplates(ctx, shopName, productID)
		if err != nil {
			return err
		}

		for _, a := range current {
			if a.Template != nil && a.Template.Kind() == kind {
				stale := a.Assignment
				removed = append(removed, &stale)
			}
		}

		_, err = s.assignments.DeleteByIDs(ctx, ectolinq.Map(removed, func(a *models.Assignment) string {
			return a.ID
		}))
		return err
	})
	if err != nil {
		return 0, err
	}

	for _, a := range removed {
		s.changed(ctx, events.AssignmentDeleted, a, kind)
	}
	if len(removed) > 0 {
		s.cache.Invalidate(ctx, shopName)
	}

	return len(removed), nil
}

// ListForProduct returns the product's assignments in stored order, each with its template.
func (s *Service) ListForProduct(ctx context.Context, shopName, productID string) ([]*models.AssignmentWithTemplate, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.ListForProduct")
	defer span.End()

	productID = shop.NormalizeProductID(productID)
	if productID == "" {
		return nil, fernerrors.NewValidationError("product_id is required").AddField("product_id")
	}

	return s.withTemplates(ctx, shopName, productID)
}

func (s *Service) withTemplates(ctx context.Context, shopName, productID string) ([]*models.AssignmentWithTemplate, error) {
	assignments, err := s.assignments.ListByProduct(ctx, shop.Variants(shopName), productID)
	if err != nil {
		return nil, err
	}
	if ectolinq.IsEmpty(assignments) {
		return []*models.AssignmentWithTemplate{}, nil
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
		if shop.Handle(t.Shop) == handle {
			byID[t.ID] = t
		}
	}

	return ectolinq.Map(assignments, func(a *models.Assignment) *models.AssignmentWithTemplate {
		return &models.AssignmentWithTemplate{Assignment: *a, Template: byID[a.TemplateID]}
	}), nil
}

func (s *Service) changed(ctx context.Context, eventType events.Type, a *models.Assignment, kind chart.Kind) {
	operation := "created"
	if eventType == events.AssignmentDeleted {
		operation = "deleted"
	}
	metrics.AssignmentChangesTotal.WithLabelValues(operation, kind.String()).Inc()
	s.emitter.Emit(ctx, eventType, a.Shop, map[string]any{
		"id":          a.ID,
		"product_id":  a.ProductID,
		"template_id": a.TemplateID,
		"kind":        kind,
	})
}
