package template

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const uniqueViolation = "23505"

// TemplateRepository defines the interface for template data access.
// shops lists every stored form of one shop (see shop.Variants).
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) (*models.Template, error)
	Update(ctx context.Context, template *models.Template) (*models.Template, error)
	GetByID(ctx context.Context, shops []string, id string) (*models.Template, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Template, error)
	List(ctx context.Context, shops []string) ([]*models.Template, error)
	ExistsByName(ctx context.Context, shops []string, name, excludeID string) (bool, error)
	Delete(ctx context.Context, shops []string, id string) error
}

// Repository implements TemplateRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new template repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a template. A (shop, name) collision is a duplicate-name validation error.
func (r *Repository) Create(ctx context.Context, template *models.Template) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.Create")
	defer span.End()

	if template.ID == "" {
		template.ID = uuid.New().String()
	}
	now := Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	row, err := FromTemplate(template)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to encode chart data")
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "chart data could not be encoded")
	}

	query, args := templateStruct.InsertInto(templatesTable, row).Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":   template.ID,
		"shop": template.Shop,
		"name": template.Name,
		"kind": template.Kind(),
	}).Debug("Creating template")

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, fernerrors.DuplicateNameError(template.Name)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create template")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create template")
	}

	return template, nil
}

// Update replaces a template's mutable fields.
func (r *Repository) Update(ctx context.Context, template *models.Template) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.Update")
	defer span.End()

	template.UpdatedAt = Now()

	row, err := FromTemplate(template)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to encode chart data")
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "chart data could not be encoded")
	}

	ub := templateStruct.WithoutTag(immutableTag).Update(templatesTable, row)
	ub.Where(
		ub.Equal("id", template.ID),
		ub.Equal("shop", template.Shop),
	)
	query, args := ub.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":   template.ID,
		"shop": template.Shop,
	}).Debug("Updating template")

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fernerrors.DuplicateNameError(template.Name)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update template")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update template")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
	}

	return template, nil
}

// GetByID retrieves a template owned by the shop.
func (r *Repository) GetByID(ctx context.Context, shops []string, id string) (*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.GetByID")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
	}

	sb := templateStruct.SelectFrom(templatesTable)
	sb.Where(
		sb.Equal("id", id),
		sb.In("shop", toArgs(shops)...),
	)
	query, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":    id,
		"shops": shops,
	}).Debug("Getting template by ID")

	var row TemplateRow
	if err := r.db.Executor(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "template not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get template")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get template")
	}

	return r.toTemplate(ctx, &row), nil
}

// GetByIDs retrieves templates by id regardless of shop. Unknown ids are skipped.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.GetByIDs")
	defer span.End()

	valid := ectolinq.Filter(ids, func(id string) bool {
		_, err := uuid.Parse(id)
		return err == nil
	})
	if ectolinq.IsEmpty(valid) {
		return []*models.Template{}, nil
	}

	sb := templateStruct.SelectFrom(templatesTable)
	sb.Where(sb.In("id", toArgs(valid)...))
	query, args := sb.Build()

	var rows []TemplateRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get templates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get templates")
	}

	return r.toTemplates(ctx, rows), nil
}

// List retrieves every template of a shop, newest first.
func (r *Repository) List(ctx context.Context, shops []string) ([]*models.Template, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.List")
	defer span.End()

	if ectolinq.IsEmpty(shops) {
		return []*models.Template{}, nil
	}

	sb := templateStruct.SelectFrom(templatesTable)
	sb.Where(sb.In("shop", toArgs(shops)...))
	sb.OrderBy("created_at").Desc()
	query, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"shops": shops,
	}).Debug("Listing templates")

	var rows []TemplateRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list templates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list templates")
	}

	return r.toTemplates(ctx, rows), nil
}

// ExistsByName reports whether the shop already has a template with this exact name.
func (r *Repository) ExistsByName(ctx context.Context, shops []string, name, excludeID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.ExistsByName")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(templatesTable)
	sb.Where(
		sb.In("shop", toArgs(shops)...),
		sb.Equal("name", name),
	)
	if excludeID != "" {
		sb.Where(sb.NotEqual("id", excludeID))
	}
	query, args := sb.Build()

	var count int
	if err := r.db.Executor(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check template name")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check template name")
	}

	return count > 0, nil
}

// Delete deletes a template owned by the shop. A missing template is a 404.
func (r *Repository) Delete(ctx context.Context, shops []string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "TemplateRepository.Delete")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return httperror.NewHTTPError(http.StatusNotFound, "template not found")
	}

	db := templateStruct.DeleteFrom(templatesTable)
	db.Where(
		db.Equal("id", id),
		db.In("shop", toArgs(shops)...),
	)
	query, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":    id,
		"shops": shops,
	}).Debug("Deleting template")

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete template")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete template")
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "template not found")
	}

	return nil
}

func (r *Repository) toTemplate(ctx context.Context, row *TemplateRow) *models.Template {
	template, err := ToTemplate(row)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":   template.ID,
			"shop": template.Shop,
		}).Warn("Template has malformed chart data, using an empty chart")
	}
	return template
}

func (r *Repository) toTemplates(ctx context.Context, rows []TemplateRow) []*models.Template {
	templates := make([]*models.Template, len(rows))
	for i := range rows {
		templates[i] = r.toTemplate(ctx, &rows[i])
	}
	return templates
}

func toArgs(values []string) []any {
	return ectolinq.Map(values, func(v string) any { return v })
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
