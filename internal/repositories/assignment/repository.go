package assignment

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// AssignmentRepository defines the interface for assignment data access.
// shops lists every stored form of one shop (see shop.Variants).
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error)
	ListByProduct(ctx context.Context, shops []string, productID string) ([]*models.Assignment, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteByTemplate(ctx context.Context, shops []string, templateID string) (int64, error)
	LockProduct(ctx context.Context, shop, productID string) error
}

// Repository implements AssignmentRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new assignment repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an assignment. An assignment of the same template to the
// same product is kept and only its product title refreshed; the stored row
// is returned either way.
func (r *Repository) Create(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.Create")
	defer span.End()

	if assignment.ID == "" {
		assignment.ID = uuid.New().String()
	}
	assignment.CreatedAt = Now()

	ib := assignmentStruct.InsertInto(assignmentsTable, FromAssignment(assignment))
	ub := ib.OnConflict("shop", "product_id", "template_id")
	ub.Set(
		ub.Assign("product_title", database.Excluded("product_title")),
	)
	ib.SQL("RETURNING id, created_at")
	query, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          assignment.ID,
		"shop":        assignment.Shop,
		"product_id":  assignment.ProductID,
		"template_id": assignment.TemplateID,
	}).Debug("Creating assignment")

	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.Executor(ctx).GetContext(ctx, &stored, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create assignment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create assignment")
	}

	assignment.ID = stored.ID
	assignment.CreatedAt = stored.CreatedAt
	return assignment, nil
}

// ListByProduct retrieves a product's assignments in the order they were created.
func (r *Repository) ListByProduct(ctx context.Context, shops []string, productID string) ([]*models.Assignment, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.ListByProduct")
	defer span.End()

	if ectolinq.IsEmpty(shops) || productID == "" {
		return []*models.Assignment{}, nil
	}

	sb := assignmentStruct.SelectFrom(assignmentsTable)
	sb.Where(
		sb.In("shop", toArgs(shops)...),
		sb.Equal("product_id", productID),
	)
	sb.OrderBy("created_at", "id").Asc()
	query, args := sb.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"shops":      shops,
		"product_id": productID,
	}).Debug("Listing assignments for product")

	var rows []AssignmentRow
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list assignments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list assignments")
	}

	return ToAssignments(rows), nil
}

// DeleteByIDs deletes assignments by id and returns how many were removed.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.DeleteByIDs")
	defer span.End()

	if ectolinq.IsEmpty(ids) {
		return 0, nil
	}

	db := assignmentStruct.DeleteFrom(assignmentsTable)
	db.Where(db.In("id", toArgs(ids)...))
	query, args := db.Build()

	r.logger.WithContext(ctx).WithField("ids", ids).Debug("Deleting assignments")

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete assignments")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete assignments")
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// DeleteByTemplate deletes every assignment pointing at a template.
func (r *Repository) DeleteByTemplate(ctx context.Context, shops []string, templateID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.DeleteByTemplate")
	defer span.End()

	if ectolinq.IsEmpty(shops) {
		return 0, nil
	}

	db := assignmentStruct.DeleteFrom(assignmentsTable)
	db.Where(
		db.In("shop", toArgs(shops)...),
		db.Equal("template_id", templateID),
	)
	query, args := db.Build()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"shops":       shops,
		"template_id": templateID,
	}).Debug("Deleting assignments for template")

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete template assignments")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete template assignments")
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}

// LockProduct takes a transaction-scoped advisory lock on (shop, product).
// It must run inside a transaction; the lock is released on commit or rollback.
func (r *Repository) LockProduct(ctx context.Context, shop, productID string) error {
	ctx, span := tracing.StartSpan(ctx, "AssignmentRepository.LockProduct")
	defer span.End()

	if database.TxFromContext(ctx) == nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "product lock requires a transaction")
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", shop+"/"+productID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to lock product assignments")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock product assignments")
	}

	return nil
}

func toArgs(values []string) []any {
	return ectolinq.Map(values, func(v string) any { return v })
}
