// Package assignment serves the merchant admin API for product assignments.
package assignment

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/chart"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Assignments is the assignment service
type Assignments interface {
	Assign(ctx context.Context, shopName, productID, templateID, productTitle string) (*models.Assignment, error)
	Unassign(ctx context.Context, shopName, productID string, kind chart.Kind) (int, error)
	ListForProduct(ctx context.Context, shopName, productID string) ([]*models.AssignmentWithTemplate, error)
}

type AssignRequest struct {
	TemplateID   string `json:"template_id" validate:"required"`
	ProductTitle string `json:"product_title" validate:"max=255"`
}

type AssignmentListResponse struct {
	Items []*models.AssignmentWithTemplate `json:"items"`
}

type UnassignResponse struct {
	Deleted int `json:"deleted"`
}

type Handler struct {
	assignments Assignments
}

func NewHandler(assignments Assignments) *Handler {
	return &Handler{assignments: assignments}
}

// Register registers assignment routes under /products/:product_id/assignments
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Assign)
	g.DELETE("/:kind", h.Unassign)
}

func shopFrom(ctx context.Context) (string, error) {
	shopName := appctx.GetShop(ctx)
	if shopName == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "shop is required")
	}
	return shopName, nil
}

// List returns the product's assignments with their templates
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "assignment_handler.List")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	items, err := h.assignments.ListForProduct(ctx, shopName, c.Param("product_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AssignmentListResponse{Items: items})
}

// Assign assigns a template to the product, replacing the one of the same kind
func (h *Handler) Assign(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "assignment_handler.Assign")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[AssignRequest](c)
	if err != nil {
		return err
	}

	result, err := h.assignments.Assign(ctx, shopName, c.Param("product_id"), req.TemplateID, req.ProductTitle)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

// Unassign removes the product's assignment of one kind
func (h *Handler) Unassign(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "assignment_handler.Unassign")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	kind, err := chart.ParseKind(c.Param("kind"))
	if err != nil {
		return fernerrors.NewValidationError(err.Error()).AddField("kind")
	}

	deleted, err := h.assignments.Unassign(ctx, shopName, c.Param("product_id"), kind)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UnassignResponse{Deleted: deleted})
}
