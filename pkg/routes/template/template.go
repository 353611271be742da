// Package template serves the merchant admin API for templates.
package template

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	templatesvc "github.com/Ramsey-B/fern/internal/services/template"
	"github.com/Ramsey-B/fern/pkg/chart"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Templates is the merchant template service
type Templates interface {
	Create(ctx context.Context, shopName string, input templatesvc.Input) (*models.Template, error)
	Get(ctx context.Context, shopName, id string) (*models.Template, error)
	List(ctx context.Context, shopName string, kind *chart.Kind) ([]*models.Template, error)
	Update(ctx context.Context, shopName, id string, input templatesvc.Input) (*models.Template, error)
	Delete(ctx context.Context, shopName, id string) error
	Summary(ctx context.Context, shopName string) (*models.TemplateSummary, error)
}

type CreateTemplateRequest struct {
	Name            string         `json:"name" validate:"required,max=255"`
	Description     string         `json:"description" validate:"max=2000"`
	Active          *bool          `json:"active"`
	ChartData       map[string]any `json:"chart_data" validate:"required"`
	MeasurementFile string         `json:"measurement_file" validate:"max=2048"`
}

type UpdateTemplateRequest struct {
	Name            *string        `json:"name" validate:"omitempty,max=255"`
	Description     *string        `json:"description" validate:"omitempty,max=2000"`
	Active          *bool          `json:"active"`
	ChartData       map[string]any `json:"chart_data"`
	MeasurementFile *string        `json:"measurement_file" validate:"omitempty,max=2048"`
}

type TemplateListResponse struct {
	Items      []*models.Template `json:"items"`
	TotalCount int                `json:"total_count"`
}

type Handler struct {
	templates Templates
}

func NewHandler(templates Templates) *Handler {
	return &Handler{templates: templates}
}

// Register registers template routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/summary", h.Summary)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func shopFrom(ctx context.Context) (string, error) {
	shopName := appctx.GetShop(ctx)
	if shopName == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "shop is required")
	}
	return shopName, nil
}

// List returns the shop's templates, optionally filtered by ?kind=table|custom
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.List")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	var kind *chart.Kind
	if raw := strings.TrimSpace(c.QueryParam("kind")); raw != "" {
		k, err := chart.ParseKind(raw)
		if err != nil {
			return fernerrors.NewValidationError(err.Error()).AddField("kind")
		}
		kind = &k
	}

	items, err := h.templates.List(ctx, shopName, kind)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*models.Template{}
	}

	return c.JSON(http.StatusOK, TemplateListResponse{
		Items:      items,
		TotalCount: len(items),
	})
}

// Create creates a new template
func (h *Handler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.Create")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CreateTemplateRequest](c)
	if err != nil {
		return err
	}

	created, err := h.templates.Create(ctx, shopName, templatesvc.Input{
		Name:            &req.Name,
		Description:     &req.Description,
		Active:          req.Active,
		ChartData:       req.ChartData,
		MeasurementFile: &req.MeasurementFile,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// Get returns a single template by ID
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.Get")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	result, err := h.templates.Get(ctx, shopName, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Update updates a template. Omitted fields are left unchanged.
func (h *Handler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.Update")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[UpdateTemplateRequest](c)
	if err != nil {
		return err
	}

	updated, err := h.templates.Update(ctx, shopName, c.Param("id"), templatesvc.Input{
		Name:            req.Name,
		Description:     req.Description,
		Active:          req.Active,
		ChartData:       req.ChartData,
		MeasurementFile: req.MeasurementFile,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, updated)
}

// Delete deletes a template and its assignments
func (h *Handler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.Delete")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	if err := h.templates.Delete(ctx, shopName, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Summary counts the shop's templates per kind
func (h *Handler) Summary(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "template_handler.Summary")
	defer span.End()

	shopName, err := shopFrom(ctx)
	if err != nil {
		return err
	}

	summary, err := h.templates.Summary(ctx, shopName)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}
