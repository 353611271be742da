// Package sizechart serves the public chart lookup used by storefront pages.
package sizechart

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/resolver"
	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/storefront"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Resolver picks the chart a product shows.
type Resolver interface {
	Resolve(ctx context.Context, shopName, productID string, requested *chart.Kind) (*resolver.ResolvedChart, error)
}

type Handler struct {
	resolver    Resolver
	logger      ectologger.Logger
	showDetails bool
}

// NewHandler creates the handler. showDetails exposes internal error text on 500s.
func NewHandler(r Resolver, logger ectologger.Logger, showDetails bool) *Handler {
	return &Handler{
		resolver:    r,
		logger:      logger,
		showDetails: showDetails,
	}
}

// Register registers the size chart routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/public", h.Get)
}

// Get resolves the chart for ?shop=&productId=&templateType=
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "sizechart_handler.Get")
	defer span.End()

	shopName := strings.TrimSpace(c.QueryParam("shop"))
	productID := strings.TrimSpace(c.QueryParam("productId"))
	if shopName == "" || productID == "" {
		return c.JSON(http.StatusBadRequest, storefront.ChartResponse{
			Error: "shop and productId are required",
		})
	}

	kind, err := resolver.ParseRequestedKind(strings.TrimSpace(c.QueryParam("templateType")))
	if err != nil {
		return c.JSON(http.StatusBadRequest, storefront.ChartResponse{Error: err.Error()})
	}

	resolved, err := h.resolver.Resolve(ctx, shopName, productID, kind)
	if err != nil {
		return h.failure(c, err, shopName, productID)
	}

	return c.JSON(http.StatusOK, storefront.ChartResponse{
		HasChart:    true,
		ProductName: resolved.ProductName,
		Template: &storefront.Template{
			ID:              resolved.Template.ID,
			Name:            resolved.Template.Name,
			Description:     resolved.Template.Description,
			ChartData:       resolved.Template.ChartData,
			MeasurementFile: resolved.Template.MeasurementFile,
		},
	})
}

func (h *Handler) failure(c echo.Context, err error, shopName, productID string) error {
	switch {
	case fernerrors.IsValidationError(err):
		return c.JSON(http.StatusBadRequest, storefront.ChartResponse{Error: err.Error()})
	case fernerrors.IsNotFoundError(err):
		return c.JSON(http.StatusNotFound, storefront.ChartResponse{
			Error:  err.Error(),
			Reason: fernerrors.NotFoundReason(err),
		})
	}

	h.logger.WithContext(c.Request().Context()).WithError(err).WithFields(map[string]any{
		"shop":       shopName,
		"product_id": productID,
	}).Error("Failed to resolve size chart")

	resp := storefront.ChartResponse{Error: "Failed to load size chart"}
	if h.showDetails {
		resp.Details = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
