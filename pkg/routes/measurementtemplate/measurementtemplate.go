// Package measurementtemplate serves the public saved-profile endpoints used by
// the measurement wizard.
package measurementtemplate

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/services/profile"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storefront"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// FormField is the multipart field that carries the profile JSON.
const FormField = "template"

// Profiles stores a shop's saved measurement profiles.
type Profiles interface {
	Create(ctx context.Context, shopName string, draft profile.Draft) (*models.Template, error)
	List(ctx context.Context, shopName string) ([]*models.Template, error)
	Delete(ctx context.Context, shopName, id string) (bool, error)
}

type Handler struct {
	profiles    Profiles
	logger      ectologger.Logger
	showDetails bool
}

func NewHandler(profiles Profiles, logger ectologger.Logger, showDetails bool) *Handler {
	return &Handler{
		profiles:    profiles,
		logger:      logger,
		showDetails: showDetails,
	}
}

// Register registers the saved profile routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/public", h.List)
	g.POST("/public", h.Create)
	g.DELETE("/public", h.Delete)
}

// listResponse always carries the templates key, even when empty.
type listResponse struct {
	Success   bool                  `json:"success"`
	Templates []storefront.Template `json:"templates"`
}

// List returns the shop's saved profiles
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "measurementtemplate_handler.List")
	defer span.End()

	shopName := strings.TrimSpace(c.QueryParam("shop"))
	if shopName == "" {
		return c.JSON(http.StatusBadRequest, storefront.ProfilesResponse{Error: "shop is required"})
	}

	profiles, err := h.profiles.List(ctx, shopName)
	if err != nil {
		return h.failure(c, err, shopName, "Failed to load saved profiles")
	}

	templates := make([]storefront.Template, 0, len(profiles))
	for _, p := range profiles {
		templates = append(templates, toTemplate(p))
	}
	return c.JSON(http.StatusOK, listResponse{
		Success:   true,
		Templates: templates,
	})
}

// Create saves a profile sent either as multipart (field "template") or as a JSON body
func (h *Handler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "measurementtemplate_handler.Create")
	defer span.End()

	shopName := strings.TrimSpace(c.QueryParam("shop"))
	if shopName == "" {
		return c.JSON(http.StatusBadRequest, storefront.ProfilesResponse{Error: "shop is required"})
	}

	draft, err := readDraft(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, storefront.ProfilesResponse{Error: "Invalid template payload"})
	}

	created, err := h.profiles.Create(ctx, shopName, profile.Draft{
		Name:            draft.Name,
		Description:     draft.Description,
		ChartData:       draft.ChartData,
		MeasurementFile: draft.MeasurementFile,
	})
	if err != nil {
		return h.failure(c, err, shopName, "Failed to save profile")
	}

	template := toTemplate(created)
	return c.JSON(http.StatusCreated, storefront.ProfilesResponse{
		Success:  true,
		Template: &template,
	})
}

func readDraft(c echo.Context) (storefront.ProfileDraft, error) {
	var draft storefront.ProfileDraft

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		raw := c.FormValue(FormField)
		if strings.TrimSpace(raw) == "" {
			return draft, fernerrors.NewValidationError("template is required").AddField(FormField)
		}
		err := json.Unmarshal([]byte(raw), &draft)
		return draft, err
	}

	err := json.NewDecoder(c.Request().Body).Decode(&draft)
	return draft, err
}

// Delete removes a saved profile by ?id=
func (h *Handler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "measurementtemplate_handler.Delete")
	defer span.End()

	shopName := strings.TrimSpace(c.QueryParam("shop"))
	id := strings.TrimSpace(c.QueryParam("id"))
	if shopName == "" || id == "" {
		return c.JSON(http.StatusBadRequest, storefront.ProfilesResponse{Error: "shop and id are required"})
	}

	deleted, err := h.profiles.Delete(ctx, shopName, id)
	if err != nil {
		return h.failure(c, err, shopName, "Failed to delete profile")
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, storefront.ProfilesResponse{Error: "Profile not found"})
	}

	return c.JSON(http.StatusOK, storefront.ProfilesResponse{Success: true})
}

func (h *Handler) failure(c echo.Context, err error, shopName, message string) error {
	status := fernerrors.StatusCode(err)
	if status < http.StatusInternalServerError {
		return c.JSON(status, storefront.ProfilesResponse{Error: err.Error()})
	}

	h.logger.WithContext(c.Request().Context()).WithError(err).WithField("shop", shopName).Error(message)

	resp := storefront.ProfilesResponse{Error: message}
	if h.showDetails {
		resp.Details = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, resp)
}

func toTemplate(t *models.Template) storefront.Template {
	createdAt := t.CreatedAt
	return storefront.Template{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		ChartData:       t.ChartData,
		MeasurementFile: t.MeasurementFile,
		CreatedAt:       &createdAt,
	}
}
