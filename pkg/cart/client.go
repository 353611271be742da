package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultAddPath is the storefront endpoint that adds a line item.
const DefaultAddPath = "/cart/add.js"

// ErrVariantNotFound is returned when no product variant is available to add.
var ErrVariantNotFound = errors.New("no product variant is selected")

// LineItem is one cart addition.
type LineItem struct {
	VariantID  string            `json:"variantId"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties"`
}

// BuildLineItem builds the line item for a completed measurement form.
func BuildLineItem(variantID string, measurements map[string]*float64, names NameLookup, fitPreference, stitchingNotes string) (LineItem, error) {
	if strings.TrimSpace(variantID) == "" {
		return LineItem{}, ErrVariantNotFound
	}

	props := Properties(measurements, names)
	if fit := strings.TrimSpace(fitPreference); fit != "" {
		props[FitPreferenceProperty] = fit
	}
	if notes := strings.TrimSpace(stitchingNotes); notes != "" {
		props[StitchingNotesProperty] = notes
	}
	props[CustomOrderProperty] = "true"

	return LineItem{
		VariantID:  strings.TrimSpace(variantID),
		Quantity:   1,
		Properties: props,
	}, nil
}

// Doer is the part of *http.Client the cart client uses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// BaseURL is the storefront origin, e.g. https://acme.myshopify.com
	BaseURL string
	// AddPath defaults to DefaultAddPath
	AddPath string
	Timeout time.Duration
}

// Client posts line items to a storefront cart.
type Client struct {
	http    Doer
	baseURL string
	addPath string
	logger  ectologger.Logger
}

func NewClient(cfg Config, httpClient Doer, logger ectologger.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	addPath := cfg.AddPath
	if addPath == "" {
		addPath = DefaultAddPath
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		addPath: addPath,
		logger:  logger,
	}
}

// Add posts the line item. Non-2xx responses and transport failures are *errors.UpstreamError.
func (c *Client) Add(ctx context.Context, item LineItem) error {
	ctx, span := tracing.StartSpan(ctx, "cart.Add")
	defer span.End()

	if strings.TrimSpace(item.VariantID) == "" {
		return ErrVariantNotFound
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	url := c.baseURL + c.addPath
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode line item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &fernerrors.UpstreamError{URL: url, Message: "could not build cart request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		tracing.Fail(span, err)
		c.logger.WithContext(ctx).WithError(err).WithField("url", url).Warn("Cart request failed")
		return &fernerrors.UpstreamError{URL: url, Message: "could not reach the cart", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fernerrors.UpstreamError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    cartErrorMessage(resp.Body),
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"variant_id": item.VariantID,
		"properties": len(item.Properties),
	}).Debug("Added custom order to cart")
	return nil
}

// cartErrorMessage reads the storefront's error description, if any.
func cartErrorMessage(body io.Reader) string {
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	b, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	if err := json.Unmarshal(b, &payload); err == nil {
		if payload.Description != "" {
			return payload.Description
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return "the cart rejected the item"
}
