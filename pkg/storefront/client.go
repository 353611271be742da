package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/chart"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	ChartPath    = "/size-chart/public"
	ProfilesPath = "/measurement-template/public"
)

// Doer is the part of *http.Client the storefront client uses.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// BaseURL is where the public endpoints are served, e.g. the shop's app proxy
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	http    Doer
	baseURL string
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
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// ResolveChart fetches the chart assigned to a product. A product without an
// applicable chart is a *errors.NotFoundError carrying the server's reason.
func (c *Client) ResolveChart(ctx context.Context, shop, productID string, kind *chart.Kind) (*ChartResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "storefront.ResolveChart")
	defer span.End()

	query := url.Values{}
	query.Set("shop", shop)
	query.Set("productId", productID)
	if kind != nil {
		query.Set("templateType", kind.String())
	}

	var resp ChartResponse
	target := c.baseURL + ChartPath + "?" + query.Encode()
	status, err := c.do(ctx, http.MethodGet, target, nil, "", &resp)
	if err != nil {
		return nil, c.upstream(err, target, shop, productID, status)
	}

	switch {
	case status == http.StatusNotFound:
		return nil, fernerrors.NewNotFoundError(reasonOr(resp.Reason), resp.Error)
	case status == http.StatusBadRequest:
		return nil, fernerrors.NewValidationError(resp.Error)
	case status < 200 || status > 299:
		return nil, &fernerrors.UpstreamError{URL: target, Shop: shop, ProductID: productID, StatusCode: status, Message: messageOr(resp.Error, resp.Details)}
	case !resp.HasChart || resp.Template == nil:
		return nil, fernerrors.NewNotFoundError(fernerrors.ReasonNoAssignment, "No size chart is assigned to this product")
	}
	return &resp, nil
}

// ListProfiles returns the shop's saved measurement profiles.
func (c *Client) ListProfiles(ctx context.Context, shop string) ([]Template, error) {
	ctx, span := tracing.StartSpan(ctx, "storefront.ListProfiles")
	defer span.End()

	target := c.profilesURL(shop, "")
	var resp ProfilesResponse
	status, err := c.do(ctx, http.MethodGet, target, nil, "", &resp)
	if err := c.check(err, status, resp, target, shop); err != nil {
		return nil, err
	}
	if resp.Templates == nil {
		return []Template{}, nil
	}
	return resp.Templates, nil
}

// SaveProfile stores a profile. A rejected draft, such as a duplicate name, is
// a *errors.ValidationError with the server's message.
func (c *Client) SaveProfile(ctx context.Context, shop string, draft ProfileDraft) (*Template, error) {
	ctx, span := tracing.StartSpan(ctx, "storefront.SaveProfile")
	defer span.End()

	body, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	target := c.profilesURL(shop, "")
	var resp ProfilesResponse
	status, err := c.do(ctx, http.MethodPost, target, body, "application/json", &resp)
	if err := c.check(err, status, resp, target, shop); err != nil {
		return nil, err
	}
	if resp.Template == nil {
		return nil, &fernerrors.UpstreamError{URL: target, Shop: shop, StatusCode: status, Message: "the saved profile was not returned"}
	}
	return resp.Template, nil
}

// DeleteProfile removes a saved profile.
func (c *Client) DeleteProfile(ctx context.Context, shop, id string) error {
	ctx, span := tracing.StartSpan(ctx, "storefront.DeleteProfile")
	defer span.End()

	target := c.profilesURL(shop, id)
	var resp ProfilesResponse
	status, err := c.do(ctx, http.MethodDelete, target, nil, "", &resp)
	return c.check(err, status, resp, target, shop)
}

func (c *Client) profilesURL(shop, id string) string {
	query := url.Values{}
	query.Set("shop", shop)
	if id != "" {
		query.Set("id", id)
	}
	return c.baseURL + ProfilesPath + "?" + query.Encode()
}

func (c *Client) check(err error, status int, resp ProfilesResponse, target, shop string) error {
	if err != nil {
		return c.upstream(err, target, shop, "", status)
	}
	switch {
	case status == http.StatusBadRequest:
		return fernerrors.NewValidationError(messageOr(resp.Error, "the request was rejected"))
	case status == http.StatusNotFound:
		return fernerrors.NewNotFoundError(fernerrors.ReasonNotFound, messageOr(resp.Error, "not found"))
	case status < 200 || status > 299 || !resp.Success:
		return &fernerrors.UpstreamError{URL: target, Shop: shop, StatusCode: status, Message: messageOr(resp.Error, resp.Details)}
	}
	return nil
}

func (c *Client) upstream(err error, target, shop, productID string, status int) error {
	c.logger.WithError(err).WithFields(map[string]any{
		"url":        target,
		"shop":       shop,
		"product_id": productID,
	}).Warn("Storefront request failed")
	return &fernerrors.UpstreamError{URL: target, Shop: shop, ProductID: productID, StatusCode: status, Message: "storefront request failed", Err: err}
}

// do sends a request and decodes a JSON body into out whatever the status.
func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp.StatusCode, fmt.Errorf("response is not valid JSON: %w", err)
		}
		// error pages are often HTML; the status is enough
		return resp.StatusCode, nil
	}
	return resp.StatusCode, nil
}

func reasonOr(reason string) string {
	if reason == "" {
		return fernerrors.ReasonNotFound
	}
	return reason
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return "unexpected response from storefront"
}
