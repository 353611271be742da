package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/shop"
)

const (
	// HeaderShopDomain is the header key for the shop a request acts on
	HeaderShopDomain = "X-Shop-Domain"
	// HeaderUserID is the header key for user ID
	HeaderUserID = "X-User-ID"
)

// Context stores the request id and route on the request context. Storefront
// requests also carry their shop and product in the query string; those are
// recorded so every log line of the request names them. Authentication
// middleware overrides the shop for admin routes.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.SetRequestID(req.Context(), requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())

			query := req.URL.Query()
			if s := shop.Handle(query.Get("shop")); s != "" {
				ctx = context.SetShop(ctx, s)
			}
			if id := shop.NormalizeProductID(query.Get("productId")); id != "" {
				ctx = context.SetProductID(ctx, id)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
