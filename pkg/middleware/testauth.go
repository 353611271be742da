package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

// TestAuth middleware reads the shop and user from headers when auth is disabled.
// Headers:
//   - X-Shop-Domain: The shop the request acts on
//   - X-User-ID: The user ID
//
// WARNING: Only use this when AUTH_ENABLED=false. Do not enable in production.
func TestAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			shop := c.Request().Header.Get(HeaderShopDomain)
			if shop == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderShopDomain+" header")
			}
			ctx = context.SetShop(ctx, shop)

			if userID := c.Request().Header.Get(HeaderUserID); userID != "" {
				ctx = context.SetUserID(ctx, userID)
			}

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
