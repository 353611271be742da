// Package ratelimit throttles the unauthenticated storefront write endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/shop"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const keyPrefix = "fern:ratelimit:"

// Counter counts hits in a fixed window. *redis.Client implements it.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Remaining int64
	RetryIn   time.Duration
}

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	logger  ectologger.Logger
}

func NewLimiter(counter Counter, limit int, window time.Duration, logger ectologger.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		logger:  logger,
	}
}

// Allow counts a request for key. Counter failures let the request through.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	ctx, span := tracing.StartSpan(ctx, "ratelimit.Allow")
	defer span.End()

	if l.limit <= 0 {
		return Result{Allowed: true, Remaining: math.MaxInt64}
	}

	count, left, err := l.counter.Hit(ctx, keyPrefix+key, l.window)
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("Rate limit check failed")
		return Result{Allowed: true}
	}

	if count > l.limit {
		return Result{Allowed: false, RetryIn: left}
	}
	return Result{Allowed: true, Remaining: l.limit - count}
}

// Writes limits POST, PUT and DELETE requests per shop and client address.
// Rejected requests get a 429 in the public {success, error} envelope.
func Writes(limiter *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			key := fmt.Sprintf("%s:%s", shop.Handle(c.QueryParam("shop")), c.RealIP())
			result := limiter.Allow(c.Request().Context(), key)
			if result.Allowed {
				return next(c)
			}

			limiter.logger.WithContext(c.Request().Context()).WithFields(map[string]any{
				"key":      key,
				"retry_in": result.RetryIn,
			}).Warn("Storefront write rate limited")

			seconds := int(math.Ceil(result.RetryIn.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "Too many requests, please try again shortly",
			})
		}
	}
}
