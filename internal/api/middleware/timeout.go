package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SelectiveTimeoutConfig bounds read endpoints with short and scrape endpoints with long
func SelectiveTimeoutConfig(short, long time.Duration) echo.MiddlewareFunc {
	shortMW := TimeoutConfig(short)
	longMW := TimeoutConfig(long)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		shortNext := shortMW(next)
		longNext := longMW(next)
		return func(c echo.Context) error {
			if isScrapeRoute(c.Path()) {
				return longNext(c)
			}
			return shortNext(c)
		}
	}
}

// TimeoutConfig returns timeout middleware configuration
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      timeout,
		ErrorMessage: `{"error":"timeout","message":"request timed out"}`,
	})
}

func isScrapeRoute(path string) bool {
	return strings.HasPrefix(path, "/api/v1/scrape") && !strings.HasSuffix(path, "/async")
}
