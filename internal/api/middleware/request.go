package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"harvest-engine/internal/logging"
	"harvest-engine/pkg/utils"
)

// RequestIDKey is the echo.Context key holding the request id
const RequestIDKey = "request_id"

// RequestID reuses an inbound X-Request-ID or generates one, and echoes it back
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > 128 {
				requestID = utils.GenerateRequestID()
			}
			c.Set(RequestIDKey, requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request through the application logger
func RequestLogger() echo.MiddlewareFunc {
	logger := logging.Component("http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: false,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health/live"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]interface{}{
				"request_id": c.Get(RequestIDKey),
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
			}
			switch {
			case v.Error != nil:
				fields["error"] = v.Error.Error()
				logger.Error("Request failed", fields)
			case v.Status >= 500:
				logger.Warn("Request completed with server error", fields)
			case v.Latency > 10*time.Second:
				logger.Info("Slow request completed", fields)
			default:
				logger.Debug("Request completed", fields)
			}
			return nil
		},
	})
}

// BodyLimit rejects request bodies over limit, e.g. "1M"
func BodyLimit(limit string) echo.MiddlewareFunc {
	if limit == "" {
		limit = "1M"
	}
	return middleware.BodyLimit(limit)
}
