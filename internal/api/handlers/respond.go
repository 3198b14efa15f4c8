package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/api/middleware"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

func requestID(c echo.Context) string {
	if id, ok := c.Get(middleware.RequestIDKey).(string); ok && id != "" {
		return id
	}
	id := utils.GenerateRequestID()
	c.Set(middleware.RequestIDKey, id)
	return id
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// errorFrom answers with the status and kind carried by err
func errorFrom(c echo.Context, err error) error {
	return errorJSON(c, utils.HTTPStatus(err), string(utils.KindOf(err)), err.Error())
}
