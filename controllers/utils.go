package controllers

import (
	"strconv"

	"closetapi/logging"
	"closetapi/models"

	"github.com/labstack/echo/v4"
)

func StrPointer(b string) *string {
	return &b
}

func errorJSON(c echo.Context, status int, code string, message string) error {
	return c.JSON(status, models.ErrorOut{Error: message, Code: code})
}

func currentLogger(c echo.Context) *logging.Logger {
	if logger, ok := c.Get("__logger").(*logging.Logger); ok && logger != nil {
		return logger
	}
	return logging.Nop()
}

// queryLimit reads ?limit=, falling back to def and capping at max.
func queryLimit(c echo.Context, def, max int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
