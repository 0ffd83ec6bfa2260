// Package respond shapes the {success: bool, ...} JSON envelopes used by
// every endpoint.
package respond

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OK writes a 200 with the record under "data".
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// Created writes a 201 with the record under "data".
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// Message writes a success envelope carrying only a message.
func Message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{
		"success": true,
		"message": msg,
	})
}

// Error writes a failure envelope. Extra key/value pairs are merged into the
// body (e.g. the list of missing ids on a bulk add).
func Error(c echo.Context, status int, msg string, extras ...map[string]interface{}) error {
	body := map[string]interface{}{
		"success": false,
		"message": msg,
	}
	for _, extra := range extras {
		for k, v := range extra {
			body[k] = v
		}
	}
	return c.JSON(status, body)
}

// NotFound is shorthand for a 404 failure envelope.
func NotFound(c echo.Context, msg string) error {
	return Error(c, http.StatusNotFound, msg)
}

// BadRequest is shorthand for a 400 failure envelope.
func BadRequest(c echo.Context, msg string) error {
	return Error(c, http.StatusBadRequest, msg)
}
