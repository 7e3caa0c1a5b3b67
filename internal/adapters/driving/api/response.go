package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the JSON envelope returned by every route.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

// Success sends a successful response.
func Success(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends an error response. data may be nil.
func Error(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, Response{
		Success: false,
		Error:   message,
		Data:    data,
	})
}

// OK sends a 200 OK response.
func OK(c echo.Context, message string, data any) error {
	return Success(c, http.StatusOK, message, data)
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c echo.Context, message string) error {
	return Error(c, http.StatusBadRequest, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c echo.Context, message string) error {
	return Error(c, http.StatusNotFound, message, nil)
}

// Unavailable sends a 503 Service Unavailable response carrying an empty
// data set so clients can render without special-casing the outage.
func Unavailable(c echo.Context, message string, empty any) error {
	return Error(c, http.StatusServiceUnavailable, message, empty)
}
