package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EnvelopeResponse writes {success,message,data} with the given HTTP status.
func EnvelopeResponse(c echo.Context, status int, success bool, message string, data interface{}) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return c.JSON(status, APIResponse{Success: success, Message: message, Data: data})
}

// SuccessResponse writes a 200 success envelope.
func SuccessResponse(c echo.Context, message string, data interface{}) error {
	return EnvelopeResponse(c, http.StatusOK, true, message, data)
}

// BadRequestResponse writes validation errors.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return EnvelopeResponse(c, http.StatusBadRequest, false, "", data)
}

func InternalServerErrorResponse(c echo.Context) error {
	return EnvelopeResponse(c, http.StatusInternalServerError, false, "Something went wrong", nil)
}

// AppErrorResponse writes an AppError with its status; anything else is a 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return EnvelopeResponse(c, appErr.Status, false, appErr.Message, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
