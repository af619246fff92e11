package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"

	"github.com/labstack/echo/v4"
)

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, dto.Response{Status: "success", Data: data})
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every failure as a Response envelope with no data.
// Store failures are logged and reported without their cause.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var httpErr *echo.HTTPError
		if appErr, ok := apperror.As(err); ok {
			status = statusFor(appErr.Kind)
			if appErr.Kind != apperror.KindInfrastructure {
				message = appErr.Message
			}
		} else if errors.As(err, &httpErr) {
			status = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, dto.Response{Status: "error", Message: message})
		}
		if writeErr != nil {
			log.ErrorContext(c.Request().Context(), "write error response", "error", writeErr)
		}
	}
}

func uintParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return uint(v), nil
}

func intQuery(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return v, nil
}
