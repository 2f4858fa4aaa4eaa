package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"medical-book/internal/auth"
	"medical-book/internal/storage"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func renderError(err error) (int, errorResponse) {
	var (
		verr *storage.ValidationError
		herr *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Message: verr.Error(), Field: verr.Field}
	case errors.Is(err, storage.ErrDuplicateEmail):
		return http.StatusConflict, errorResponse{Message: storage.ErrDuplicateEmail.Error(), Field: "email"}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: "not found"}
	case errors.Is(err, storage.ErrInvalidPassword):
		return http.StatusBadRequest, errorResponse{Message: storage.ErrInvalidPassword.Error(), Field: "current_password"}
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, errorResponse{Message: auth.ErrAuthenticationFailed.Error()}
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{Message: auth.ErrInvalidToken.Error()}
	case errors.As(err, &herr):
		return herr.Code, errorResponse{Message: fmt.Sprint(herr.Message)}
	}
	return http.StatusInternalServerError, errorResponse{Message: "internal server error"}
}

// ErrorHandler renders every error in the response envelope. Unexpected
// errors are logged and never shown to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", requestID(c)).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
