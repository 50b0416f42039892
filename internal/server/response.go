package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
)

// APIError is the JSON body returned for failed requests.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler maps domain errors onto HTTP statuses.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, apiErr := mapError(err)
	if jsonErr := c.JSON(status, apiErr); jsonErr != nil {
		logging.Error("failed to send error response", "error", jsonErr)
	}
}

func mapError(err error) (int, APIError) {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, APIError{Code: http.StatusText(echoErr.Code), Message: msg}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, APIError{
			Code:    "invalid_argument",
			Message: err.Error(),
		}
	case errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized, APIError{
			Code:    "auth_expired",
			Message: "Authorization expired, the athlete must re-authorize",
		}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "The requested resource was not found",
		}
	case errors.Is(err, domain.ErrImportFailed):
		return http.StatusBadGateway, APIError{
			Code:    "import_failed",
			Message: "Importing activities from the provider failed",
		}
	default:
		logging.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "An unexpected error occurred",
		}
	}
}
