package forecast

import (
	"errors"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
)

// Error codes reported to API and message consumers.
const (
	CodeInvalidLocation       = "invalid_location"
	CodeInvalidHorizon        = "invalid_horizon"
	CodeProviderUnavailable   = "provider_unavailable"
	CodeProviderDataMalformed = "provider_data_malformed"
	CodeInternal              = "internal"
)

// ErrorBody is the wire form of a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode classifies err. Request errors take precedence over provider
// errors; a joined primary and fallback failure reports unavailability
// first since retrying later may succeed.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidLocation):
		return CodeInvalidLocation
	case errors.Is(err, domain.ErrInvalidHorizon):
		return CodeInvalidHorizon
	case errors.Is(err, domain.ErrProviderUnavailable):
		return CodeProviderUnavailable
	case errors.Is(err, domain.ErrProviderDataMalformed):
		return CodeProviderDataMalformed
	default:
		return CodeInternal
	}
}

// NewErrorBody returns nil for a nil error.
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	return &ErrorBody{Code: ErrorCode(err), Message: err.Error()}
}
