package pipeline

import (
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/forecast"
)

// Request kinds accepted on the request topic.
const (
	KindForecast = "forecast"
	KindSummary  = "summary"
)

// ForecastRequest is the JSON body of a request-topic message.
type ForecastRequest struct {
	RequestID string            `json:"request_id"`
	Kind      string            `json:"kind"`
	Locations []domain.Location `json:"locations"`
	// Hours is the forecast horizon for KindForecast.
	Hours int `json:"hours"`
	// Offset is the evaluated hour for KindSummary.
	Offset int `json:"offset"`
}

// ForecastResponse is the JSON body of a result-topic message. Exactly one
// of Results, Summary and Error is set.
type ForecastResponse struct {
	RequestID   string                    `json:"request_id"`
	Kind        string                    `json:"kind"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Results     []LocationResponse        `json:"results,omitempty"`
	Summary     *forecast.SeveritySummary `json:"summary,omitempty"`
	Error       *forecast.ErrorBody       `json:"error,omitempty"`
}

// LocationResponse is one location's outcome in a forecast response.
type LocationResponse struct {
	Key      string              `json:"key"`
	Forecast *forecast.Forecast  `json:"forecast"`
	Error    *forecast.ErrorBody `json:"error,omitempty"`
}
