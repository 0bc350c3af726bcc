package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/forecast"
)

var (
	errNoRequestID = errors.New("request_id is required")
	errNoLocations = errors.New("at least one location is required")
)

// ForecastService is the subset of forecast.Service the pipeline drives.
type ForecastService interface {
	GetBatchForecast(ctx context.Context, locs []domain.Location, hours int) (map[string]forecast.LocationResult, error)
	GetSeveritySummary(ctx context.Context, locs []domain.Location, offset int) (*forecast.SeveritySummary, error)
}

// ForecastTransformer implements Transformer by answering a forecast
// request message with a forecast response message.
type ForecastTransformer struct {
	service ForecastService
	logger  *slog.Logger
}

// NewTransformer creates a ForecastTransformer.
func NewTransformer(service ForecastService, logger *slog.Logger) *ForecastTransformer {
	return &ForecastTransformer{
		service: service,
		logger:  logger,
	}
}

// Transform returns an error only for messages that cannot be answered at
// all: undecodable bodies and requests without an id. Every other failure
// is reported to the requester inside the response.
func (t *ForecastTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	var req ForecastRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("decode forecast request: %w", err)
	}
	if req.RequestID == "" {
		return domain.OutputEvent{}, errNoRequestID
	}
	if req.Kind == "" {
		req.Kind = KindForecast
	}

	resp := t.answer(ctx, req)
	resp.GeneratedAt = domain.Now().UTC()
	return serializeResponse(resp)
}

func (t *ForecastTransformer) answer(ctx context.Context, req ForecastRequest) ForecastResponse {
	resp := ForecastResponse{RequestID: req.RequestID, Kind: req.Kind}
	if len(req.Locations) == 0 {
		resp.Error = &forecast.ErrorBody{Code: forecast.CodeInvalidLocation, Message: errNoLocations.Error()}
		return resp
	}

	switch req.Kind {
	case KindForecast:
		results, err := t.service.GetBatchForecast(ctx, req.Locations, req.Hours)
		if err != nil {
			resp.Error = forecast.NewErrorBody(err)
			return resp
		}
		resp.Results = toLocationResponses(forecast.InRequestOrder(req.Locations, results))
	case KindSummary:
		summary, err := t.service.GetSeveritySummary(ctx, req.Locations, req.Offset)
		if err != nil {
			resp.Error = forecast.NewErrorBody(err)
			return resp
		}
		resp.Summary = summary
	default:
		resp.Error = &forecast.ErrorBody{Code: "invalid_kind", Message: fmt.Sprintf("unknown request kind %q", req.Kind)}
	}
	return resp
}

func toLocationResponses(results []forecast.LocationResult) []LocationResponse {
	out := make([]LocationResponse, len(results))
	for i, r := range results {
		out[i] = LocationResponse{
			Key:      r.Location.Key(),
			Forecast: r.Forecast,
			Error:    forecast.NewErrorBody(r.Err),
		}
	}
	return out
}

// serializeResponse marshals a response into an output event keyed by the
// request id so a requester can match it.
func serializeResponse(resp ForecastResponse) (domain.OutputEvent, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize forecast response: %w", err)
	}
	status := "ok"
	if resp.Error != nil {
		status = resp.Error.Code
	}
	return domain.OutputEvent{
		Key:   []byte(resp.RequestID),
		Value: data,
		Headers: map[string]string{
			"request_kind": resp.Kind,
			"status":       status,
			"generated_at": resp.GeneratedAt.Format(time.RFC3339),
		},
	}, nil
}
