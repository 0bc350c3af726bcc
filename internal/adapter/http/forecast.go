package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/forecast"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const (
	maxBodyBytes      = 1 << 20
	maxBatchLocations = 100

	codeInvalidRequest = "invalid_request"
)

// ForecastAPI is the forecast service as seen by the HTTP layer.
type ForecastAPI interface {
	GetForecast(ctx context.Context, loc domain.Location, elevation *float64, hours int) (*forecast.Forecast, error)
	GetBatchForecast(ctx context.Context, locs []domain.Location, hours int) (map[string]forecast.LocationResult, error)
	GetSeveritySummary(ctx context.Context, locs []domain.Location, offset int) (*forecast.SeveritySummary, error)
	Table() *domain.ProviderTable
}

// BatchRequest is the body of POST /v1/forecast/batch. Range, when set,
// takes precedence over Hours.
type BatchRequest struct {
	Locations []domain.Location `json:"locations"`
	Hours     *int              `json:"hours"`
	Range     string            `json:"range"`
}

// BatchResponse lists results in request order.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// BatchResult is one location of a batch response.
type BatchResult struct {
	Key      string              `json:"key"`
	Forecast *forecast.Forecast  `json:"forecast"`
	Error    *forecast.ErrorBody `json:"error,omitempty"`
}

// SummaryRequest is the body of POST /v1/severity/summary.
type SummaryRequest struct {
	Locations []domain.Location `json:"locations"`
	Offset    int               `json:"offset"`
}

// ProvidersResponse is the body of GET /v1/providers.
type ProvidersResponse struct {
	Version   string                      `json:"version"`
	Providers []domain.ProviderDescriptor `json:"providers"`
}

type errorResponse struct {
	Error forecast.ErrorBody `json:"error"`
}

// handleForecast serves GET /v1/forecast?lat=&lon=[&elevation=][&hours=|&range=][&region=][&id=].
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := requiredFloat(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, err)
		return
	}
	lon, err := requiredFloat(q.Get("lon"), "lon")
	if err != nil {
		writeError(w, err)
		return
	}
	var elevation *float64
	if v := q.Get("elevation"); v != "" {
		e, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: elevation %q is not a number", domain.ErrInvalidLocation, v))
			return
		}
		elevation = &e
	}
	hours, err := horizon(q.Get("hours"), q.Get("range"))
	if err != nil {
		writeError(w, err)
		return
	}

	loc := domain.Location{ID: q.Get("id"), Lat: lat, Lon: lon, Region: q.Get("region")}
	f, err := s.api.GetForecast(r.Context(), loc, elevation, hours)
	if err != nil {
		s.logger.Warn("forecast request failed", "location", loc.Key(), "error", err)
		writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, f)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := checkLocations(req.Locations); err != nil {
		writeError(w, err)
		return
	}
	hours := domain.Next24Hours.Hours
	if req.Hours != nil {
		hours = *req.Hours
	}
	if req.Range != "" {
		rg, err := domain.ParseRange(req.Range)
		if err != nil {
			writeError(w, err)
			return
		}
		hours = rg.Hours
	}

	results, err := s.api.GetBatchForecast(r.Context(), req.Locations, hours)
	if err != nil {
		writeError(w, err)
		return
	}
	ordered := forecast.InRequestOrder(req.Locations, results)
	resp := BatchResponse{Results: make([]BatchResult, len(ordered))}
	for i, res := range ordered {
		resp.Results[i] = BatchResult{
			Key:      res.Location.Key(),
			Forecast: res.Forecast,
			Error:    forecast.NewErrorBody(res.Err),
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := checkLocations(req.Locations); err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.api.GetSeveritySummary(r.Context(), req.Locations, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	table := s.api.Table()
	sharedobs.WriteJSON(w, http.StatusOK, ProvidersResponse{
		Version:   table.Version(),
		Providers: table.Descriptors(),
	})
}

func requiredFloat(v, name string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidLocation, name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidLocation, name, v)
	}
	return f, nil
}

// horizon reads the forecast length from either query form, defaulting to
// the next 24 hours.
func horizon(hours, rangeParam string) (int, error) {
	switch {
	case rangeParam != "":
		rg, err := domain.ParseRange(rangeParam)
		if err != nil {
			return 0, err
		}
		return rg.Hours, nil
	case hours != "":
		h, err := strconv.Atoi(hours)
		if err != nil {
			return 0, fmt.Errorf("%w: hours %q is not an integer", domain.ErrInvalidHorizon, hours)
		}
		return h, nil
	default:
		return domain.Next24Hours.Hours, nil
	}
}

func checkLocations(locs []domain.Location) error {
	switch {
	case len(locs) == 0:
		return fmt.Errorf("%w: at least one location is required", domain.ErrInvalidLocation)
	case len(locs) > maxBatchLocations:
		return fmt.Errorf("%w: %d locations exceeds the limit of %d", domain.ErrInvalidLocation, len(locs), maxBatchLocations)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: forecast.ErrorBody{
			Code:    codeInvalidRequest,
			Message: fmt.Sprintf("decode request body: %v", err),
		}})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	body := forecast.NewErrorBody(err)
	sharedobs.WriteJSON(w, statusFor(body.Code, err), errorResponse{Error: *body})
}

// statusFor maps an error code to an HTTP status. A cancelled caller gets
// the nginx-style 499 so it is not counted as a server fault.
func statusFor(code string, err error) int {
	switch code {
	case forecast.CodeInvalidLocation, forecast.CodeInvalidHorizon:
		return http.StatusBadRequest
	case forecast.CodeProviderUnavailable:
		if errors.Is(err, context.Canceled) {
			return 499
		}
		return http.StatusServiceUnavailable
	case forecast.CodeProviderDataMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
