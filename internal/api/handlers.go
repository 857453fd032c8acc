package api

import (
	"encoding/json"
	"net/http"

	"medtransit-route/internal/apperr"
	"medtransit-route/internal/model"
)

type optimizeRequest struct {
	DriverID      string       `json:"driver_id"`
	DriverLocation model.Coordinate `json:"driver_location"`
	DepartureTime string       `json:"departure_time"`
	Stops         []stopInput  `json:"stops"`
}

type stopInput struct {
	StopID             string           `json:"stop_id"`
	Location           model.Coordinate `json:"location"`
	EarliestPickup     string           `json:"earliest_pickup"`
	LatestPickup       string           `json:"latest_pickup"`
	ServiceTimeMinutes int              `json:"service_time_minutes"`
}

type optimizeResponse struct {
	DriverID           string                 `json:"driver_id"`
	OptimizedStops     []model.OptimisedStop  `json:"optimized_stops"`
	TotalDistanceKm    float64                `json:"total_distance_km"`
	TotalDurationMinutes int                  `json:"total_duration_minutes"`
	GoogleMapsURL      string                 `json:"google_maps_url"`
	OptimizationScore  float64                `json:"optimization_score"`
}

// OptimizeHandler implements POST /api/v1/optimize-route.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", "malformed JSON body: "+err.Error(), r.URL.Path)
		return
	}

	departure, err := parseISO8601UTC(req.DepartureTime)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", "departure_time must be ISO-8601 UTC: "+err.Error(), r.URL.Path)
		return
	}

	stops := make([]model.Stop, len(req.Stops))
	for i, si := range req.Stops {
		stops[i] = model.Stop{
			ID:                 si.StopID,
			Location:           si.Location,
			EarliestTime:       si.EarliestPickup,
			LatestTime:         si.LatestPickup,
			ServiceTimeMinutes: si.ServiceTimeMinutes,
		}
	}

	domainReq := model.OptimisationRequest{
		DriverID:      req.DriverID,
		Origin:        req.DriverLocation,
		Stops:         stops,
		DepartureTime: departure,
	}

	result, err := s.Pipeline.Run(r.Context(), domainReq)
	if err != nil {
		writeAppErr(w, r.URL.Path, err)
		return
	}

	baseline := model.DriverSession{
		DriverID:                  result.DriverID,
		CurrentRoute:              result.OrderedStops,
		RemainingDurationMinutes:  float64(result.TotalDurationMinutes),
		OriginalRemainingDuration: float64(result.TotalDurationMinutes),
		Status:                    "active",
	}
	if err := s.Store.Save(r.Context(), baseline); err != nil {
		writeAppErr(w, r.URL.Path, apperr.Wrap(apperr.KindStateUnavailable, "failed to persist driver session", err))
		return
	}

	writeJSON(w, http.StatusOK, optimizeResponse{
		DriverID:              result.DriverID,
		OptimizedStops:        result.OrderedStops,
		TotalDistanceKm:       result.TotalDistanceKm,
		TotalDurationMinutes:  result.TotalDurationMinutes,
		GoogleMapsURL:         result.MapsURL,
		OptimizationScore:     result.Score,
	})
}

// HealthHandler implements GET /api/v1/health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.Health.Check(r.Context())
	code := http.StatusOK
	if status.Overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
