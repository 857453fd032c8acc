package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"medtransit-route/internal/apperr"
	"medtransit-route/internal/model"
)

// GoogleDistanceMatrixProvider fetches a traffic-aware matrix from a
// Google-Distance-Matrix-shaped HTTP endpoint: driving mode,
// best_guess traffic model, and the caller's departure instant, so
// returned durations reflect predicted traffic.
type GoogleDistanceMatrixProvider struct {
	APIKey     string
	BaseURL    string // defaults to the public Distance Matrix endpoint
	HTTPClient *http.Client
}

func NewGoogleDistanceMatrixProvider(apiKey string) *GoogleDistanceMatrixProvider {
	return &GoogleDistanceMatrixProvider{
		APIKey:     apiKey,
		BaseURL:    "https://maps.googleapis.com/maps/api/distancematrix/json",
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status  string `json:"status"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// FetchMatrix calls the provider once and, if that attempt fails for
// any reason (transport error, undecodable body, non-OK top-level
// status, or wrong row/element count), retries exactly once after a
// 1 second backoff (spec §7's C2 recovery rule). A failed retry is
// returned as an upstream failure.
func (p *GoogleDistanceMatrixProvider) FetchMatrix(ctx context.Context, locations []model.Coordinate, departure time.Time) (model.Matrix, error) {
	var last error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return model.Matrix{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "matrix provider context cancelled", ctx.Err())
			}
		}
		m, err := p.fetchOnce(ctx, locations, departure)
		if err == nil {
			return m, nil
		}
		last = err
	}
	return model.Matrix{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "distance matrix provider failed", last)
}

func (p *GoogleDistanceMatrixProvider) fetchOnce(ctx context.Context, locations []model.Coordinate, departure time.Time) (model.Matrix, error) {
	coords := make([]string, len(locations))
	for i, c := range locations {
		coords[i] = fmt.Sprintf("%f,%f", c.Lat, c.Lng)
	}
	joined := strings.Join(coords, "|")

	q := url.Values{}
	q.Set("origins", joined)
	q.Set("destinations", joined)
	q.Set("mode", "driving")
	q.Set("traffic_model", "best_guess")
	q.Set("units", "metric")
	q.Set("departure_time", strconv.FormatInt(departure.Unix(), 10))
	q.Set("key", p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.Matrix{}, err
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return model.Matrix{}, err
	}
	defer resp.Body.Close()

	var parsed distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Matrix{}, fmt.Errorf("decode distance matrix response: %w", err)
	}
	if parsed.Status != "OK" {
		return model.Matrix{}, fmt.Errorf("distance matrix provider status %q", parsed.Status)
	}
	n := len(locations)
	if len(parsed.Rows) != n {
		return model.Matrix{}, fmt.Errorf("distance matrix response has %d rows, want %d", len(parsed.Rows), n)
	}

	out := model.Matrix{
		Locations:       locations,
		DurationMinutes: make([][]float64, n),
		DistanceMeters:  make([][]float64, n),
	}
	for i, row := range parsed.Rows {
		if len(row.Elements) != n {
			return model.Matrix{}, fmt.Errorf("distance matrix row %d has %d elements, want %d", i, len(row.Elements), n)
		}
		out.DurationMinutes[i] = make([]float64, n)
		out.DistanceMeters[i] = make([]float64, n)
		for j, el := range row.Elements {
			if el.Status != "OK" {
				out.DurationMinutes[i][j] = unreachableSentinel
				out.DistanceMeters[i][j] = unreachableSentinel
				continue
			}
			durationSeconds := el.Duration.Value
			if el.DurationInTraffic.Value > 0 {
				durationSeconds = el.DurationInTraffic.Value
			}
			out.DurationMinutes[i][j] = float64(durationSeconds) / 60.0
			out.DistanceMeters[i][j] = float64(el.Distance.Value)
		}
	}
	return out, nil
}
