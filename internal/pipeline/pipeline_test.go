package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"medtransit-route/internal/matrix"
	"medtransit-route/internal/model"
)

type fakeProvider struct {
	calls int
}

func (f *fakeProvider) FetchMatrix(ctx context.Context, locations []model.Coordinate, departure time.Time) (model.Matrix, error) {
	f.calls++
	n := len(locations)
	dur := make([][]float64, n)
	dist := make([][]float64, n)
	for i := range dur {
		dur[i] = make([]float64, n)
		dist[i] = make([]float64, n)
		for j := range dur[i] {
			if i != j {
				dur[i][j] = 10
				dist[i][j] = 5000
			}
		}
	}
	return model.Matrix{Locations: locations, DurationMinutes: dur, DistanceMeters: dist}, nil
}

func newTestPipeline(t *testing.T, provider matrix.Provider) *Pipeline {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	resolver := matrix.NewCachedResolver(provider, rdb, 30*time.Minute)
	return New(resolver, Params{MaxStops: 25, SolverWallClock: 200 * time.Millisecond, SlackMinutes: 30, RouteBudgetMinutes: 600})
}

// validRequest departs at the next 07:30 UTC still in the future, so
// both stops' 08:00-09:00 windows are reachable over the flat 10-minute
// matrix whatever the wall clock reads when the test runs.
func validRequest() model.OptimisationRequest {
	now := time.Now().UTC()
	departure := time.Date(now.Year(), now.Month(), now.Day(), 7, 30, 0, 0, time.UTC)
	if !departure.After(now) {
		departure = departure.Add(24 * time.Hour)
	}
	return model.OptimisationRequest{
		DriverID: "drv-1",
		Origin:   model.Coordinate{Lat: 40.7128, Lng: -74.0060},
		Stops: []model.Stop{
			{ID: "s1", Location: model.Coordinate{Lat: 40.7282, Lng: -73.7949}, EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 3},
			{ID: "s2", Location: model.Coordinate{Lat: 40.6892, Lng: -74.0445}, EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 3},
		},
		DepartureTime: departure,
	}
}

func TestRunSucceeds(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	result, err := p.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Feasible {
		t.Fatal("expected feasible result")
	}
	if len(result.OrderedStops) != 2 {
		t.Fatalf("expected 2 ordered stops, got %d", len(result.OrderedStops))
	}
}

func TestRunRejectsTooFewStops(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	req := validRequest()
	req.Stops = req.Stops[:1]
	if _, err := p.Run(context.Background(), req); err == nil {
		t.Fatal("expected validation error for single stop")
	}
}

func TestRunRejectsPastDeparture(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	req := validRequest()
	req.DepartureTime = time.Now().UTC().Add(-time.Hour)
	if _, err := p.Run(context.Background(), req); err == nil {
		t.Fatal("expected validation error for past departure")
	}
}

func TestRunCachesMatrixAcrossCalls(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(t, provider)
	req := validRequest()
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one provider call across identical requests, got %d", provider.calls)
	}
}

func TestRunWithCurrentPositionDisplacesOrigin(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{})
	req := validRequest()
	displaced := model.Coordinate{Lat: 40.70, Lng: -74.01}
	result, err := p.Run(context.Background(), req, WithCurrentPosition(displaced))
	if err != nil {
		t.Fatal(err)
	}
	if result.MapsURL == "" {
		t.Fatal("expected a maps URL")
	}
}
