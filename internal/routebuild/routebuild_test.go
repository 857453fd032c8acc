package routebuild

import (
	"strings"
	"testing"

	"medtransit-route/internal/model"
)

func fixtureMatrix() ([]model.Coordinate, model.Matrix) {
	coords := []model.Coordinate{
		{Lat: 40.7128, Lng: -74.0060},
		{Lat: 40.7282, Lng: -73.7949},
		{Lat: 40.6892, Lng: -74.0445},
	}
	dur := [][]float64{
		{0, 30, 10},
		{30, 0, 40},
		{10, 40, 0},
	}
	dist := [][]float64{
		{0, 30000, 10000},
		{30000, 0, 40000},
		{10000, 40000, 0},
	}
	return coords, model.Matrix{Locations: coords, DurationMinutes: dur, DistanceMeters: dist}
}

func TestBuildScoreAndInvariants(t *testing.T) {
	coords, m := fixtureMatrix()
	stops := []model.Stop{
		{ID: "s1", Location: coords[1], EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 5},
		{ID: "s2", Location: coords[2], EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 5},
	}
	// Departing at 08:00, when both windows are already open: the optimised
	// order visits s2 first (10 min leg + 5 service) then s1 (40 + 5) = 60
	// total vs naive order s1 (30 + 5) then s2 (40 + 5) = 80 total, so
	// optimised should be cheaper.
	result := Build("drv-1", coords[0], stops, m, []int{1, 0}, 8*60)

	if len(result.OrderedStops) != len(stops) {
		t.Fatalf("expected %d ordered stops, got %d", len(stops), len(result.OrderedStops))
	}
	if result.Score < 0 || result.Score > 1 {
		t.Fatalf("score %v out of [0,1]", result.Score)
	}
	if result.TotalDurationMinutes >= result.NaiveDurationMinutes {
		t.Fatalf("expected optimised duration < naive, got %d >= %d", result.TotalDurationMinutes, result.NaiveDurationMinutes)
	}
	wantScore := 1 - float64(result.TotalDurationMinutes)/float64(result.NaiveDurationMinutes)
	if diff := result.Score - wantScore; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score formula mismatch: got %v want %v", result.Score, wantScore)
	}
	if strings.Contains(result.MapsURL, "s1") || strings.Contains(result.MapsURL, "s2") {
		t.Fatal("maps URL must not contain stop identifiers")
	}
	if !strings.HasPrefix(result.MapsURL, "https://www.google.com/maps/dir/40.712800,-74.006000/") {
		t.Fatalf("maps URL should start with origin coordinate, got %s", result.MapsURL)
	}
	for i, os := range result.OrderedStops {
		if os.Sequence != i+1 {
			t.Fatalf("expected 1-based sequence without gaps, stop %d has sequence %d", i, os.Sequence)
		}
	}
	if result.OrderedStops[0].Stop.ID != "s2" || result.OrderedStops[1].Stop.ID != "s1" {
		t.Fatalf("expected order [s2, s1] with sequence 1, 2 respectively, got %+v", result.OrderedStops)
	}
}

func TestProjectRemainingAssignsSequence(t *testing.T) {
	coords, m := fixtureMatrix()
	stops := []model.Stop{
		{ID: "s1", Location: coords[1], EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 5},
		{ID: "s2", Location: coords[2], EarliestTime: "08:00", LatestTime: "09:00", ServiceTimeMinutes: 5},
	}
	projected, total := ProjectRemaining(stops, m, 7*60+30)
	if total <= 0 {
		t.Fatalf("expected positive total duration, got %d", total)
	}
	if len(projected) != 2 {
		t.Fatalf("expected 2 projected stops, got %d", len(projected))
	}
	for i, os := range projected {
		if os.Sequence != i+1 {
			t.Fatalf("expected 1-based sequence without gaps, stop %d has sequence %d", i, os.Sequence)
		}
	}
}
