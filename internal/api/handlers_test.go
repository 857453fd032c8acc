package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	redis "github.com/redis/go-redis/v9"

	"medtransit-route/internal/delay"
	"medtransit-route/internal/driverstate"
	"medtransit-route/internal/health"
	"medtransit-route/internal/ingest"
	"medtransit-route/internal/matrix"
	"medtransit-route/internal/model"
	"medtransit-route/internal/pipeline"
	"medtransit-route/internal/session"
	"medtransit-route/internal/timeutil"
)

// flatMatrixProvider resolves every leg to a flat 10-minute, 5km hop
// so a test's schedule-delay math stays predictable — the same
// fixture ingest's own tests use.
type flatMatrixProvider struct{}

func (flatMatrixProvider) FetchMatrix(_ context.Context, locations []model.Coordinate, _ time.Time) (model.Matrix, error) {
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

// newTestServer builds a full Server — real pipeline, in-memory store
// and broker, miniredis-backed matrix cache — the way the teacher's
// newTestServer wires its own stack, so a request here exercises the
// same components production traffic does.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	resolver := matrix.NewCachedResolver(flatMatrixProvider{}, rdb, 30*time.Minute)
	p := pipeline.New(resolver, pipeline.Params{MaxStops: 25, SolverWallClock: 200 * time.Millisecond, SlackMinutes: 30, RouteBudgetMinutes: 600})
	store := driverstate.NewMemoryStore()
	locker := driverstate.NewLocker()
	broker := session.NewMemoryBroker()
	worker := &ingest.Worker{
		Store:      store,
		Locker:     locker,
		Pipeline:   p,
		Broker:     broker,
		Thresholds: delay.Thresholds{DelayMinutes: 5, TrafficIncreaseRatio: 1.20, MinRerouteInterval: 0},
	}
	checker := &health.Checker{RDB: rdb, MapsAPIKeySet: true}
	return NewServer(p, store, locker, broker, worker, checker)
}

func TestHealthHandlerOK(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// optimizePayload issues a departure 20 minutes out so pipeline.Run's
// departureTime-must-not-be-in-the-past validation never flakes
// against wall-clock time.
func optimizePayload(driverID string) []byte {
	departure := time.Now().UTC().Add(20 * time.Minute)
	body := map[string]any{
		"driver_id":       driverID,
		"driver_location": map[string]float64{"lat": 40.70, "lng": -74.00},
		"departure_time":  departure.Format(time.RFC3339),
		"stops": []map[string]any{
			{"stop_id": "s1", "location": map[string]float64{"lat": 40.72, "lng": -73.99}, "earliest_pickup": "00:00", "latest_pickup": "23:59", "service_time_minutes": 5},
			{"stop_id": "s2", "location": map[string]float64{"lat": 40.73, "lng": -73.95}, "earliest_pickup": "00:00", "latest_pickup": "23:59", "service_time_minutes": 5},
		},
	}
	b, _ := json.Marshal(body)
	return b
}

// TestOptimizeHandlerSeedsDriverSession exercises the
// POST /api/v1/optimize-route entrypoint and asserts it leaves behind
// a DriverSession baseline in the store — without this, no WebSocket
// frame for the same driver would ever find an active session.
func TestOptimizeHandlerSeedsDriverSession(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/optimize-route", bytes.NewReader(optimizePayload("drv-1")))
	s.OptimizeHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("optimize: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got, err := s.Store.Get(req.Context(), "drv-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected optimize-route to persist a driver session")
	}
	if got.Status != "active" || len(got.CurrentRoute) != 2 {
		t.Fatalf("unexpected seeded session: %+v", got)
	}
	if got.RemainingDurationMinutes <= 0 || got.OriginalRemainingDuration != got.RemainingDurationMinutes {
		t.Fatalf("expected baseline duration seeded from the optimized total, got %+v", got)
	}
}

// TestOptimizeThenGPSReroutesOverWebSocket is the end-to-end scenario
// the maintainer review demanded: seed a session via the HTTP
// optimize endpoint, then dial the WS endpoint for the same driver
// and push a GPS fix that puts the driver behind schedule, asserting
// a real route_updated frame arrives — not a hand-set
// ScheduleDelayMinutes.
func TestOptimizeThenGPSReroutesOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	optReq := httptest.NewRequest(http.MethodPost, "/api/v1/optimize-route", bytes.NewReader(optimizePayload("drv-2")))
	s.OptimizeHandler(rr, optReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("optimize: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	seeded, err := s.Store.Get(optReq.Context(), "drv-2")
	if err != nil || seeded == nil {
		t.Fatalf("expected seeded session, err=%v session=%+v", err, seeded)
	}
	// Backdate the first stop's published arrival by an hour so the
	// GPS fix below computes a genuine, large schedule delay once
	// reprojectSchedule runs, rather than the field being hand-set.
	backdated := *seeded
	arrivalMinutes, err := timeutil.TimeStrToMinutes(backdated.CurrentRoute[0].ArrivalTime)
	if err != nil {
		t.Fatal(err)
	}
	backdated.CurrentRoute[0].ArrivalTime = timeutil.MinutesToTimeStr(arrivalMinutes - 60)
	if err := s.Store.Save(optReq.Context(), backdated); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ws/driver/", s.DriverWSHandler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/v1/ws/driver/drv-2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := map[string]any{
		"type":      "gps_update",
		"lat":       40.72,
		"lng":       -73.99,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	sawRouteUpdate := false
	for i := 0; i < 5; i++ {
		var out map[string]any
		if err := conn.ReadJSON(&out); err != nil {
			break
		}
		if out["type"] == "route_updated" {
			sawRouteUpdate = true
			break
		}
	}
	if !sawRouteUpdate {
		t.Fatal("expected a route_updated frame after a schedule-delaying GPS fix")
	}

	got, err := s.Store.Get(optReq.Context(), "drv-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRerouteAt == nil {
		t.Fatal("expected the reroute to be recorded in driver state")
	}
}

// TestOptimizeThenStopCompletionShrinksRoute covers scenario 6: a
// completion frame over the same WS connection removes the completed
// stop from the live session without raising an error.
func TestOptimizeThenStopCompletionShrinksRoute(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	optReq := httptest.NewRequest(http.MethodPost, "/api/v1/optimize-route", bytes.NewReader(optimizePayload("drv-3")))
	s.OptimizeHandler(rr, optReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("optimize: expected 200, got %d", rr.Code)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ws/driver/", s.DriverWSHandler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/v1/ws/driver/drv-3"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	completed := "s1"
	frame := map[string]any{
		"type":              "gps_update",
		"lat":               40.72,
		"lng":               -73.99,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"completed_stop_id": completed,
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.Store.Get(optReq.Context(), "drv-3")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil && len(got.CurrentRoute) == 1 {
			if got.CurrentRoute[0].Stop.ID != "s2" {
				t.Fatalf("expected s2 to remain, got %+v", got.CurrentRoute)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected completion to shrink the route within the deadline")
}
