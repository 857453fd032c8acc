// Package routebuild converts a VRP solution into an enriched
// itinerary: per-stop ETAs, totals, a navigation URL, and an
// optimisation score against the caller's input order.
package routebuild

import (
	"fmt"
	"strings"

	"medtransit-route/internal/model"
	"medtransit-route/internal/timeutil"
)

// Build walks order (a permutation of indices into stops) through
// matrix, accumulating clock = max(clock+travel, earliest) at each
// node, then clock += service, and assembles the full result
// including the naive-order reference duration and clipped score.
func Build(driverID string, origin model.Coordinate, stops []model.Stop, m model.Matrix, order []int, departureMinute int) model.OptimisationResult {
	orderedStops, totalMinutes, totalMeters := walk(stops, m, order, departureMinute)
	naiveOrder := identity(len(stops))
	_, naiveMinutes, _ := walk(stops, m, naiveOrder, departureMinute)

	score := 0.0
	if naiveMinutes > 0 {
		score = 1 - float64(totalMinutes)/float64(naiveMinutes)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return model.OptimisationResult{
		DriverID:             driverID,
		OrderedStops:         orderedStops,
		TotalDistanceKm:      float64(totalMeters) / 1000.0,
		TotalDurationMinutes: totalMinutes,
		NaiveDurationMinutes: naiveMinutes,
		Score:                score,
		MapsURL:              mapsURL(origin, orderedStops),
		Feasible:             true,
	}
}

// ProjectRemaining re-walks stops in their existing order from origin
// using a freshly resolved matrix, without invoking the solver. The
// ingest worker calls this after every GPS fix to recompute how the
// already-published sequence is actually tracking against the clock —
// re-solving is reserved for when the delay detector decides a reroute
// is warranted.
func ProjectRemaining(stops []model.Stop, m model.Matrix, departureMinute int) ([]model.OptimisedStop, int) {
	order := identity(len(stops))
	orderedStops, totalMinutes, _ := walk(stops, m, order, departureMinute)
	return orderedStops, totalMinutes
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// walk returns the ordered, timed stop list plus total duration
// (minutes) and distance (meters) for visiting order starting at
// departureMinute. It never enforces feasibility — the naive-order
// pass may legitimately violate windows; that's fine, it's only a
// scalar reference (spec §9).
func walk(stops []model.Stop, m model.Matrix, order []int, departureMinute int) ([]model.OptimisedStop, int, int) {
	clock := departureMinute
	prevIdx := 0
	totalMeters := 0

	out := make([]model.OptimisedStop, 0, len(order))
	for i, stopIdx := range order {
		stop := stops[stopIdx]
		toIdx := stopIdx + 1

		travel := int(m.DurationMinutes[prevIdx][toIdx])
		totalMeters += int(m.DistanceMeters[prevIdx][toIdx])

		earliest, _ := timeutil.TimeStrToMinutes(stop.EarliestTime)
		arrival := clock + travel
		if arrival < earliest {
			arrival = earliest
		}
		departure := arrival + stop.ServiceTimeMinutes

		out = append(out, model.OptimisedStop{
			Stop:                   stop,
			Sequence:               i + 1,
			ArrivalTime:            timeutil.MinutesToTimeStr(arrival),
			DepartureTime:          timeutil.MinutesToTimeStr(departure),
			TravelFromPriorMinutes: travel,
		})

		clock = departure
		prevIdx = toIdx
	}
	return out, clock - departureMinute, totalMeters
}

// mapsURL renders a Google Maps deep link containing only lat,lng
// segments in visit order with the origin first — no stop identifier
// substring ever appears in it.
func mapsURL(origin model.Coordinate, stops []model.OptimisedStop) string {
	parts := make([]string, 0, len(stops)+1)
	parts = append(parts, fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	for _, s := range stops {
		parts = append(parts, fmt.Sprintf("%f,%f", s.Stop.Location.Lat, s.Stop.Location.Lng))
	}
	return "https://www.google.com/maps/dir/" + strings.Join(parts, "/")
}
