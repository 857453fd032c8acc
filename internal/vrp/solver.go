// Package vrp solves a single-vehicle vehicle routing problem with
// time windows, service times, early-arrival slack, and a daily route
// budget. The solver shape — greedy construction, regret/greedy
// insertion, 2-opt/or-opt local search under a simulated-annealing
// acceptance criterion — is carried over from the teacher's
// multi-vehicle ALNS engine, narrowed to one vehicle and re-grounded
// in the time-window/capacity semantics of a cheapest-arc-then-
// local-search VRPTW solve.
package vrp

import (
	"math"
	"math/rand"
	"time"

	"medtransit-route/internal/model"
	"medtransit-route/internal/timeutil"
)

// Problem is the single-vehicle VRPTW instance. Matrix index 0 is the
// origin; index i+1 corresponds to Stops[i].
type Problem struct {
	Matrix             model.Matrix
	Stops              []model.Stop
	DepartureMinute    int // minute-of-day the vehicle starts, cumulative clock origin
	SlackMinutes       int // permitted early-arrival wait per arc
	RouteBudgetMinutes int // max cumulative minutes from DepartureMinute to route end
}

// order holds a permutation of stop indices (0-based into p.Stops).
type order []int

// Solve runs the heuristic within timeBudget and returns the best
// outcome found. Feasible=false means no permutation satisfying every
// time window and the route budget was ever found; TimedOut=true
// means the wall clock expired while an incumbent was already held.
func Solve(p Problem, seed int64, timeBudget time.Duration) model.SolveOutcome {
	n := len(p.Stops)
	if n == 0 {
		return model.SolveOutcome{Feasible: true, Order: nil}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	deadline := time.Now().Add(timeBudget)

	best, bestFeasible := constructSeed(p, rng)
	bestCost := math.Inf(1)
	if bestFeasible {
		bestCost = transitCost(p, best)
	} else {
		// Fall back to regret insertion from empty, which tries much
		// harder to find ANY feasible permutation before giving up.
		best, bestFeasible = regretConstruct(p, rng)
		if bestFeasible {
			bestCost = transitCost(p, best)
		}
	}
	if !bestFeasible {
		// Pad the partial construction with every unplaced stop so the
		// search below only ever perturbs and accepts full permutations.
		placed := make([]bool, n)
		for _, idx := range best {
			placed[idx] = true
		}
		for i := 0; i < n; i++ {
			if !placed[i] {
				best = append(best, i)
			}
		}
	}

	timedOut := false
	temp := 1.0
	const cooling = 0.995

	for time.Now().Before(deadline) {
		cand := perturb(p, best, rng)
		cand = twoOpt(p, cand)
		cand = orOpt(p, cand)
		feasible := isFeasible(p, cand)
		if !feasible {
			continue
		}
		cost := transitCost(p, cand)
		if !bestFeasible {
			best, bestCost, bestFeasible = cand, cost, true
			continue
		}
		delta := cost - bestCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			if cost < bestCost {
				best, bestCost = cand, cost
			}
		}
		temp *= cooling
	}
	if time.Now().After(deadline) || !time.Now().Before(deadline) {
		timedOut = true
	}

	if !bestFeasible {
		return model.SolveOutcome{Feasible: false, TimedOut: timedOut}
	}
	return model.SolveOutcome{Feasible: true, TimedOut: timedOut, Order: []int(best)}
}

// node returns the matrix index for position i in an order (0 = origin).
func node(o order, pos int) int {
	if pos < 0 {
		return 0
	}
	return o[pos] + 1
}

// schedule walks an order, returning the arrival minute at each stop
// and whether the full order is feasible (time windows + budget).
func schedule(p Problem, o order) (arrivals []int, feasible bool) {
	clock := p.DepartureMinute
	prevIdx := 0
	arrivals = make([]int, len(o))
	for pos, stopIdx := range o {
		stop := p.Stops[stopIdx]
		toIdx := stopIdx + 1
		travel := int(math.Round(p.Matrix.DurationMinutes[prevIdx][toIdx]))
		clock += travel

		earliest, _ := timeutil.TimeStrToMinutes(stop.EarliestTime)
		latest, _ := timeutil.TimeStrToMinutes(stop.LatestTime)
		if clock < earliest {
			wait := earliest - clock
			if wait > p.SlackMinutes {
				return arrivals, false
			}
			clock = earliest
		}
		if clock > latest {
			return arrivals, false
		}
		arrivals[pos] = clock
		clock += stop.ServiceTimeMinutes
		prevIdx = toIdx
	}
	if clock-p.DepartureMinute > p.RouteBudgetMinutes {
		return arrivals, false
	}
	return arrivals, true
}

func isFeasible(p Problem, o order) bool {
	_, ok := schedule(p, o)
	return ok
}

// transitCost sums time_matrix[i][j] + service_time[i] over consecutive
// arcs, per spec's C3 transit-cost definition (service time is billed
// at the arc's origin node; service at the origin itself is zero).
func transitCost(p Problem, o order) float64 {
	total := 0.0
	prevIdx := 0
	prevService := 0.0
	for _, stopIdx := range o {
		toIdx := stopIdx + 1
		total += p.Matrix.DurationMinutes[prevIdx][toIdx] + prevService
		prevService = float64(p.Stops[stopIdx].ServiceTimeMinutes)
		prevIdx = toIdx
	}
	return total
}

