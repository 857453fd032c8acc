package vrp

import (
	"math"
	"math/rand"
)

// constructSeed builds an order via cheapest-feasible-arc greedy
// construction, mirroring the teacher's greedySeed shape: repeatedly
// append the cheapest feasible next stop until none remain or no
// further stop can be feasibly appended.
func constructSeed(p Problem, rng *rand.Rand) (order, bool) {
	n := len(p.Stops)
	used := make([]bool, n)
	var o order

	for assigned := 0; assigned < n; {
		bestIdx, bestCost := -1, math.MaxFloat64
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			cand := append(append(order(nil), o...), i)
			if !isFeasible(p, cand) {
				continue
			}
			c := transitCost(p, cand)
			if c < bestCost {
				bestCost = c
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			return o, false
		}
		o = append(o, bestIdx)
		used[bestIdx] = true
		assigned++
	}
	return o, true
}

// regretConstruct inserts stops one at a time at whichever position
// has the lowest feasible insertion cost, falling back to exhaustive
// position search when the simple append-only seed fails to place
// every stop. This mirrors the teacher's regretInsert as a harder
// fallback construction pass rather than only a repair operator.
func regretConstruct(p Problem, rng *rand.Rand) (order, bool) {
	n := len(p.Stops)
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })

	var o order
	for len(remaining) > 0 {
		bestStop, bestPos, bestCost := -1, -1, math.MaxFloat64
		for ri, stopIdx := range remaining {
			for pos := 0; pos <= len(o); pos++ {
				cand := insertAt(o, stopIdx, pos)
				if !isFeasible(p, cand) {
					continue
				}
				c := transitCost(p, cand)
				if c < bestCost {
					bestCost = c
					bestStop = ri
					bestPos = pos
				}
			}
		}
		if bestStop == -1 {
			return o, false
		}
		stopIdx := remaining[bestStop]
		o = insertAt(o, stopIdx, bestPos)
		remaining = append(remaining[:bestStop], remaining[bestStop+1:]...)
	}
	return o, true
}

func insertAt(o order, stopIdx, pos int) order {
	out := make(order, 0, len(o)+1)
	out = append(out, o[:pos]...)
	out = append(out, stopIdx)
	out = append(out, o[pos:]...)
	return out
}

// perturb applies a random removal-and-reinsertion of k stops to the
// current order, the single-vehicle analogue of the teacher's
// pickRandomNodes + regretInsert pair.
func perturb(p Problem, o order, rng *rand.Rand) order {
	if len(o) < 2 {
		return append(order(nil), o...)
	}
	k := 1 + rng.Intn(min(3, len(o)))
	cur := append(order(nil), o...)
	removed := make([]int, 0, k)
	for i := 0; i < k && len(cur) > 0; i++ {
		j := rng.Intn(len(cur))
		removed = append(removed, cur[j])
		cur = append(cur[:j], cur[j+1:]...)
	}
	for _, stopIdx := range removed {
		bestPos, bestCost := 0, math.MaxFloat64
		for pos := 0; pos <= len(cur); pos++ {
			cand := insertAt(cur, stopIdx, pos)
			c := transitCost(p, cand)
			if c < bestCost {
				bestCost = c
				bestPos = pos
			}
		}
		cur = insertAt(cur, stopIdx, bestPos)
	}
	return cur
}

// twoOpt tries reversing each sub-segment, keeping the best feasible
// reversal found (teacher's twoOptImprove, narrowed to one route).
func twoOpt(p Problem, o order) order {
	n := len(o)
	if n < 3 {
		return o
	}
	best := append(order(nil), o...)
	bestCost := transitCost(p, best)
	improved := true
	for improved {
		improved = false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := append(order(nil), best...)
				for a, b := i, k; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if !isFeasible(p, cand) {
					continue
				}
				c := transitCost(p, cand)
				if c+1e-9 < bestCost {
					best, bestCost = cand, c
					improved = true
				}
			}
		}
	}
	return best
}

// orOpt relocates single stops to better positions (teacher's
// orOptLocalImprove, narrowed to one route).
func orOpt(p Problem, o order) order {
	n := len(o)
	if n < 2 {
		return o
	}
	best := append(order(nil), o...)
	bestCost := transitCost(p, best)
	improved := true
	for improved {
		improved = false
		for i := 0; i < len(best); i++ {
			stopIdx := best[i]
			without := append(append(order(nil), best[:i]...), best[i+1:]...)
			for pos := 0; pos <= len(without); pos++ {
				cand := insertAt(without, stopIdx, pos)
				if !isFeasible(p, cand) {
					continue
				}
				c := transitCost(p, cand)
				if c+1e-9 < bestCost {
					best, bestCost = cand, c
					improved = true
				}
			}
		}
	}
	return best
}
