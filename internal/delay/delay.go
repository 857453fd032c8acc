// Package delay implements the pure reroute decision function: given
// a driver's current session state, should the route be recomputed,
// and why.
package delay

import (
	"time"

	"medtransit-route/internal/model"
)

// Thresholds mirrors the tunables spec §6 exposes as config/env vars.
type Thresholds struct {
	DelayMinutes        float64
	TrafficIncreaseRatio float64
	MinRerouteInterval  time.Duration
}

// Evaluate applies rules R1-R4 against session in order and returns
// whether a reroute should fire and, if so, its reason. R4 (cooldown)
// suppresses R1 and R2 but never R3: a dispatcher-driven stop change
// must propagate even mid-cooldown.
func Evaluate(session model.DriverSession, th Thresholds, now time.Time) (reroute bool, reason model.RerouteReason) {
	cooldown := false
	if session.LastRerouteAt != nil && now.Sub(*session.LastRerouteAt) < th.MinRerouteInterval {
		cooldown = true
	}

	if session.StopsChanged {
		return true, model.ReasonStopModified
	}

	if cooldown {
		return false, ""
	}

	if session.ScheduleDelayMinutes > th.DelayMinutes {
		return true, model.ReasonTrafficDelay
	}

	if session.OriginalRemainingDuration > 0 &&
		session.RemainingDurationMinutes > session.OriginalRemainingDuration*th.TrafficIncreaseRatio {
		return true, model.ReasonTrafficDelay
	}

	return false, ""
}
