// Package health reports service readiness without ever invoking the
// paid traffic provider.
package health

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Status is the response shape for GET /api/v1/health.
type Status struct {
	Overall       string `json:"status"`
	StateBackend  string `json:"state_backend"`
	MapsAPI       string `json:"maps_api"`
}

// Checker pings the state backend and reports whether the traffic
// provider credential is configured, never calling the provider itself.
type Checker struct {
	RDB           *redis.Client
	MapsAPIKeySet bool
}

func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	stateUp := true
	if c.RDB == nil {
		stateUp = false
	} else if err := c.RDB.Ping(ctx).Err(); err != nil {
		stateUp = false
	}

	stateStatus := "unreachable"
	if stateUp {
		stateStatus = "reachable"
	}
	mapsStatus := "unconfigured"
	if c.MapsAPIKeySet {
		mapsStatus = "configured"
	}

	overall := "unhealthy"
	switch {
	case stateUp && c.MapsAPIKeySet:
		overall = "healthy"
	case !stateUp && c.MapsAPIKeySet:
		overall = "degraded"
	}

	return Status{Overall: overall, StateBackend: stateStatus, MapsAPI: mapsStatus}
}
