// Package driverstate is the key-value façade over the shared state
// backend holding each active driver's session: current route, last
// GPS, completed stops, reroute timestamps, and baseline duration.
package driverstate

import (
	"context"
	"time"

	"medtransit-route/internal/model"
)

// Store is the persistence contract spec §4.5 describes. Callers that
// mutate a single driver's session across several steps (read, amend,
// reroute) must hold that driver's Locker shard for the duration —
// Store implementations themselves only guarantee atomicity per call.
type Store interface {
	Save(ctx context.Context, session model.DriverSession) error
	Get(ctx context.Context, driverID string) (*model.DriverSession, error)
	UpdateGPS(ctx context.Context, driverID string, fix model.GPSFix) error
	MarkCompleted(ctx context.Context, driverID, stopID string) error
	RecordReroute(ctx context.Context, driverID string, route []model.OptimisedStop, baselineDuration float64, at time.Time) error
	Clear(ctx context.Context, driverID string) error
}
