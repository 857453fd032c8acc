// Package matrix resolves a traffic-aware travel-time/distance matrix
// over a driver origin and a set of stops, backed by a content-
// addressed cache with graceful degradation.
package matrix

import (
	"context"
	"time"

	"medtransit-route/internal/model"
)

const unreachableSentinel = 999999.0

// Provider fetches a fresh traffic-aware matrix from an external
// service. Index 0 is always the origin.
type Provider interface {
	FetchMatrix(ctx context.Context, locations []model.Coordinate, departure time.Time) (model.Matrix, error)
}
