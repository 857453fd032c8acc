// Package pipeline is the single orchestration entry point shared by
// the synchronous HTTP handler and the re-routing ingest worker: it
// validates, resolves the matrix, solves, and builds the route.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"medtransit-route/internal/apperr"
	"medtransit-route/internal/matrix"
	"medtransit-route/internal/metrics"
	"medtransit-route/internal/model"
	"medtransit-route/internal/routebuild"
	"medtransit-route/internal/timeutil"
	"medtransit-route/internal/vrp"
)

// Params configures the bounds the pipeline enforces (spec §6's
// MAX_STOPS_PER_ROUTE, solver/route-budget/slack thresholds), so the
// same entry point behaves identically for every caller.
type Params struct {
	MaxStops           int
	SolverWallClock    time.Duration
	SlackMinutes       int
	RouteBudgetMinutes int
}

// Pipeline wires a matrix resolver to the VRP solver and route
// builder.
type Pipeline struct {
	Resolver *matrix.CachedResolver
	Params   Params
}

func New(resolver *matrix.CachedResolver, params Params) *Pipeline {
	return &Pipeline{Resolver: resolver, Params: params}
}

// Option lets a caller override the origin with an already-known
// current position (spec §4.4), used by the ingest worker's reroute
// path.
type Option func(*runOpts)

type runOpts struct {
	origin   *model.Coordinate
	minStops int
}

func WithCurrentPosition(c model.Coordinate) Option {
	return func(o *runOpts) { o.origin = &c }
}

// WithMinStops overrides the default minimum stop count of 2. The
// reroute path may legitimately have only one remaining stop once
// every other stop on a route has been completed.
func WithMinStops(n int) Option {
	return func(o *runOpts) { o.minStops = n }
}

// Run validates req, resolves the matrix, solves, and builds the
// enriched route.
func (p *Pipeline) Run(ctx context.Context, req model.OptimisationRequest, opts ...Option) (model.OptimisationResult, error) {
	ro := &runOpts{minStops: 2}
	for _, o := range opts {
		o(ro)
	}
	origin := req.Origin
	if ro.origin != nil {
		origin = *ro.origin
	}

	if err := validate(req, origin, ro.minStops, p.Params.MaxStops); err != nil {
		return model.OptimisationResult{}, err
	}

	locations := make([]model.Coordinate, 0, len(req.Stops)+1)
	locations = append(locations, origin)
	for _, s := range req.Stops {
		locations = append(locations, s.Location)
	}

	cached, err := p.Resolver.Resolve(ctx, locations, req.DepartureTime)
	if err != nil {
		return model.OptimisationResult{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "matrix resolution failed", err)
	}

	departureMinute := req.DepartureTime.UTC().Hour()*60 + req.DepartureTime.UTC().Minute()
	problem := vrp.Problem{
		Matrix:             cached.Matrix,
		Stops:              req.Stops,
		DepartureMinute:    departureMinute,
		SlackMinutes:       p.Params.SlackMinutes,
		RouteBudgetMinutes: p.Params.RouteBudgetMinutes,
	}
	solveStart := time.Now()
	outcome := vrp.Solve(problem, 0, p.Params.SolverWallClock)
	outcomeLabel := "feasible"
	if !outcome.Feasible {
		outcomeLabel = "infeasible"
	} else if outcome.TimedOut {
		outcomeLabel = "timed_out"
	}
	metrics.SolveDuration.WithLabelValues(outcomeLabel).Observe(time.Since(solveStart).Seconds())
	metrics.SolveOutcomes.WithLabelValues(outcomeLabel).Inc()
	if !outcome.Feasible {
		return model.OptimisationResult{}, apperr.New(apperr.KindInfeasible, "no feasible route satisfies every stop's time window within the route budget")
	}

	result := routebuild.Build(req.DriverID, origin, req.Stops, cached.Matrix, outcome.Order, departureMinute)
	result.TimedOut = outcome.TimedOut
	return result, nil
}

func validate(req model.OptimisationRequest, origin model.Coordinate, minStops, maxStops int) error {
	if req.DriverID == "" {
		return apperr.New(apperr.KindValidation, "driverId is required")
	}
	if err := timeutil.ValidateCoordinate(origin.Lat, origin.Lng); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid driver location", err)
	}
	if req.DepartureTime.IsZero() {
		return apperr.New(apperr.KindValidation, "departureTime is required")
	}
	if req.DepartureTime.Location() != time.UTC {
		return apperr.New(apperr.KindValidation, "departureTime must be UTC; ambiguous timezones are rejected, not guessed")
	}
	if req.DepartureTime.Before(time.Now().UTC().Add(-1 * time.Minute)) {
		return apperr.New(apperr.KindValidation, "departureTime must not be in the past")
	}
	if len(req.Stops) < minStops || len(req.Stops) > maxStops {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("stops must number between %d and %d", minStops, maxStops))
	}
	for _, s := range req.Stops {
		if s.ID == "" {
			return apperr.New(apperr.KindValidation, "every stop requires an id")
		}
		if err := timeutil.ValidateCoordinate(s.Location.Lat, s.Location.Lng); err != nil {
			return apperr.Wrap(apperr.KindValidation, "stop "+s.ID+" has invalid location", err)
		}
		earliest, err := timeutil.TimeStrToMinutes(s.EarliestTime)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "stop "+s.ID+" has invalid earliestTime", err)
		}
		latest, err := timeutil.TimeStrToMinutes(s.LatestTime)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "stop "+s.ID+" has invalid latestTime", err)
		}
		if earliest >= latest {
			return apperr.New(apperr.KindValidation, "stop "+s.ID+" earliestTime must be before latestTime")
		}
		if s.ServiceTimeMinutes < 1 || s.ServiceTimeMinutes > 60 {
			return apperr.New(apperr.KindValidation, "stop "+s.ID+" serviceTimeMinutes must be in [1,60]")
		}
	}
	return nil
}
