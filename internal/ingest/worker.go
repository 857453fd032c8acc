// Package ingest processes inbound GPS/completion events for a single
// driver: update position, evaluate the delay detector, and
// conditionally re-optimise and publish.
package ingest

import (
	"context"
	"log"
	"time"

	"medtransit-route/internal/apperr"
	"medtransit-route/internal/delay"
	"medtransit-route/internal/driverstate"
	"medtransit-route/internal/metrics"
	"medtransit-route/internal/model"
	"medtransit-route/internal/pipeline"
	"medtransit-route/internal/routebuild"
	"medtransit-route/internal/session"
	"medtransit-route/internal/timeutil"
)

// Worker processes one GPS/completion event at a time per driver,
// serialised by Locker so a reroute publication can never race a
// concurrent completion for the same driver.
type Worker struct {
	Store      driverstate.Store
	Locker     *driverstate.Locker
	Pipeline   *pipeline.Pipeline
	Broker     session.EventBroker
	Thresholds delay.Thresholds
}

// Result reports what ProcessEvent actually did, for logging and for
// the WebSocket handler to decide whether to push an error frame.
type Result struct {
	Rerouted bool
	Reason   model.RerouteReason
	Err      error
}

// ProcessEvent implements the six-step flow: acquire the driver's
// lock, load state, fold in the GPS fix and any completion, run the
// delay detector, and — only if it fires — re-optimise from the
// driver's current position and publish the new route.
func (w *Worker) ProcessEvent(ctx context.Context, driverID string, coord model.Coordinate, at time.Time, completedStopID *string) Result {
	var result Result
	lockErr := w.Locker.WithLock(driverID, func() error {
		sess, err := w.Store.Get(ctx, driverID)
		if err != nil {
			return apperr.Wrap(apperr.KindStateUnavailable, "failed to load driver state", err)
		}
		if sess == nil {
			return apperr.New(apperr.KindDriverNotFound, "no active session for driver "+driverID)
		}

		fix := model.GPSFix{Coordinate: coord, Timestamp: at}
		if err := w.Store.UpdateGPS(ctx, driverID, fix); err != nil {
			return apperr.Wrap(apperr.KindStateUnavailable, "failed to persist GPS fix", err)
		}
		sess.LastGPS = &fix

		if completedStopID != nil {
			found := false
			for _, st := range sess.CurrentRoute {
				if st.Stop.ID == *completedStopID {
					found = true
					break
				}
			}
			if !found {
				return apperr.New(apperr.KindUnknownStop, "stop "+*completedStopID+" is not on the current route")
			}
			if err := w.Store.MarkCompleted(ctx, driverID, *completedStopID); err != nil {
				return apperr.Wrap(apperr.KindStateUnavailable, "failed to mark stop completed", err)
			}
			refreshed, err := w.Store.Get(ctx, driverID)
			if err != nil {
				return apperr.Wrap(apperr.KindStateUnavailable, "failed to reload driver state", err)
			}
			sess = refreshed
		}

		if len(sess.CurrentRoute) > 0 {
			if err := w.reprojectSchedule(ctx, sess, coord, at); err != nil {
				log.Printf("ingest: driver=%s schedule re-projection failed, delay figures left stale: %v", driverID, err)
			} else if err := w.Store.Save(ctx, *sess); err != nil {
				return apperr.Wrap(apperr.KindStateUnavailable, "failed to persist schedule projection", err)
			}
		}

		reroute, reason := delay.Evaluate(*sess, w.Thresholds, at)
		if !reroute {
			result = Result{Rerouted: false}
			return nil
		}

		remaining := sess.CurrentRoute
		if len(remaining) == 0 {
			result = Result{Rerouted: false}
			return nil
		}

		req := model.OptimisationRequest{
			DriverID:      driverID,
			Origin:        coord,
			Stops:         stopsFromOptimised(remaining),
			DepartureTime: at.UTC(),
		}
		route, err := w.Pipeline.Run(ctx, req, pipeline.WithCurrentPosition(coord), pipeline.WithMinStops(1))
		if err != nil {
			sess.RerouteErrorCount++
			if saveErr := w.Store.Save(ctx, *sess); saveErr != nil {
				log.Printf("ingest: driver=%s reroute failed and state save failed: %v", driverID, saveErr)
			}
			result = Result{Rerouted: false, Err: err}
			return nil
		}

		if err := w.Store.RecordReroute(ctx, driverID, route.OrderedStops, float64(route.TotalDurationMinutes), at); err != nil {
			return apperr.Wrap(apperr.KindStateUnavailable, "failed to persist rerouted state", err)
		}

		metrics.RerouteEvents.WithLabelValues(string(reason)).Inc()
		w.Broker.Publish(driverID, routeUpdatedEvent(reason, route))
		result = Result{Rerouted: true, Reason: reason}
		return nil
	})
	if lockErr != nil && result.Err == nil {
		result.Err = lockErr
	}
	return result
}

func stopsFromOptimised(route []model.OptimisedStop) []model.Stop {
	stops := make([]model.Stop, 0, len(route))
	for _, os := range route {
		stops = append(stops, os.Stop)
	}
	return stops
}

// reprojectSchedule re-walks sess's current route from coord at at,
// against a freshly resolved matrix, and writes the resulting
// RemainingDurationMinutes/ScheduleDelayMinutes onto sess in place.
// This never re-solves the route order — only delay.Evaluate firing
// does that — it just tells the delay detector how the already
// published sequence is actually tracking against the clock.
func (w *Worker) reprojectSchedule(ctx context.Context, sess *model.DriverSession, coord model.Coordinate, at time.Time) error {
	stops := stopsFromOptimised(sess.CurrentRoute)
	locations := make([]model.Coordinate, 0, len(stops)+1)
	locations = append(locations, coord)
	for _, st := range stops {
		locations = append(locations, st.Location)
	}

	cached, err := w.Pipeline.Resolver.Resolve(ctx, locations, at)
	if err != nil {
		return err
	}

	departureMinute := at.UTC().Hour()*60 + at.UTC().Minute()
	projected, totalMinutes := routebuild.ProjectRemaining(stops, cached.Matrix, departureMinute)
	sess.RemainingDurationMinutes = float64(totalMinutes)

	if len(projected) == 0 {
		return nil
	}
	scheduled, err := timeutil.TimeStrToMinutes(sess.CurrentRoute[0].ArrivalTime)
	if err != nil {
		return nil
	}
	nowProjected, err := timeutil.TimeStrToMinutes(projected[0].ArrivalTime)
	if err != nil {
		return nil
	}
	sess.ScheduleDelayMinutes = float64(nowProjected - scheduled)
	return nil
}

func routeUpdatedEvent(reason model.RerouteReason, route model.OptimisationResult) session.Event {
	return session.Event{
		Type:                 "route_updated",
		Reason:               reason,
		OptimizedStops:       route.OrderedStops,
		TotalDurationMinutes: route.TotalDurationMinutes,
		GoogleMapsURL:        route.MapsURL,
	}
}
