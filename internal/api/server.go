// Package api exposes the HTTP and WebSocket surface over the
// optimization pipeline, driver-state store, and session broker.
package api

import (
	"sync"

	"golang.org/x/time/rate"

	"medtransit-route/internal/driverstate"
	"medtransit-route/internal/health"
	"medtransit-route/internal/ingest"
	"medtransit-route/internal/pipeline"
	"medtransit-route/internal/session"
)

// Server wires the core domain components to HTTP and WebSocket
// handlers. There is no tenant or auth context here: the spec scopes
// authentication out (see DESIGN.md).
type Server struct {
	Pipeline *pipeline.Pipeline
	Store    driverstate.Store
	Locker   *driverstate.Locker
	Broker   session.EventBroker
	Worker   *ingest.Worker
	Health   *health.Checker
	Registry *session.Registry

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewServer(p *pipeline.Pipeline, store driverstate.Store, locker *driverstate.Locker, broker session.EventBroker, worker *ingest.Worker, checker *health.Checker) *Server {
	return &Server{
		Pipeline: p,
		Store:    store,
		Locker:   locker,
		Broker:   broker,
		Worker:   worker,
		Health:   checker,
		Registry: session.NewRegistry(),
		limiters: map[string]*rate.Limiter{},
	}
}

// limiterFor returns the per-driver token bucket bounding the rate of
// inbound plain GPS-fix frames, creating it on first use. golang.org/x/time/rate
// was declared in the teacher's go.mod but never wired into a handler —
// this closes that gap against the RATE_LIMITED error code spec defines.
func (s *Server) limiterFor(driverID string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[driverID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(5), 10)
		s.limiters[driverID] = l
	}
	return l
}
