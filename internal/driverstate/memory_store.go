package driverstate

import (
	"context"
	"sync"
	"time"

	"medtransit-route/internal/model"
)

// MemoryStore is the in-process fallback used when no Redis URL is
// configured (tests, local runs). State does not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.DriverSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]model.DriverSession{}}
}

func (m *MemoryStore) Save(ctx context.Context, session model.DriverSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.DriverID] = session
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, driverID string) (*model.DriverSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	if !ok {
		return nil, nil
	}
	out := session
	return &out, nil
}

func (m *MemoryStore) UpdateGPS(ctx context.Context, driverID string, fix model.GPSFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	if !ok {
		return nil
	}
	session.LastGPS = &fix
	m.sessions[driverID] = session
	return nil
}

func (m *MemoryStore) MarkCompleted(ctx context.Context, driverID, stopID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	if !ok {
		return nil
	}
	already := false
	for _, id := range session.CompletedStopIDs {
		if id == stopID {
			already = true
			break
		}
	}
	if !already {
		session.CompletedStopIDs = append(session.CompletedStopIDs, stopID)
	}
	for i, st := range session.CurrentRoute {
		if st.Stop.ID == stopID {
			session.CurrentRoute = append(session.CurrentRoute[:i], session.CurrentRoute[i+1:]...)
			break
		}
	}
	m.sessions[driverID] = session
	return nil
}

func (m *MemoryStore) RecordReroute(ctx context.Context, driverID string, route []model.OptimisedStop, baselineDuration float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	if !ok {
		return nil
	}
	session.CurrentRoute = append([]model.OptimisedStop(nil), route...)
	session.RemainingDurationMinutes = baselineDuration
	session.OriginalRemainingDuration = baselineDuration
	at2 := at
	session.LastRerouteAt = &at2
	session.StopsChanged = false
	m.sessions[driverID] = session
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, driverID)
	return nil
}
