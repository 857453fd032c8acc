package driverstate

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medtransit-route/internal/model"
)

// RedisStore persists one JSON document per driver at
// "driver:{id}:state", refreshing the TTL to the full session
// lifetime on every mutating call — including UpdateGPS and
// MarkCompleted, which is a deliberate departure from the original
// Python implementation's TTL-preserving behaviour (see DESIGN.md).
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func stateKey(driverID string) string { return "driver:" + driverID + ":state" }

func (s *RedisStore) Save(ctx context.Context, session model.DriverSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stateKey(session.DriverID), raw, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, driverID string) (*model.DriverSession, error) {
	raw, err := s.rdb.Get(ctx, stateKey(driverID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.DriverSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisStore) UpdateGPS(ctx context.Context, driverID string, fix model.GPSFix) error {
	session, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.LastGPS = &fix
	return s.Save(ctx, *session)
}

func (s *RedisStore) MarkCompleted(ctx context.Context, driverID, stopID string) error {
	session, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if session == nil {
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
	return s.Save(ctx, *session)
}

func (s *RedisStore) RecordReroute(ctx context.Context, driverID string, route []model.OptimisedStop, baselineDuration float64, at time.Time) error {
	session, err := s.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.CurrentRoute = append([]model.OptimisedStop(nil), route...)
	session.RemainingDurationMinutes = baselineDuration
	session.OriginalRemainingDuration = baselineDuration
	at2 := at
	session.LastRerouteAt = &at2
	session.StopsChanged = false
	return s.Save(ctx, *session)
}

func (s *RedisStore) Clear(ctx context.Context, driverID string) error {
	return s.rdb.Del(ctx, stateKey(driverID)).Err()
}
