package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"medtransit-route/internal/apperr"
	"medtransit-route/internal/model"
	"medtransit-route/internal/session"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	pingInterval = 60 * time.Second
	pongTimeout  = 30 * time.Second
)

type inboundFrame struct {
	Type            string  `json:"type"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	Timestamp       string  `json:"timestamp"`
	CompletedStopID *string `json:"completed_stop_id,omitempty"`
}

type outboundFrame struct {
	Type                 string `json:"type"`
	Reason               model.RerouteReason `json:"reason,omitempty"`
	OptimizedStops       []model.OptimisedStop `json:"optimized_stops,omitempty"`
	TotalDurationMinutes int    `json:"total_duration_minutes,omitempty"`
	GoogleMapsURL        string `json:"google_maps_url,omitempty"`
	ServerTime           string `json:"server_time,omitempty"`
	Code                 string `json:"code,omitempty"`
	Message              string `json:"message,omitempty"`
}

// wsConn adapts a gorilla connection to session.Conn and serialises
// all writes behind one mutex, since the library forbids concurrent
// writers on the same connection.
type wsConn struct {
	conn  *websocket.Conn
	mu    sync.Mutex
	once  sync.Once
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() { err = c.conn.Close() })
	return err
}

// DriverWSHandler implements GET /api/v1/ws/driver/{driver_id}.
func (s *Server) DriverWSHandler(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimPrefix(r.URL.Path, "/api/v1/ws/driver/")
	if driverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	s.Registry.Register(driverID, conn)
	defer s.Registry.Unregister(driverID, conn)
	defer conn.Close()

	lastPong := make(chan struct{}, 1)
	raw.SetPongHandler(func(string) error {
		select {
		case lastPong <- struct{}{}:
		default:
		}
		return nil
	})

	done := make(chan struct{})
	go s.heartbeatLoop(conn, lastPong, done)

	routeCh := s.Broker.Subscribe(driverID)
	defer s.Broker.Unsubscribe(driverID, routeCh)
	go s.forwardRouteUpdates(conn, routeCh)

	gpsQueue := make(chan inboundFrame, 3)
	completionQueue := make(chan inboundFrame, 64)
	go s.drainQueues(conn, driverID, gpsQueue, completionQueue, done)

	defer close(done)

	raw.SetReadLimit(1 << 16)
	for {
		var frame inboundFrame
		if err := raw.ReadJSON(&frame); err != nil {
			return
		}
		if !s.limiterFor(driverID).Allow() {
			_ = conn.writeJSON(outboundFrame{Type: "error", Code: apperr.WSCode(apperr.KindRateLimited), Message: "too many frames"})
			continue
		}
		switch frame.Type {
		case "pong":
			// The server's "ping" is a JSON text frame, not a native WS
			// control frame, so no compliant client ever triggers
			// SetPongHandler above — this JSON "pong" reply is the only
			// signal heartbeatLoop actually receives.
			select {
			case lastPong <- struct{}{}:
			default:
			}
		case "gps_update":
			if frame.CompletedStopID != nil {
				select {
				case completionQueue <- frame:
				default:
					log.Printf("ws: completion queue full for driver=%s, dropping is not permitted — blocking", driverID)
					completionQueue <- frame
				}
				continue
			}
			// Only plain GPS fixes are rate limited; pong and completion
			// frames above are never dropped.
			if !s.limiterFor(driverID).Allow() {
				_ = conn.writeJSON(outboundFrame{Type: "error", Code: apperr.WSCode(apperr.KindRateLimited), Message: "too many frames"})
				continue
			}
			select {
			case gpsQueue <- frame:
			default:
				select {
				case <-gpsQueue:
				default:
				}
				select {
				case gpsQueue <- frame:
				default:
				}
			}
		}
	}
}

func (s *Server) heartbeatLoop(conn *wsConn, lastPong chan struct{}, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.writeJSON(outboundFrame{Type: "ping", ServerTime: time.Now().UTC().Format(time.RFC3339)}); err != nil {
				_ = conn.Close()
				return
			}
			select {
			case <-lastPong:
			case <-time.After(pongTimeout):
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}
}

func (s *Server) forwardRouteUpdates(conn *wsConn, ch chan session.Event) {
	for evt := range ch {
		_ = conn.writeJSON(outboundFrame{
			Type:                 "route_updated",
			Reason:               evt.Reason,
			OptimizedStops:       evt.OptimizedStops,
			TotalDurationMinutes: evt.TotalDurationMinutes,
			GoogleMapsURL:        evt.GoogleMapsURL,
		})
	}
}

// drainQueues processes completion events first (never dropped) and
// falls back to the coalesced GPS queue, so a burst of position fixes
// cannot starve a stop completion.
func (s *Server) drainQueues(conn *wsConn, driverID string, gpsQueue, completionQueue chan inboundFrame, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case f := <-completionQueue:
			s.handleFrame(conn, driverID, f)
		default:
			select {
			case <-done:
				return
			case f := <-completionQueue:
				s.handleFrame(conn, driverID, f)
			case f := <-gpsQueue:
				s.handleFrame(conn, driverID, f)
			}
		}
	}
}

func (s *Server) handleFrame(conn *wsConn, driverID string, f inboundFrame) {
	at, err := parseISO8601UTC(f.Timestamp)
	if err != nil {
		_ = conn.writeJSON(outboundFrame{Type: "error", Code: apperr.WSCode(apperr.KindValidation), Message: "invalid GPS timestamp"})
		return
	}
	coord := model.Coordinate{Lat: f.Lat, Lng: f.Lng}
	res := s.Worker.ProcessEvent(context.Background(), driverID, coord, at, f.CompletedStopID)
	if res.Err != nil {
		kind := apperr.KindOf(res.Err)
		_ = conn.writeJSON(outboundFrame{Type: "error", Code: apperr.WSCode(kind), Message: res.Err.Error()})
	}
}
