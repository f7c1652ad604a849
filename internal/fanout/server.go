package fanout

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wallsentry/wallsentry/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Server exposes the hub over HTTP: one websocket endpoint per tier
// plus a health check. The private/VIP endpoints sit behind the
// optional auth.Verifier; the public endpoint is never authenticated.
type Server struct {
	hub      *Hub
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	started  time.Time
}

// NewServer wires a Hub behind HTTP. verifier may be nil, in which
// case the private/VIP endpoints are left unauthenticated — see
// internal/auth.
func NewServer(hub *Hub, verifier *auth.Verifier) *Server {
	return &Server{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws/private", s.verifier.Require(s.handleTier(TierPrivate)))
	mux.Handle("/ws/vip", s.verifier.Require(s.handleTier(TierVIP)))
	mux.HandleFunc("/ws/public", s.handleTier(TierPublic))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// welcomeMessage is sent once, right after upgrade, per §6's fan-out
// wire contract.
type welcomeMessage struct {
	Type        string        `json:"type"`
	AccessLevel Tier          `json:"access_level"`
	RateLimit   int           `json:"rate_limit"`
	DataDelay   time.Duration `json:"data_delay"`
}

// updateEnvelope wraps every hot-pool delta pushed to a subscriber in
// the `hot_pool_update` shape §6 fixes: type, timestamp, payload,
// the tier it was filtered for, and an optional disclaimer (the
// public tier's delay is disclosed here rather than left implicit).
type updateEnvelope struct {
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Data        any       `json:"data"`
	AccessLevel Tier      `json:"access_level"`
	Disclaimer  string    `json:"disclaimer,omitempty"`
}

const tierRateLimit = 60 // messages/minute per subscriber, advertised in the welcome message; not enforced by this server

func (s *Server) handleTier(tier Tier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("⚠️  fanout: websocket upgrade failed: %v", err)
			return
		}
		sub := s.hub.Subscribe(tier)

		delay := time.Duration(0)
		if tier == TierPublic {
			delay = s.hub.publicDelay
		}
		welcome := welcomeMessage{Type: "welcome", AccessLevel: tier, RateLimit: tierRateLimit, DataDelay: delay}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(welcome); err != nil {
			s.hub.Unsubscribe(sub)
			conn.Close()
			return
		}

		s.serve(conn, sub)
	}
}

func (s *Server) serve(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.writeLoop(conn, sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.Receive():
			if !ok {
				return
			}
			envelope := updateEnvelope{Type: "hot_pool_update", Timestamp: time.Now().UTC(), Data: msg, AccessLevel: sub.Tier}
			if sub.Tier == TierPublic {
				envelope.Disclaimer = "delayed feed, diamond-category walls only"
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "healthy",
		"time":       time.Now().Format(time.RFC3339),
		"uptime_sec": time.Since(s.started).Seconds(),
	})
}
