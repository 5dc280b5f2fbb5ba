package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/batchsumm/orchestrator/internal/notifier"
)

// upgrader accepts any origin: this hub is an internal progress feed, not a
// browser-facing cross-origin API, mirroring how the teacher's local tooling
// endpoints skip origin checks.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hubMessage is the envelope clients send over the socket to join/leave a
// batch's event group or answer a heartbeat, per spec.md §4.4.
type hubMessage struct {
	Action  string `json:"action"`
	BatchID string `json:"batchId"`
}

// handleProgressHub implements GET /batchProgressHub: it upgrades the
// connection, registers it with the notifier bus, and pumps events to the
// client until either side closes. One goroutine reads control messages
// (join/leave/pong), one drains the bus and writes events.
func (s *Server) handleProgressHub(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subscriberID := uuid.NewString()
	events := s.bus.Connect(subscriberID)
	defer s.bus.Disconnect(subscriberID)

	done := make(chan struct{})
	go s.pumpReads(conn, subscriberID, done)
	s.pumpWrites(conn, events, done)
}

// pumpReads handles inbound control frames from the client until a read
// fails (the connection closed), then closes done so the writer stops.
func (s *Server) pumpReads(conn *websocket.Conn, subscriberID string, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg hubMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "join":
			s.bus.JoinBatchGroup(subscriberID, msg.BatchID)
		case "leave":
			s.bus.LeaveBatchGroup(subscriberID, msg.BatchID)
		case "pong":
			s.bus.Pong(subscriberID)
		case "requestProgress":
			snap, ok := s.scheduler.Progress(msg.BatchID)
			if ok {
				s.bus.RequestProgressUpdate(subscriberID, msg.BatchID, snap)
			}
		}
	}
}

// pumpWrites drains the subscriber's event channel to the websocket
// connection and sends periodic heartbeats, per spec.md §4.4's liveness
// policy.
func (s *Server) pumpWrites(conn *websocket.Conn, events <-chan notifier.Event, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
