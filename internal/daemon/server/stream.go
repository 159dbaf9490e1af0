package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bmad-tools/dash/pkg/models"
	"github.com/gorilla/websocket"
)

// handleEvents provides Server-Sent Events for real-time status updates.
// Each connection gets a connected event with its session ID, the current
// snapshots, then live updates and periodic heartbeats.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	id, ch := s.store.Subscribe()
	defer s.store.Unsubscribe(id)

	// Reconnect hint for EventSource clients.
	fmt.Fprintf(w, "retry: %d\n\n", s.cfg.Server.RetryTimeout.Milliseconds())

	writeSSE := func(ev models.Event) {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal event")
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}

	writeSSE(models.Event{Type: models.EventConnected, Data: map[string]string{"sessionId": id}})
	s.logger.WithField("subscriber", id).Debug("SSE client connected")

	// Current snapshots so the client has data before the first change.
	snap := s.store.Get()
	if snap.Workflow != nil {
		writeSSE(models.Event{Type: models.EventWorkflowUpdate, Data: snap.Workflow})
	}
	if snap.Sprint != nil {
		writeSSE(models.Event{Type: models.EventSprintUpdate, Data: snap.Sprint})
	}
	if snap.Claude != nil {
		writeSSE(models.Event{Type: models.EventClaudeStatus, Data: snap.Claude})
	}

	heartbeat := time.NewTicker(s.cfg.Server.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.WithField("subscriber", id).Debug("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(ev)
		case <-heartbeat.C:
			writeSSE(models.Event{
				Type: models.EventHeartbeat,
				Data: map[string]interface{}{"timestamp": time.Now().Unix()},
			})
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds to localhost; cross-origin browser pages may still
	// connect to it deliberately.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the WebSocket wire format, mirroring the SSE event layout.
type wsFrame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// handleWebSocket serves the same event stream over a WebSocket for clients
// that need bidirectional framing or run where EventSource is unavailable.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	id, ch := s.store.Subscribe()
	defer s.store.Unsubscribe(id)
	s.logger.WithField("subscriber", id).Debug("WebSocket client connected")

	write := func(frame wsFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(frame)
	}

	if err := write(wsFrame{Type: string(models.EventConnected), SessionID: id}); err != nil {
		return
	}
	snap := s.store.Get()
	if snap.Workflow != nil {
		_ = write(wsFrame{Type: string(models.EventWorkflowUpdate), Data: snap.Workflow})
	}
	if snap.Sprint != nil {
		_ = write(wsFrame{Type: string(models.EventSprintUpdate), Data: snap.Sprint})
	}
	if snap.Claude != nil {
		_ = write(wsFrame{Type: string(models.EventClaudeStatus), Data: snap.Claude})
	}

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to notice close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.cfg.Server.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			s.logger.WithField("subscriber", id).Debug("WebSocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := write(wsFrame{Type: string(ev.Type), Data: ev.Data}); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := write(wsFrame{Type: string(models.EventHeartbeat), Data: map[string]interface{}{"timestamp": time.Now().Unix()}}); err != nil {
				return
			}
		}
	}
}
