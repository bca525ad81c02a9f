package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satindergrewal/cueline/internal/monitor"
	"github.com/satindergrewal/cueline/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// remotes are foot pedals and phones on the stage network
	CheckOrigin: func(*http.Request) bool { return true },
}

// RemoteMessage is sent to remote-control clients. Type is "result" for a
// command reply, or an SSE event name.
type RemoteMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Status  *session.Status `json:"status,omitempty"`
	Sample  *monitor.Sample `json:"sample,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// handleRemote accepts JSON commands over a WebSocket and streams the same
// events as /api/events back.
func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("remote upgrade failed", "error", err)
		return
	}
	log := s.logger.With("remote", conn.RemoteAddr().String())
	log.Info("remote connected")

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan RemoteMessage, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.remoteWritePump(ctx, conn, out)
	}()

	s.remoteReadPump(ctx, conn, out)
	cancel()
	<-done
	conn.Close()
	log.Info("remote disconnected")
}

func (s *Server) remoteReadPump(ctx context.Context, conn *websocket.Conn, out chan<- RemoteMessage) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("remote read error", "error", err)
			}
			return
		}

		reply := RemoteMessage{Type: "result"}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_, detail := classify(badJSON{err})
			reply.Error = &detail
		} else {
			reply.ID, reply.Command = cmd.ID, cmd.Command
			st, err := s.run(ctx, cmd)
			if err != nil {
				_, detail := classify(err)
				reply.Error = &detail
			} else {
				reply.Status = &st
			}
		}

		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) remoteWritePump(ctx context.Context, conn *websocket.Conn, out <-chan RemoteMessage) {
	ss := s.loop.Session()
	events := ss.Events().Subscribe()
	defer ss.Events().Unsubscribe(events)
	samples := ss.Samples().Subscribe()
	defer ss.Samples().Unsubscribe(samples)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	limiter := s.newLevelLimiter()
	progress := s.newProgressCoalescer()
	defer progress.Stop()

	write := func(msg RemoteMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("remote write error", "error", err)
			// unblock the reader
			conn.Close()
			return false
		}
		return true
	}

	if st, err := s.loop.Status(ctx); err == nil {
		if !write(RemoteMessage{Type: eventStatus, Status: &st}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-out:
			if !write(msg) {
				return
			}
		case ev := <-events.C:
			if ev, ok := progress.Offer(ev); ok && !write(RemoteMessage{Type: ev.Kind, Status: &ev.Status}) {
				return
			}
		case <-progress.C():
			if ev, ok := progress.Flush(); ok && !write(RemoteMessage{Type: ev.Kind, Status: &ev.Status}) {
				return
			}
		case sample := <-samples.C:
			if !limiter.Allow() {
				continue
			}
			if !write(RemoteMessage{Type: eventLoudness, Sample: &sample}) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
