package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/pkg/logger"
)

type eventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleEvents upgrades GET /session/events to a WebSocket. The server
// pushes progress, outcome and stopped events as JSON text messages;
// the client may send binary frames for the active camera stream. When
// a client that fed the stream disconnects, the stream ends and the
// session fails with capture lost.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := s.hub.add(conn)
	s.hub.send(c, Event{Type: EventProgress, Timestamp: time.Now(), Data: s.sessions.Status().Progress})
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	var fed *capture.Stream
	defer func() {
		s.hub.remove(c)
		if fed != nil {
			fed.End()
		}
	}()

	c.conn.SetReadLimit(s.maxFrameBytes)
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug(context.Background(), "websocket closed", logger.Error(err))
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		img, err := capture.DecodeFrame(data)
		if err != nil {
			s.hub.send(c, errorEvent("bad_frame", err))
			continue
		}
		stream, ok := s.feed.Current()
		if !ok {
			s.hub.send(c, errorEvent("no_stream", capture.ErrNoStream))
			continue
		}
		if err := s.push(context.Background(), stream, img); err != nil {
			_, code := pushStatus(err)
			s.hub.send(c, errorEvent(code, err))
			continue
		}
		fed = stream
	}
}

func errorEvent(code string, err error) Event {
	return Event{Type: EventError, Timestamp: time.Now(), Data: eventError{Code: code, Message: err.Error()}}
}
