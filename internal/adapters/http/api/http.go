// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/internal/domain/session"
	"github.com/okian/vitalcam/pkg/logger"
)

// SessionController is the part of the session machine the API drives.
type SessionController interface {
	Start(ctx context.Context, req session.Request) (string, error)
	Stop()
	Status() session.Status
}

// FrameFeed exposes the client-fed camera stream of the active session.
type FrameFeed interface {
	Current() (*capture.Stream, bool)
}

// Server wires HTTP routes for the measurement API.
type Server struct {
	sessions SessionController
	feed     FrameFeed

	healthHandler *HealthHandler
	stats         StatsProvider
	hub           *Hub
	upgrader      websocket.Upgrader
	logger        logger.Logger

	pushTimeout   time.Duration
	maxFrameBytes int64
}

// NewServer creates a new API server with all handlers.
func NewServer(sessions SessionController, feed FrameFeed, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		sessions:      sessions,
		feed:          feed,
		healthHandler: NewHealthHandler(),
		stats:         statsProvider,
		logger:        logger.Nop(),
		pushTimeout:   DefaultPushTimeout,
		maxFrameBytes: DefaultMaxFrameBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	return s
}

// Hub returns the event hub session handlers publish to.
func (s *Server) Hub() *Hub { return s.hub }

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.HandleStats, "stats"))
	mux.HandleFunc("/session/events", MetricsMiddleware(s.HandleEvents, "session_events"))
	mux.HandleFunc("/session/frames", MetricsMiddleware(s.HandlePushFrame, "session_frames"))
	mux.HandleFunc("/session", MetricsMiddleware(s.HandleSession, "session"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
