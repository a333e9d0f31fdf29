package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/session"
	"github.com/okian/vitalcam/pkg/logger"
)

const maxStartBody = 1 << 16

// startRequest is the body of POST /session. Every field is optional.
// An explicit countdown_s of 0 skips the countdown; leaving it out takes
// the default.
type startRequest struct {
	Source     string   `json:"source"`
	DurationS  float64  `json:"duration_s"`
	CountdownS *float64 `json:"countdown_s"`
	FrameRate  int      `json:"frame_rate"`
}

func (s startRequest) validate() error {
	switch {
	case s.DurationS < 0:
		return errors.New("duration_s must not be negative")
	case s.CountdownS != nil && *s.CountdownS < 0:
		return errors.New("countdown_s must not be negative")
	case s.FrameRate < 0:
		return errors.New("frame_rate must not be negative")
	}
	return nil
}

func (s startRequest) toSession() session.Request {
	req := session.Request{
		Source:    s.Source,
		Duration:  time.Duration(s.DurationS * float64(time.Second)),
		FrameRate: s.FrameRate,
	}
	if s.CountdownS != nil {
		req.Countdown = time.Duration(*s.CountdownS * float64(time.Second))
		if req.Countdown <= 0 {
			req.Countdown = session.NoCountdown
		}
	}
	return req
}

type startResponse struct {
	SessionID string      `json:"session_id"`
	Phase     model.Phase `json:"phase"`
}

type stopResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// HandleSession serves POST, GET and DELETE /session.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStart(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sessions.Status())
	case http.MethodDelete:
		s.handleStop(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	var req startRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxStartBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := s.sessions.Start(r.Context(), req.toSession())
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionActive):
		writeError(w, http.StatusConflict, "session_active", WrapKind(op, ErrConflict, err))
		return
	case errors.Is(err, session.ErrInvalidOptions):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, session.ErrCaptureUnavailable):
		writeError(w, http.StatusServiceUnavailable, "capture_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", WrapKind(op, ErrUnavailable, err))
		return
	default:
		s.logger.Error(r.Context(), "session start failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{SessionID: id, Phase: model.PhaseCountdown})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Status()
	s.sessions.Stop()
	if st.SessionID == "" {
		writeJSON(w, http.StatusOK, stopResponse{Status: "idle"})
		return
	}
	s.logger.Info(r.Context(), "session stopped by client", logger.String("session_id", st.SessionID))
	s.hub.Broadcast(Event{Type: EventStopped, Timestamp: time.Now(), Data: stopResponse{Status: "stopped", SessionID: st.SessionID}})
	writeJSON(w, http.StatusOK, stopResponse{Status: "stopped", SessionID: st.SessionID})
}
