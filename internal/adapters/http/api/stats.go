package api

import (
	"net/http"
)

// StatsProvider reports service-level counters (sources, report pipeline).
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// streamStats describes the client-fed camera stream, if one is open.
type streamStats struct {
	Open         bool   `json:"open"`
	SessionID    string `json:"session_id,omitempty"`
	FramesPushed uint64 `json:"frames_pushed"`
}

// HandleStats handles GET /stats. The provider's counters are returned
// alongside the state of the client-fed camera stream.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := make(map[string]interface{})
	if s.stats != nil {
		for k, v := range s.stats.GetStats() {
			out[k] = v
		}
	}
	out["camera_stream"] = s.streamStats()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) streamStats() streamStats {
	if s.feed == nil {
		return streamStats{}
	}
	stream, ok := s.feed.Current()
	if !ok {
		return streamStats{}
	}
	return streamStats{Open: true, SessionID: stream.ID(), FramesPushed: stream.Pushed()}
}
