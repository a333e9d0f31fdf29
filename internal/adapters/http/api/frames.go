package api

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/pkg/metrics"
)

type pushResponse struct {
	Status string `json:"status"`
	Pushed uint64 `json:"pushed"`
}

// HandlePushFrame handles POST /session/frames. The body is raw RGBA
// bytes sized by the width and height query parameters, or a framed
// payload carrying its own header when they are absent.
func (s *Server) HandlePushFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.push_frame"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	stream, ok := s.feed.Current()
	if !ok {
		metrics.RecordFrameDropped()
		writeError(w, http.StatusConflict, "no_stream", WrapKind(op, ErrConflict, capture.ErrNoStream))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxFrameBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_frame", WrapKind(op, ErrBadRequest, err))
		return
	}
	img, err := decodeUpload(r.URL.Query(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_frame", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.push(r.Context(), stream, img); err != nil {
		status, code := pushStatus(err)
		writeError(w, status, code, WrapKind(op, pushKind(err), err))
		return
	}
	writeJSON(w, http.StatusAccepted, pushResponse{Status: "accepted", Pushed: stream.Pushed()})
}

func decodeUpload(q url.Values, body []byte) (*image.RGBA, error) {
	ws, hs := q.Get("width"), q.Get("height")
	if ws == "" && hs == "" {
		return capture.DecodeFrame(body)
	}
	width, err := strconv.Atoi(ws)
	if err != nil {
		return nil, fmt.Errorf("%w: width %q", capture.ErrBadFrame, ws)
	}
	height, err := strconv.Atoi(hs)
	if err != nil {
		return nil, fmt.Errorf("%w: height %q", capture.ErrBadFrame, hs)
	}
	return capture.FromRaw(width, height, body)
}

// push stamps the frame on arrival and hands it to stream.
func (s *Server) push(ctx context.Context, stream *capture.Stream, img *image.RGBA) error {
	ctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()
	err := stream.Push(ctx, model.Frame{Image: img, At: time.Now()})
	if err != nil {
		metrics.RecordFrameDropped()
	}
	return err
}

func pushStatus(err error) (int, string) {
	switch {
	case errors.Is(err, capture.ErrClosed):
		return http.StatusConflict, "stream_closed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusServiceUnavailable, "unavailable"
	}
}

func pushKind(err error) error {
	switch {
	case errors.Is(err, capture.ErrClosed):
		return ErrConflict
	case errors.Is(err, context.DeadlineExceeded):
		return ErrBackpressure
	default:
		return ErrUnavailable
	}
}
