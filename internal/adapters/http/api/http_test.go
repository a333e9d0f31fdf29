package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/vitalcam/internal/adapters/capture"
	"github.com/okian/vitalcam/internal/adapters/http/api"
	"github.com/okian/vitalcam/internal/domain/model"
	"github.com/okian/vitalcam/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

type mockSessions struct {
	mu       sync.Mutex
	startErr error
	requests []session.Request
	stops    int
	status   session.Status
}

func (m *mockSessions) Start(_ context.Context, req session.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.startErr != nil {
		return "", m.startErr
	}
	m.status = session.Status{SessionID: "sess-1", Phase: model.PhaseCountdown}
	return "sess-1", nil
}

func (m *mockSessions) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.status = session.Status{Phase: model.PhaseIdle}
}

func (m *mockSessions) Status() session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(sessions *mockSessions, feed api.FrameFeed, opts ...api.Option) (*api.Server, *http.ServeMux) {
	server := api.NewServer(sessions, feed, &mockStatsProvider{stats: map[string]interface{}{"report_queue": 0}}, opts...)
	mux := http.NewServeMux()
	server.Register(mux)
	return server, mux
}

func openStream(opener *capture.StreamOpener) *capture.Stream {
	src, err := opener.Open(context.Background(), session.OpenRequest{SessionID: "sess-1", FrameRate: 30})
	if err != nil {
		panic(err)
	}
	return src.(*capture.Stream)
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		_, mux := newMux(&mockSessions{}, capture.NewStreamOpener(4))

		Convey("Then the health endpoint serves metrics", func() {
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
			So(w.Body.String(), ShouldContainSubstring, "report_queue")
		})

		Convey("Then unknown routes are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then unsupported methods are not found", func() {
			So(do(mux, http.MethodPut, "/session", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/session/frames", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStartSession(t *testing.T) {
	Convey("Given an API server over an idle machine", t, func() {
		sessions := &mockSessions{}
		_, mux := newMux(sessions, capture.NewStreamOpener(4))

		Convey("When started with an empty body", func() {
			w := do(mux, http.MethodPost, "/session", "")

			Convey("Then the session is accepted with defaults", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"session_id":"sess-1"`)
				So(w.Body.String(), ShouldContainSubstring, `"phase":"countdown"`)
				So(sessions.requests, ShouldHaveLength, 1)
				So(sessions.requests[0], ShouldResemble, session.Request{})
			})
		})

		Convey("When started with explicit options", func() {
			w := do(mux, http.MethodPost, "/session", `{"source":"synthetic","duration_s":15,"countdown_s":0.5,"frame_rate":20}`)

			Convey("Then they are converted for the machine", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(sessions.requests[0], ShouldResemble, session.Request{
					Source:    "synthetic",
					Duration:  15 * time.Second,
					Countdown: 500 * time.Millisecond,
					FrameRate: 20,
				})
			})
		})

		Convey("When the countdown is explicitly zero", func() {
			w := do(mux, http.MethodPost, "/session", `{"countdown_s":0}`)

			Convey("Then the machine is asked to skip it", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(sessions.requests[0].Countdown, ShouldEqual, session.NoCountdown)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/session", `{not json`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
				So(sessions.requests, ShouldBeEmpty)
			})
		})

		Convey("When a value is negative", func() {
			w := do(mux, http.MethodPost, "/session", `{"duration_s":-1}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["message"], ShouldContainSubstring, "duration_s")
			})
		})
	})

	Convey("Given machine errors", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{session.ErrSessionActive, http.StatusConflict, "session_active"},
			{fmt.Errorf("%w: unknown source %q", session.ErrInvalidOptions, "lidar"), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("%w: camera: %w", session.ErrCaptureUnavailable, capture.ErrClosed), http.StatusServiceUnavailable, "capture_unavailable"},
			{session.ErrClosed, http.StatusServiceUnavailable, "shutting_down"},
			{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			Convey("Then "+tc.err.Error()+" maps to "+tc.code, func() {
				_, mux := newMux(&mockSessions{startErr: tc.err}, capture.NewStreamOpener(4))
				w := do(mux, http.MethodPost, "/session", `{}`)
				So(w.Code, ShouldEqual, tc.status)
				So(decodeError(w)["code"], ShouldEqual, tc.code)
			})
		}
	})
}

func TestStopAndStatus(t *testing.T) {
	Convey("Given an API server", t, func() {
		sessions := &mockSessions{}
		_, mux := newMux(sessions, capture.NewStreamOpener(4))

		Convey("When stopping with nothing active", func() {
			w := do(mux, http.MethodDelete, "/session", "")

			Convey("Then it succeeds as a no-op", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"idle"`)
			})
		})

		Convey("When a session is running", func() {
			So(do(mux, http.MethodPost, "/session", "").Code, ShouldEqual, http.StatusAccepted)

			Convey("Then status reports it", func() {
				w := do(mux, http.MethodGet, "/session", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"session_id":"sess-1"`)
				So(w.Body.String(), ShouldContainSubstring, `"phase":"countdown"`)
			})

			Convey("Then stopping twice is idempotent", func() {
				first := do(mux, http.MethodDelete, "/session", "")
				second := do(mux, http.MethodDelete, "/session", "")
				So(first.Code, ShouldEqual, http.StatusOK)
				So(first.Body.String(), ShouldContainSubstring, `"status":"stopped"`)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(sessions.stops, ShouldEqual, 2)
			})
		})
	})
}

func TestPushFrame(t *testing.T) {
	Convey("Given an API server with a camera opener", t, func() {
		opener := capture.NewStreamOpener(1)
		_, mux := newMux(&mockSessions{}, opener, api.WithPushTimeout(20*time.Millisecond))
		raw := strings.Repeat("\xc8\x3c\x32\xff", 4) // 2x2 red-dominant pixels

		Convey("When no stream is open", func() {
			w := do(mux, http.MethodPost, "/session/frames?width=2&height=2", raw)

			Convey("Then the upload conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w)["code"], ShouldEqual, "no_stream")
			})
		})

		Convey("When a stream is open", func() {
			stream := openStream(opener)

			Convey("Then a raw frame is accepted and delivered", func() {
				w := do(mux, http.MethodPost, "/session/frames?width=2&height=2", raw)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"pushed":1`)

				f := <-stream.Frames()
				So(f.Image.Rect.Dx(), ShouldEqual, 2)
				So(f.Image.Pix[0], ShouldEqual, 0xc8)
				So(f.At.IsZero(), ShouldBeFalse)
			})

			Convey("Then a framed payload without query parameters is accepted", func() {
				img := image.NewRGBA(image.Rect(0, 0, 3, 1))
				w := do(mux, http.MethodPost, "/session/frames", string(capture.EncodeFrame(img)))
				So(w.Code, ShouldEqual, http.StatusAccepted)
			})

			Convey("Then a size mismatch is a bad frame", func() {
				w := do(mux, http.MethodPost, "/session/frames?width=4&height=4", raw)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_frame")
			})

			Convey("Then a non-numeric size is a bad frame", func() {
				w := do(mux, http.MethodPost, "/session/frames?width=two&height=2", raw)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then a full buffer pushes back", func() {
				So(do(mux, http.MethodPost, "/session/frames?width=2&height=2", raw).Code, ShouldEqual, http.StatusAccepted)
				w := do(mux, http.MethodPost, "/session/frames?width=2&height=2", raw)
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "backpressure")
			})

			Convey("Then an ended stream conflicts", func() {
				stream.End()
				w := do(mux, http.MethodPost, "/session/frames?width=2&height=2", raw)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w)["code"], ShouldEqual, "stream_closed")
			})
		})
	})
}

func readEvent(conn *websocket.Conn) (map[string]interface{}, error) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]interface{}
	err := conn.ReadJSON(&ev)
	return ev, err
}

func TestEventsWebSocket(t *testing.T) {
	Convey("Given a running API server", t, func() {
		opener := capture.NewStreamOpener(4)
		server, mux := newMux(&mockSessions{status: session.Status{Phase: model.PhaseIdle}}, opener)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/events"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer func() { _ = conn.Close() }()

		first, err := readEvent(conn)
		So(err, ShouldBeNil)

		Convey("Then the client first receives the current progress", func() {
			So(first["type"], ShouldEqual, api.EventProgress)
			So(server.Hub().Len(), ShouldEqual, 1)
		})

		Convey("When an outcome is published", func() {
			server.Hub().PublishOutcome(model.Outcome{
				SessionID: "sess-1",
				Estimate:  &model.Estimate{BPM: 72, Method: model.MethodWebcam, Quality: model.QualityGood},
			})

			Convey("Then the client receives it", func() {
				ev, err := readEvent(conn)
				So(err, ShouldBeNil)
				So(ev["type"], ShouldEqual, api.EventOutcome)
				data := ev["data"].(map[string]interface{})
				So(data["session_id"], ShouldEqual, "sess-1")
				So(data["estimate"].(map[string]interface{})["bpm"], ShouldEqual, float64(72))
			})
		})

		Convey("When the client sends a malformed frame", func() {
			So(conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}), ShouldBeNil)

			Convey("Then it receives an error event", func() {
				ev, err := readEvent(conn)
				So(err, ShouldBeNil)
				So(ev["type"], ShouldEqual, api.EventError)
				So(ev["data"].(map[string]interface{})["code"], ShouldEqual, "bad_frame")
			})
		})

		Convey("When the client feeds the camera stream and disconnects", func() {
			stream := openStream(opener)
			img := image.NewRGBA(image.Rect(0, 0, 2, 2))
			So(conn.WriteMessage(websocket.BinaryMessage, capture.EncodeFrame(img)), ShouldBeNil)

			var got int
			select {
			case <-stream.Frames():
				got++
			case <-time.After(2 * time.Second):
			}
			So(got, ShouldEqual, 1)
			_ = conn.Close()

			Convey("Then the stream ends", func() {
				ended := false
				timeout := time.After(2 * time.Second)
			wait:
				for {
					select {
					case _, ok := <-stream.Frames():
						if !ok {
							ended = true
							break wait
						}
					case <-timeout:
						break wait
					}
				}
				So(ended, ShouldBeTrue)
			})
		})
	})
}
