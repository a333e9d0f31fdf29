package api

import (
	"errors"
	"testing"

	"github.com/okian/vitalcam/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped handler error", t, func() {
		err := WrapKind("api.start_session", ErrConflict, session.ErrSessionActive)

		Convey("Then it matches both the kind and the cause", func() {
			So(errors.Is(err, ErrConflict), ShouldBeTrue)
			So(errors.Is(err, session.ErrSessionActive), ShouldBeTrue)
			So(errors.Is(err, ErrBadRequest), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "api.start_session: conflict: session already in progress")
		})
	})

	Convey("Given a bare kind", t, func() {
		err := NewKind("api.push_frame", ErrBackpressure)

		Convey("Then it reads as op and kind", func() {
			So(errors.Is(err, ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.push_frame: backpressure")
		})
	})
}

func TestStartRequestValidate(t *testing.T) {
	Convey("Given start requests", t, func() {
		So(startRequest{}.validate(), ShouldBeNil)
		three, negative, zero := 3.0, -1.0, 0.0
		So(startRequest{DurationS: 10, CountdownS: &three, FrameRate: 30}.validate(), ShouldBeNil)
		So(startRequest{CountdownS: &negative}.validate(), ShouldNotBeNil)
		So(startRequest{CountdownS: &zero}.validate(), ShouldBeNil)
		So(startRequest{FrameRate: -5}.validate(), ShouldNotBeNil)
	})
}

func TestGetErrorType(t *testing.T) {
	Convey("Status codes map to error types", t, func() {
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(409), ShouldEqual, "conflict")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(503), ShouldEqual, "unavailable")
		So(getErrorType(200), ShouldEqual, "unknown")
	})
}
