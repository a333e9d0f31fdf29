package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/vitalcam/internal/domain/model"
)

// DefaultSubject is where readings are published when none is configured.
const DefaultSubject = "vitalcam.readings"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials a NATS server, reconnecting forever.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// NATSSink publishes readings as JSON on a subject.
type NATSSink struct {
	pub     Publisher
	subject string
}

// NewNATSSink creates a sink publishing on subject.
func NewNATSSink(pub Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject}
}

// Name implements worker.Sink.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the publish subject.
func (s *NATSSink) Subject() string { return s.subject }

// Deliver implements worker.Sink.
func (s *NATSSink) Deliver(ctx context.Context, r model.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(NewPayload(r))
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	return nil
}
