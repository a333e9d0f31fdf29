package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/vitalcam/internal/domain/model"
)

// HeartRatePath is appended to the base URL of the receiving API.
const HeartRatePath = "/api/camera/hr"

const defaultHTTPTimeout = 5 * time.Second

// HTTPSink posts readings as JSON.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	header   http.Header
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSink) {
		if key != "" {
			s.header.Set(key, value)
		}
	}
}

// NewHTTPSink creates a sink posting to baseURL + HeartRatePath.
func NewHTTPSink(baseURL string, opts ...HTTPOption) (*HTTPSink, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: report url %q", ErrConfig, baseURL)
	}
	s := &HTTPSink{
		endpoint: u.String() + HeartRatePath,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		header:   http.Header{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements worker.Sink.
func (s *HTTPSink) Name() string { return "http" }

// Endpoint returns the full URL readings are posted to.
func (s *HTTPSink) Endpoint() string { return s.endpoint }

// Deliver implements worker.Sink.
func (s *HTTPSink) Deliver(ctx context.Context, r model.Reading) error {
	body, err := json.Marshal(NewPayload(r))
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.header {
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post reading: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}
	return nil
}
