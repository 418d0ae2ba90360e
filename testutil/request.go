package testutil

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/c360/dataprocessor/request"
)

// MockRequest is an in-memory request.Request. The zero value answers with an
// empty body and StatusFileSuccess.
type MockRequest struct {
	// Body is returned by InputStream.
	Body string
	// Err makes InputStream fail after setting Code and Message.
	Err error
	// Code and Message become the status once InputStream runs.
	Code    int
	Message string
	// Cache and Rewrite are reported as the cache-file settings.
	Cache   string
	Rewrite bool
	// Gate, when set, holds InputStream until it is closed or ctx ends.
	Gate chan struct{}
	// CloseErr is returned by Close.
	CloseErr error

	mu           sync.Mutex
	opened       int
	closed       int
	started      time.Time
	executed     bool
	streamClosed bool
}

// NewMockRequest returns a request answering with body.
func NewMockRequest(body string) *MockRequest {
	return &MockRequest{Body: body, Code: request.StatusFileSuccess, Message: "OK"}
}

// InputStream records the call and returns Body or Err.
func (m *MockRequest) InputStream(ctx context.Context) (io.ReadCloser, error) {
	m.mu.Lock()
	m.opened++
	m.started = time.Now()
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			m.finish()
			return nil, ctx.Err()
		}
	}

	m.finish()
	if m.Err != nil {
		return nil, m.Err
	}
	return &mockStream{Reader: strings.NewReader(m.Body), owner: m}, nil
}

func (m *MockRequest) finish() {
	m.mu.Lock()
	m.executed = true
	m.mu.Unlock()
}

// StatusCode is request.StatusError until InputStream runs, then Code.
func (m *MockRequest) StatusCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.executed {
		return request.StatusError
	}
	return m.Code
}

// StatusMessage is empty until InputStream runs, then Message.
func (m *MockRequest) StatusMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.executed {
		return ""
	}
	return m.Message
}

func (m *MockRequest) CacheFile() string      { return m.Cache }
func (m *MockRequest) RewriteCacheFile() bool { return m.Rewrite }

// StartTime is the time of the last InputStream call.
func (m *MockRequest) StartTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Close counts calls and returns CloseErr.
func (m *MockRequest) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return m.CloseErr
}

// Opened returns how many times InputStream was called.
func (m *MockRequest) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Closed returns how many times Close was called.
func (m *MockRequest) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// StreamClosed reports whether the last stream handed out was closed.
func (m *MockRequest) StreamClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamClosed
}

func (m *MockRequest) String() string { return "mock:" + m.Body }

type mockStream struct {
	*strings.Reader
	owner *MockRequest
}

func (s *mockStream) Close() error {
	s.owner.mu.Lock()
	s.owner.streamClosed = true
	s.owner.mu.Unlock()
	return nil
}
