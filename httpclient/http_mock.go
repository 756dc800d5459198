package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// MockTransport is an http.RoundTripper for tests: responses are recorded per
// "METHOD /path" and every request that passes through is remembered.
type MockTransport struct {
	mu        sync.Mutex
	responses map[string]stubbed
	requests  []*http.Request
}

type stubbed struct {
	status int
	body   []byte
	header http.Header
	err    error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{responses: map[string]stubbed{}}
}

// NewMockClient returns a client backed by a fresh MockTransport.
func NewMockClient() (*http.Client, *MockTransport) {
	m := NewMockTransport()
	return &http.Client{Transport: m}, m
}

func (m *MockTransport) Stub(method, path string, status int, body string) {
	m.StubWithHeader(method, path, status, body, nil)
}

func (m *MockTransport) StubWithHeader(method, path string, status int, body string, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+" "+path] = stubbed{status: status, body: []byte(body), header: header}
}

func (m *MockTransport) StubError(method, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+" "+path] = stubbed{err: err}
}

// Requests returns the requests seen so far, in order.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	s, ok := m.responses[req.Method+" "+req.URL.Path]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no stub for %s %s", req.Method, req.URL.Path)
	}
	if s.err != nil {
		return nil, s.err
	}

	header := s.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: s.status,
		Status:     http.StatusText(s.status),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
		Request:    req,
	}, nil
}
