// Package testutil provides in-memory HTTP fakes of the Trello and Google
// Sheets APIs for client and end-to-end sync tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// RecordedRequest stores information about a request made to a fake server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   []byte
}

// Fault makes matching requests fail with Status. Count is the number of
// requests to fail; a negative Count fails every matching request.
type Fault struct {
	Method     string // empty matches any method
	PathSuffix string // empty matches any path
	Status     int
	Count      int
}

// server is the shared base of the fakes: it records requests and applies
// injected faults before dispatching to the fake's router.
type server struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	faults   []*Fault
	route    func(w http.ResponseWriter, r *http.Request, body []byte)
}

func newServer(route func(w http.ResponseWriter, r *http.Request, body []byte)) *server {
	s := &server{route: route}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	})
	fault := s.matchFault(r)
	s.mu.Unlock()

	if fault != nil {
		writeJSON(w, fault.Status, map[string]string{"error": http.StatusText(fault.Status)})
		return
	}
	s.route(w, r, body)
}

// matchFault must be called with s.mu held.
func (s *server) matchFault(r *http.Request) *Fault {
	for _, f := range s.faults {
		if f.Count == 0 {
			continue
		}
		if f.Method != "" && f.Method != r.Method {
			continue
		}
		if f.PathSuffix != "" && !strings.HasSuffix(r.URL.Path, f.PathSuffix) {
			continue
		}
		if f.Count > 0 {
			f.Count--
		}
		return f
	}
	return nil
}

// URL returns the fake server URL.
func (s *server) URL() string {
	return s.Server.URL
}

// Close shuts down the fake server.
func (s *server) Close() {
	s.Server.Close()
}

// InjectFault adds a failure rule. Rules are checked in insertion order.
func (s *server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &f)
}

// ClearFaults removes every failure rule.
func (s *server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Requests returns all recorded requests.
func (s *server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many recorded requests match method and path suffix.
func (s *server) CountRequests(method, pathSuffix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if (method == "" || r.Method == method) && strings.HasSuffix(r.Path, pathSuffix) {
			n++
		}
	}
	return n
}

// ClearRequests clears all recorded requests.
func (s *server) ClearRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
