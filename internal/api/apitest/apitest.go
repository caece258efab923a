// Package apitest runs a fake Coretex API server for tests.
//
// Handlers are registered per endpoint with chi patterns relative to the
// api/v1 root, and every request is recorded so tests can assert on what
// the client sent:
//
//	srv := apitest.New(t)
//	srv.Handle(http.MethodGet, "dataset/{id}", func(w http.ResponseWriter, r *http.Request) {
//		apitest.JSON(w, http.StatusOK, map[string]any{"id": 1})
//	})
//	client := srv.Client()
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/biomech/coretex/internal/api"
)

// Prefix is the API root path.
const Prefix = "/api/v1/"

// Request is a recorded request.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Header   http.Header
	Body     []byte
}

// Server is a fake API server.
type Server struct {
	*httptest.Server
	Router chi.Router

	mu       sync.Mutex
	requests []Request
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{}
	r := chi.NewRouter()
	r.Use(s.record)
	s.Router = r
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method and endpoint (without the api/v1 prefix).
func (s *Server) Handle(method, endpoint string, h http.HandlerFunc) {
	s.Router.Method(method, Prefix+endpoint, h)
}

// Client returns an api.Client pointed at the server.
func (s *Server) Client(opts ...api.Option) *api.Client {
	return api.New(s.URL+"/", opts...)
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit method and endpoint.
func (s *Server) Count(method, endpoint string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Endpoint: strings.TrimPrefix(r.URL.Path, Prefix),
			Query:    r.URL.Query(),
			Header:   r.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status returns a handler that only writes status.
func Status(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

// Sequence returns a handler that answers with the given handlers in
// order, repeating the last one once exhausted.
func Sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handlers[min(i, len(handlers)-1)]
		i++
		mu.Unlock()
		h(w, r)
	}
}
