// Package testutil provides testing utilities for the harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the paginated listing API for testing.
// Paths are matched exactly against the request URL path.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	PathCounts   map[string]int
}

// NewMockAPI creates a new mock listing API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to a specific path.
func (m *MockAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// SetPage configures a search page at pagePath whose items have the given
// attribute maps and whose links.next points at nextPath (empty string for
// the terminal page). Paths are resolved against the mock server URL.
func (m *MockAPI) SetPage(pagePath string, items []map[string]any, nextPath string, currentPage, totalPages int) {
	next := ""
	if nextPath != "" {
		next = m.URL() + nextPath
	}

	data := make([]map[string]any, 0, len(items))
	for _, attrs := range items {
		data = append(data, map[string]any{"attributes": attrs})
	}

	body, err := json.Marshal(map[string]any{
		"links": map[string]any{
			"self":  m.URL() + pagePath,
			"first": "",
			"next":  next,
			"prev":  "",
			"last":  "",
		},
		"data": data,
		"meta": map[string]any{
			"currentPage": currentPage,
			"totalPages":  totalPages,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal page: %v", err))
	}

	m.SetResponse(pagePath, MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}

// SetSpecs configures a detail endpoint at specPath returning the given
// specs payload as the first element of the data array.
func (m *MockAPI) SetSpecs(specPath string, specs any) {
	body, err := json.Marshal(map[string]any{
		"data": []any{specs},
	})
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal specs: %v", err))
	}
	m.SetResponse(specPath, MockResponse{StatusCode: http.StatusOK, Body: string(body)})
}
