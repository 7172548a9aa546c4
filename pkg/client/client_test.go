package client

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/draftpark/carharvest/internal/testutil"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, retry RetryConfig) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Retry = retry
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func TestNew_RequiresUserAgent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UserAgent = ""
	if _, err := New(cfg); err == nil {
		t.Error("New() with empty user-agent succeeded, want error")
	}
}

func TestClient_SendsIdentityHeaders(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotUA, gotOrigin, gotReferer, gotAccept string
	mock.SetHandler("/check", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotOrigin = r.Header.Get("Origin")
		gotReferer = r.Header.Get("Referer")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	c := newTestClient(t, fastRetry(1))
	if _, err := c.GetJSON(context.Background(), mock.URL()+"/check"); err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}

	want := DefaultConfig()
	if gotUA != want.UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, want.UserAgent)
	}
	if gotOrigin != want.Origin {
		t.Errorf("Origin = %q, want %q", gotOrigin, want.Origin)
	}
	if gotReferer != want.Referer {
		t.Errorf("Referer = %q, want %q", gotReferer, want.Referer)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	})

	c := newTestClient(t, fastRetry(3))
	body, err := c.GetJSON(context.Background(), mock.URL()+"/flaky")
	if err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("body = %q, want the final successful response", body)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler("/limited", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	c := newTestClient(t, fastRetry(3))
	if _, err := c.GetJSON(context.Background(), mock.URL()+"/limited"); err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestClient_ClientErrorsFailImmediately(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/gone", testutil.MockResponse{StatusCode: http.StatusNotFound})

	c := newTestClient(t, fastRetry(3))
	_, err := c.GetJSON(context.Background(), mock.URL()+"/gone")
	if err == nil {
		t.Fatal("GetJSON() on 404 succeeded, want error")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Class != ErrorClassClient || fe.StatusCode != http.StatusNotFound {
		t.Errorf("FetchError = class %q status %d, want client/404", fe.Class, fe.StatusCode)
	}
	if got := mock.GetPathCount("/gone"); got != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry on 4xx)", got)
	}
}

func TestClient_RetryExhaustion(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/down", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	c := newTestClient(t, fastRetry(3))
	_, err := c.GetJSON(context.Background(), mock.URL()+"/down")
	if err == nil {
		t.Fatal("GetJSON() on persistent 503 succeeded, want error")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if got := mock.GetPathCount("/down"); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

func TestClient_ContextCancelDuringBackoff(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/down", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	retry := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Minute,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
	}
	c := newTestClient(t, retry)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetJSON(ctx, mock.URL()+"/down")
	if err == nil {
		t.Fatal("GetJSON() succeeded, want error")
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("GetJSON() took %v, cancellation did not cut the backoff short", elapsed)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{429, ErrorClassRateLimit},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
	}
	for _, tt := range tests {
		if got := classify(tt.status); got != tt.want {
			t.Errorf("classify(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{"", false},
	}
	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestRetryConfigFor(t *testing.T) {
	base := DefaultRetryConfig()

	if got := retryConfigFor(ErrorClassRateLimit, base).InitialBackoff; got != 5*time.Second {
		t.Errorf("rate_limit initial backoff = %v, want 5s", got)
	}
	if got := retryConfigFor(ErrorClassNetwork, base).InitialBackoff; got != 2*time.Second {
		t.Errorf("network initial backoff = %v, want 2s", got)
	}
	if got := retryConfigFor(ErrorClassServer, base).InitialBackoff; got != base.InitialBackoff {
		t.Errorf("server initial backoff = %v, want %v", got, base.InitialBackoff)
	}

	// Scaling never pushes the initial backoff past the ceiling.
	small := RetryConfig{MaxAttempts: 3, InitialBackoff: 20 * time.Second, MaxBackoff: 30 * time.Second, BackoffMultiplier: 2}
	if got := retryConfigFor(ErrorClassRateLimit, small).InitialBackoff; got != 30*time.Second {
		t.Errorf("capped initial backoff = %v, want 30s", got)
	}
}
