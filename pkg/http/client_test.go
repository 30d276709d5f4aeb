package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientGetJSONRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("days") != "2" || r.Header.Get("x-api-key") != "k" {
			t.Errorf("unexpected request %s headers=%v", r.URL, r.Header)
		}
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/"), WithRetry(3, time.Millisecond), WithHeader("x-api-key", "k"))
	var out struct {
		Value int `json:"value"`
	}
	if err := c.GetJSON(context.Background(), "/chart", map[string][]string{"days": {"2"}}, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Value != 42 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("value=%d calls=%d", out.Value, calls)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(5, time.Millisecond))
	err := c.GetJSON(context.Background(), "/missing", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, calls=%d", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 502}, true},
		{&StatusError{StatusCode: 400}, false},
		{errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v)=%v want %v", tc.err, got, tc.want)
		}
	}
}

func TestClientHonoursRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(2, time.Millisecond), WithMaxRetryWait(20*time.Millisecond))
	start := time.Now()
	var out []int
	if err := c.GetJSON(context.Background(), "/coins/list", nil, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond || waited > time.Second {
		t.Fatalf("expected the capped Retry-After wait, waited %v", waited)
	}
}

func TestRetryAfterParsing(t *testing.T) {
	if got := retryAfter("3"); got != 3*time.Second {
		t.Fatalf("seconds: %v", got)
	}
	if got := retryAfter("soon"); got != 0 {
		t.Fatalf("garbage: %v", got)
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := retryAfter(future); got <= 0 || got > time.Hour {
		t.Fatalf("date: %v", got)
	}
}
