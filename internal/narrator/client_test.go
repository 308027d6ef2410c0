package narrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "key-123"})

	data, err := client.FetchPayload(context.Background())
	if err != nil {
		t.Fatalf("FetchPayload failed: %v", err)
	}
	if string(data) != `{"events":[]}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestFetchPayloadNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	if _, err := client.FetchPayload(context.Background()); !errors.Is(err, ErrNoPayload) {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}

// A quiet upstream must not trip the breaker: an endless run of 204s keeps
// the circuit closed.
func TestFetchPayloadQuietUpstreamKeepsCircuitClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	for i := 0; i < 10; i++ {
		_, err := client.FetchPayload(context.Background())
		if errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("circuit opened after %d quiet fetches", i+1)
		}
		if !errors.Is(err, ErrNoPayload) {
			t.Fatalf("expected ErrNoPayload, got %v", err)
		}
	}
}

func TestFetchPayloadUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	_, err := client.FetchPayload(context.Background())
	if err == nil {
		t.Fatal("expected error for upstream 500")
	}
	if errors.Is(err, ErrNoPayload) || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected a plain upstream error, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})

	// The default breaker trips after 3 consecutive failures.
	for i := 0; i < 3; i++ {
		if _, err := client.FetchPayload(context.Background()); err == nil {
			t.Fatalf("expected failure on call %d", i+1)
		}
	}

	before := calls.Load()
	_, err := client.FetchPayload(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after trip, got %v", err)
	}
	if calls.Load() != before {
		t.Error("open circuit must not reach the upstream")
	}
}

func TestCircuitBreakerExecuteHonorsContext(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (any, error) {
		t.Error("fn must not run with a cancelled context")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:         1,
		Timeout:             50 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	})
	ctx := context.Background()

	boom := errors.New("boom")
	if _, err := cb.Execute(ctx, func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := cb.Execute(ctx, func() (any, error) { return "ok", nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	result, err := cb.Execute(ctx, func() (any, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if result != "ok" {
		t.Errorf("unexpected result %v", result)
	}
}
