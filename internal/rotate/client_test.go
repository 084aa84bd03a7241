package rotate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func classifyByHeader(status int, body []byte) Verdict {
	switch status {
	case http.StatusOK:
		return VerdictOK
	case http.StatusTooManyRequests:
		return VerdictThrottled
	case http.StatusUnauthorized, http.StatusForbidden:
		return VerdictExhausted
	default:
		return VerdictFatal
	}
}

func newTestClient(pool *Pool, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(pool, srv.Client(), classifyByHeader, "[test]")
	c.throttleWait = time.Millisecond
	c.sleep = func(ctx context.Context, d time.Duration) bool { return true }
	return c, srv
}

func buildWithKey(url string) Request {
	return Request{Build: func(ctx context.Context, key string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", key)
		return req, nil
	}}
}

func TestClient_RotatesPastExhaustedKeys(t *testing.T) {
	pool := NewPool([]string{"k1", "k2", "k3"})

	var calls int32
	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("X-Api-Key") == "k3" {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	body, err := c.Do(context.Background(), buildWithKey(srv.URL))
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if !strings.Contains(string(body), "ok") {
		t.Fatalf("unexpected body: %s", body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls (k1, k2 exhausted, k3 ok), got %d", got)
	}

	// Subsequent calls must skip the exhausted keys without re-trying them.
	atomic.StoreInt32(&calls, 0)
	if _, err := c.Do(context.Background(), buildWithKey(srv.URL)); err != nil {
		t.Fatalf("second Do error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exhausted keys to be skipped, got %d calls", got)
	}
	if pool.Remaining() != 1 {
		t.Fatalf("expected 1 usable key, got %d", pool.Remaining())
	}
}

func TestClient_RetriesSameKeyOnThrottle(t *testing.T) {
	pool := NewPool([]string{"only"})

	var calls int32
	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("fine"))
	})
	defer srv.Close()

	body, err := c.Do(context.Background(), buildWithKey(srv.URL))
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	if string(body) != "fine" {
		t.Fatalf("unexpected body: %s", body)
	}
	if pool.Remaining() != 1 {
		t.Fatalf("throttle retries must not exhaust the key")
	}
}

func TestClient_ThrottledKeyStaysUsableForNextCall(t *testing.T) {
	pool := NewPool([]string{"k1", "k2"})

	var k1Throttled atomic.Bool
	k1Throttled.Store(true)
	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "k1" && k1Throttled.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("fine"))
	})
	defer srv.Close()

	// k1 throttles through the retry ceiling; the call rotates to k2 and
	// succeeds without marking k1 dead for the cycle.
	body, err := c.Do(context.Background(), buildWithKey(srv.URL))
	if err != nil || string(body) != "fine" {
		t.Fatalf("expected rotation to k2, got body=%q err=%v", body, err)
	}
	if pool.Remaining() != 2 {
		t.Fatalf("transient throttling must not exhaust a key, remaining=%d", pool.Remaining())
	}

	// Once the throttle clears, k1 serves again even with k2 gone.
	k1Throttled.Store(false)
	pool.MarkExhausted(1)
	body, err = c.Do(context.Background(), buildWithKey(srv.URL))
	if err != nil || string(body) != "fine" {
		t.Fatalf("previously throttled key must serve again, got body=%q err=%v", body, err)
	}
}

func TestClient_AllKeysThrottled(t *testing.T) {
	pool := NewPool([]string{"k1", "k2"})

	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	if _, err := c.Do(context.Background(), buildWithKey(srv.URL)); err != ErrAllKeysThrottled {
		t.Fatalf("expected ErrAllKeysThrottled, got %v", err)
	}
	if pool.Remaining() != 2 {
		t.Fatalf("a throttled call must leave the pool intact, remaining=%d", pool.Remaining())
	}
}

func TestClient_AllKeysExhausted(t *testing.T) {
	pool := NewPool([]string{"k1", "k2"})

	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer srv.Close()

	_, err := c.Do(context.Background(), buildWithKey(srv.URL))
	if err != ErrAllKeysExhausted {
		t.Fatalf("expected ErrAllKeysExhausted, got %v", err)
	}
	if pool.Remaining() != 0 {
		t.Fatalf("expected empty pool, got %d", pool.Remaining())
	}
}

func TestClient_FatalStopsImmediately(t *testing.T) {
	pool := NewPool([]string{"k1", "k2"})

	var calls int32
	c, srv := newTestClient(pool, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})
	defer srv.Close()

	if _, err := c.Do(context.Background(), buildWithKey(srv.URL)); err == nil {
		t.Fatalf("expected fatal error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fatal verdict must not rotate, got %d calls", got)
	}
}

func TestPool_ResetCycle(t *testing.T) {
	pool := NewPool([]string{"a", "b"})
	pool.MarkExhausted(0)
	pool.MarkExhausted(1)
	if _, _, ok := pool.Next(); ok {
		t.Fatalf("expected exhausted pool")
	}

	pool.ResetCycle()
	key, _, ok := pool.Next()
	if !ok || key == "" {
		t.Fatalf("expected pool to be usable after reset")
	}
}
