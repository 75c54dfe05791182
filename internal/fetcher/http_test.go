package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/ohss-collector/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		DefaultRate: rate.Inf,
		Retry: &resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("state,arrests\nCA,120\n"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "state,arrests\nCA,120\n", string(body))
}

func TestFetch_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{DefaultRate: rate.Inf})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestFetch_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestFetch_NotFoundFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_TooManyRequestsSlowsHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	lim := rate.NewLimiter(1000, 1)

	f := newTestFetcher()
	f.limiters[u.Host] = lim

	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, rate.Limit(500), lim.Limit())
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.opts.MaxBodyBytes = 4
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "://bad")
	require.Error(t, err)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func slowServer(calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
}

func TestFetch_RetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := slowServer(&calls)
	defer srv.Close()

	f := newTestFetcher()
	f.client.Timeout = 50 * time.Millisecond

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "each attempt times out and is retried")
}

func TestFetch_CallerDeadlineStopsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := slowServer(&calls)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 30*time.Second, f.client.Timeout)
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, 3, f.retry.MaxAttempts)
	assert.Equal(t, time.Second, f.retry.InitialBackoff)
}

func TestNewHTTPFetcher_PinnedLimiter(t *testing.T) {
	lim := rate.NewLimiter(5, 5)
	f := NewHTTPFetcher(HTTPOptions{RateLimiters: map[string]*rate.Limiter{"ohss.dhs.gov": lim}})
	assert.Same(t, lim, f.limiterFor("ohss.dhs.gov"))
	assert.NotSame(t, lim, f.limiterFor("example.com"))
	assert.Same(t, f.limiterFor("example.com"), f.limiterFor("example.com"))
}
