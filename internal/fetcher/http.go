package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/ohss-collector/internal/resilience"
)

// Fetcher downloads a whole document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// DefaultUserAgent identifies the collector to the portal.
const DefaultUserAgent = "ICE Activities Tracker (Research/Monitoring Project)"

const defaultMaxBody = 256 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// RateLimiters pins limiters for specific hosts. Other hosts get a
	// limiter at DefaultRate created on first use.
	RateLimiters map[string]*rate.Limiter
	DefaultRate  rate.Limit

	// Retry overrides the backoff policy derived from MaxRetries.
	Retry *resilience.RetryConfig

	MaxBodyBytes int64
}

// HTTPFetcher implements Fetcher with per-host rate limiting and bounded
// exponential backoff around every request.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	retry  resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 2
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}

	retry := resilience.FetchRetryConfig(opts.MaxRetries)
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		retry:    retry,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.DefaultRate, 1)
		f.limiters[host] = lim
	}
	return lim
}

// slowDown halves a host's rate after a 429, never below one request per 10s.
func (f *HTTPFetcher) slowDown(host string, lim *rate.Limiter) {
	next := lim.Limit() / 2
	if next < 0.1 {
		next = 0.1
	}
	lim.SetLimit(next)
	zap.L().Warn("fetcher: rate limited, reducing request rate",
		zap.String("host", host),
		zap.Float64("new_rate", float64(next)),
	)
}

// Fetch GETs rawURL and returns the body. Transient failures are retried per
// the configured policy; any other non-2xx status fails immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}

	cfg := f.retry
	cfg.OnRetry = resilience.RetryLogger("fetch", rawURL)

	body, err := resilience.Do(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return f.fetchOnce(ctx, u)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, u *url.URL) ([]byte, error) {
	lim := f.limiterFor(u.Host)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode == http.StatusTooManyRequests {
			f.slowDown(u.Host, lim)
		}
		return nil, &resilience.StatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, eris.Errorf("response from %s exceeds %d bytes", u.String(), f.opts.MaxBodyBytes)
	}
	return body, nil
}
