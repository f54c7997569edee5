package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-bikes/config"
)

// HTTPFetcher is the static backend: a synchronous GET per page with no
// rendering. An optional LRU cache short-circuits repeat fetches of the
// same URL within the process.
type HTTPFetcher struct {
	collector *colly.Collector
	cache     *lru.Cache[string, string]

	// The crawl is strictly sequential, but the collector handlers are
	// registered once and write into these fields, so Fetch serializes.
	mu       sync.Mutex
	lastBody string
	lastErr  error
}

// NewHTTPFetcher builds the static backend from the manifest's fetch
// options.
func NewHTTPFetcher(opts config.FetchOptions) (*HTTPFetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(opts.Timeout())
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &HTTPFetcher{collector: collector}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
		f.cache = cache
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusBadRequest {
			f.lastErr = Classify(nil, r.StatusCode)
			return
		}
		f.lastBody = string(r.Body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		f.lastErr = Classify(err, statusCode)
	})

	return f, nil
}

// WithTransport swaps the underlying transport; used by tests to
// install a mock.
func (f *HTTPFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch performs a blocking GET and returns the response body. A non-2xx
// status is an error, like any transport failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if f.cache != nil {
		if body, ok := f.cache.Get(pageURL); ok {
			slog.Debug("page cache hit", slog.String("url", pageURL))
			return body, nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastBody = ""
	f.lastErr = nil

	if err := f.collector.Visit(pageURL); err != nil {
		// OnError classified the failure with its status code; prefer
		// that over the bare error Visit echoes back.
		if f.lastErr != nil {
			return "", f.lastErr
		}
		return "", Classify(err, 0)
	}
	if f.lastErr != nil {
		return "", f.lastErr
	}

	if f.cache != nil {
		f.cache.Add(pageURL, f.lastBody)
	}
	return f.lastBody, nil
}

// Close is a no-op; the static backend holds no session state.
func (f *HTTPFetcher) Close() error {
	return nil
}
