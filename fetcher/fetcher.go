// Package fetcher retrieves raw page markup for the crawler.
//
// Two backends implement the same contract: a plain synchronous HTTP
// client and a headless browser session for pages that only render
// their catalog client-side. The pagination logic upstream is
// backend-agnostic; it only sees "markup or error".
package fetcher

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-bikes/config"
)

// Fetcher abstracts page fetching strategies. Any fetch error is
// treated upstream as "no markup"; the crawler does not distinguish
// network failure from running past the last page.
type Fetcher interface {
	// Fetch retrieves the markup for a URL.
	Fetch(ctx context.Context, url string) (string, error)

	// Close releases backend resources (browser session, if any).
	// It is safe to call more than once.
	Close() error
}

// New selects a backend from the manifest's fetch options. An unknown
// backend is a configuration error, raised here rather than mid-run.
func New(opts config.FetchOptions) (Fetcher, error) {
	switch opts.Backend {
	case config.BackendHTTP:
		return NewHTTPFetcher(opts)
	case config.BackendBrowser:
		return NewBrowserFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unsupported fetch backend %q", opts.Backend)
	}
}
