// Package crawler drives the fetch/extract/validate cycle across
// paginated catalog pages.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-bikes/config"
	"github.com/aluiziolira/go-scrape-bikes/fetcher"
	"github.com/aluiziolira/go-scrape-bikes/models"
	"github.com/aluiziolira/go-scrape-bikes/parser"
	"github.com/aluiziolira/go-scrape-bikes/validator"
)

// Crawler walks page numbers in strictly increasing order, one page at
// a time, and accumulates the records that pass validation.
type Crawler struct {
	cfg       *config.Manifest
	fetcher   fetcher.Fetcher
	validator *validator.Validator
	base      *url.URL
	Metrics   *Metrics
}

// New builds a crawler for one run. A nil validator accepts every
// record.
func New(cfg *config.Manifest, f fetcher.Fetcher, v *validator.Validator) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Crawler{
		cfg:       cfg,
		fetcher:   f,
		validator: v,
		base:      base,
		Metrics:   NewMetrics(),
	}, nil
}

// Run executes the crawl and returns the accumulated records. The run
// ends on the first fetch failure, on an empty page, or once end_page
// is exceeded; a fetch failure is not an error from Run's perspective
// because it is indistinguishable from running past the last page.
// There are no retries: one failed page ends the whole run.
//
// Run owns the fetcher for the duration of the call and closes it on
// every exit path, so a browser session never outlives the run.
func (c *Crawler) Run(ctx context.Context) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if err := c.fetcher.Close(); err != nil {
			slog.Error("close fetcher", slog.Any("error", err))
		}
	}()

	result := &models.CrawlResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	page := c.cfg.StartPage
	for {
		pageURL := c.cfg.PageURL(page)

		start := time.Now()
		markup, err := c.fetcher.Fetch(ctx, pageURL)
		c.Metrics.ObserveFetchDuration(time.Since(start))
		if err != nil {
			c.Metrics.IncFetchError(fetcher.TypeLabel(err))
			slog.Error("fetch failed, ending run",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		c.Metrics.IncPage()
		result.PageCount++

		bikes, err := parser.ExtractBikes(markup, c.base)
		if err != nil {
			slog.Error("extraction failed, ending run",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		result.Extracted += len(bikes)
		c.Metrics.AddExtracted(len(bikes))

		for _, bike := range bikes {
			if c.validator.Accept(bike) {
				result.Bikes = append(result.Bikes, bike)
				result.Accepted++
				c.Metrics.IncAccepted()
			} else {
				result.Rejected++
				c.Metrics.IncRejected()
			}
		}

		slog.Info("page scraped",
			slog.Int("page", page),
			slog.Int("bikes", len(bikes)),
		)

		page++
		if c.cfg.EndPage > 0 && page > c.cfg.EndPage {
			break
		}
		// An empty page means the crawl ran past the last real page.
		if len(bikes) == 0 {
			break
		}
		if ctx.Err() != nil {
			slog.Info("run cancelled", slog.Int("next_page", page))
			break
		}
	}

	return result, nil
}
