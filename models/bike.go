// Package models defines data structures for the crawler.
package models

import "time"

// Bike represents a single product record extracted from a catalog page.
// Price is a pointer so an unparseable or missing price serializes as
// JSON null rather than zero. Records are never deduplicated: the two
// extraction strategies may emit equivalent records for the same item.
type Bike struct {
	Name         string         `csv:"name" json:"name"`
	Price        *float64       `csv:"price" json:"price"`
	Availability string         `csv:"availability" json:"availability"`
	ImageURL     string         `csv:"image_url" json:"image_url"`
	DetailURL    string         `csv:"detail_url" json:"detail_url"`
	Specs        map[string]any `csv:"specs" json:"specs"`
}

// CrawlResult holds the overall result of one crawl run.
type CrawlResult struct {
	Bikes     []*Bike
	StartTime time.Time
	EndTime   time.Time
	PageCount int
	Extracted int
	Accepted  int
	Rejected  int
}
