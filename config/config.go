// Package config loads and validates the crawl manifest.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported fetch backends.
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"
)

// PagePlaceholder is substituted with the current page number when the
// pagination template is applied.
const PagePlaceholder = "{page_num}"

// FetchOptions selects and tunes the fetch backend for a run.
type FetchOptions struct {
	Backend        string `json:"backend"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	BlockResources bool   `json:"block_resources"`
	SettleDelayMs  int    `json:"settle_delay_ms"`
	UserAgent      string `json:"user_agent"`
	CacheSize      int    `json:"cache_size"`
}

// Manifest describes one crawl run. It is immutable for the duration
// of the run.
type Manifest struct {
	BaseURL         string       `json:"base_url"`
	PaginationParam string       `json:"pagination_param"`
	StartPage       int          `json:"start_page"`
	EndPage         int          `json:"end_page"`
	Fetch           FetchOptions `json:"fetch"`
}

// DefaultManifest returns a manifest with conservative defaults; only
// BaseURL and PaginationParam have no usable default.
func DefaultManifest() *Manifest {
	return &Manifest{
		StartPage: 1,
		Fetch: FetchOptions{
			Backend:        BackendHTTP,
			TimeoutSeconds: 10,
			SettleDelayMs:  500,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			CacheSize:      128,
		},
	}
}

// Load reads a manifest JSON file and applies defaults for omitted
// fields. The result is not validated; call Validate before use.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := DefaultManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	m.BaseURL = strings.TrimRight(m.BaseURL, "/")
	if m.StartPage == 0 {
		m.StartPage = 1
	}
	def := DefaultManifest().Fetch
	if m.Fetch.Backend == "" {
		m.Fetch.Backend = def.Backend
	}
	if m.Fetch.TimeoutSeconds == 0 {
		m.Fetch.TimeoutSeconds = def.TimeoutSeconds
	}
	if m.Fetch.SettleDelayMs == 0 {
		m.Fetch.SettleDelayMs = def.SettleDelayMs
	}
	if m.Fetch.UserAgent == "" {
		m.Fetch.UserAgent = def.UserAgent
	}
}

// Validate ensures all manifest values are coherent.
func (m *Manifest) Validate() error {
	if m.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(m.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if m.StartPage <= 0 {
		return fmt.Errorf("start page must be positive")
	}
	if m.EndPage < 0 {
		return fmt.Errorf("end page cannot be negative")
	}
	if m.EndPage > 0 && m.EndPage < m.StartPage {
		return fmt.Errorf("end page (%d) cannot precede start page (%d)", m.EndPage, m.StartPage)
	}
	if m.Fetch.Backend != BackendHTTP && m.Fetch.Backend != BackendBrowser {
		return fmt.Errorf("fetch backend must be %q or %q", BackendHTTP, BackendBrowser)
	}
	if m.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if m.Fetch.SettleDelayMs < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if m.Fetch.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if m.Fetch.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	return nil
}

// Timeout returns the per-navigation timeout as a duration.
func (f FetchOptions) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// SettleDelay returns the post-load settle delay as a duration.
func (f FetchOptions) SettleDelay() time.Duration {
	return time.Duration(f.SettleDelayMs) * time.Millisecond
}

// PageURL builds the target URL for a page. The first page is the
// literal base URL; later pages append the pagination template with the
// page number substituted.
func (m *Manifest) PageURL(page int) string {
	if page == m.StartPage {
		return m.BaseURL
	}
	return m.BaseURL + strings.ReplaceAll(m.PaginationParam, PagePlaceholder, strconv.Itoa(page))
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
