package crawler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-bikes/config"
	"github.com/aluiziolira/go-scrape-bikes/fetcher"
	"github.com/aluiziolira/go-scrape-bikes/models"
	"github.com/aluiziolira/go-scrape-bikes/pipeline"
	"github.com/aluiziolira/go-scrape-bikes/validator"
)

const bikeAPage = `<html><head>
<script type="application/ld+json">
{"@type": "Product", "name": "Bike A", "url": "https://example.test/bikes/a",
 "offers": {"price": "1000", "availability": "InStock"}}
</script>
</head><body></body></html>`

const emptyPage = `<html><body><p>no bikes here</p></body></html>`

// stubFetcher serves canned markup per URL; unknown URLs fail like a
// network error would.
type stubFetcher struct {
	pages  map[string]string
	calls  []string
	closed int
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	s.calls = append(s.calls, url)
	body, ok := s.pages[url]
	if !ok {
		return "", errors.New("no such page")
	}
	return body, nil
}

func (s *stubFetcher) Close() error {
	s.closed++
	return nil
}

func testManifest() *config.Manifest {
	m := config.DefaultManifest()
	m.BaseURL = "https://example.test/catalog"
	m.PaginationParam = "?page={page_num}"
	return m
}

func TestRunRespectsEndPage(t *testing.T) {
	cfg := testManifest()
	cfg.EndPage = 1

	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog":        bikeAPage,
		"https://example.test/catalog?page=2": bikeAPage,
	}}

	c, err := New(cfg, f, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(f.calls) != 1 {
		t.Fatalf("fetch calls = %d, want exactly 1 with end_page=1", len(f.calls))
	}
	if len(result.Bikes) != 1 {
		t.Fatalf("bikes = %d, want 1", len(result.Bikes))
	}
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	cfg := testManifest()

	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog":        bikeAPage,
		"https://example.test/catalog?page=2": emptyPage,
		"https://example.test/catalog?page=3": bikeAPage,
	}}

	c, err := New(cfg, f, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(f.calls) != 2 {
		t.Fatalf("fetch calls = %d, want 2 (empty page ends the run)", len(f.calls))
	}
	if len(result.Bikes) != 1 {
		t.Fatalf("bikes = %d, want 1", len(result.Bikes))
	}
	if result.PageCount != 2 {
		t.Fatalf("page count = %d, want 2", result.PageCount)
	}
}

func TestRunStopsOnFetchFailure(t *testing.T) {
	cfg := testManifest()

	// Page 3 is missing: indistinguishable from pagination overrun.
	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog":        bikeAPage,
		"https://example.test/catalog?page=2": bikeAPage,
	}}

	c, err := New(cfg, f, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("fetch failure must not surface as a run error, got %v", err)
	}

	if len(f.calls) != 3 {
		t.Fatalf("fetch calls = %d, want 3", len(f.calls))
	}
	if len(result.Bikes) != 2 {
		t.Fatalf("bikes = %d, want 2 accumulated before the failure", len(result.Bikes))
	}
}

func TestRunBuildsFirstPageFromLiteralBaseURL(t *testing.T) {
	cfg := testManifest()
	cfg.StartPage = 2
	cfg.EndPage = 3

	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog":        bikeAPage,
		"https://example.test/catalog?page=3": bikeAPage,
	}}

	c, err := New(cfg, f, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"https://example.test/catalog", "https://example.test/catalog?page=3"}
	if len(f.calls) != len(want) || f.calls[0] != want[0] || f.calls[1] != want[1] {
		t.Fatalf("fetch calls = %v, want %v", f.calls, want)
	}
}

func TestRunClosesFetcherOnEveryExitPath(t *testing.T) {
	tests := []struct {
		name  string
		pages map[string]string
	}{
		{name: "fetch failure", pages: map[string]string{}},
		{name: "empty page", pages: map[string]string{"https://example.test/catalog": emptyPage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{pages: tt.pages}
			c, err := New(testManifest(), f, nil)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if _, err := c.Run(context.Background()); err != nil {
				t.Fatalf("run: %v", err)
			}
			if f.closed != 1 {
				t.Fatalf("fetcher closed %d times, want 1", f.closed)
			}
		})
	}
}

func TestRunValidatorFiltersAndContinues(t *testing.T) {
	const page1 = `<html><head>
	<script type="application/ld+json">
	[
		{"@type": "Product", "name": "Bike A", "url": "https://example.test/bikes/a",
		 "offers": {"price": "1000", "availability": "InStock"}},
		{"@type": "Product", "name": "Bike B", "url": "https://example.test/bikes/b",
		 "offers": {"availability": "InStock"}}
	]
	</script>
	</head></html>`

	cfg := testManifest()
	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog":        page1,
		"https://example.test/catalog?page=2": bikeAPage,
	}}

	schema := `{
		"type": "object",
		"required": ["name", "price", "availability"],
		"properties": {"price": {"type": "number"}}
	}`
	v, err := validator.New([]byte(schema))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	c, err := New(cfg, f, v)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Bike B has no price and is dropped; the run continues to page 2.
	if len(f.calls) < 2 {
		t.Fatalf("rejection must not end the run, calls = %v", f.calls)
	}
	if result.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", result.Rejected)
	}
	for _, bike := range result.Bikes {
		if bike.Name == "Bike B" {
			t.Fatalf("rejected record leaked into the output")
		}
	}
}

func TestRunCancelledContextEndsRun(t *testing.T) {
	cfg := testManifest()
	f := &stubFetcher{pages: map[string]string{
		"https://example.test/catalog": bikeAPage,
	}}

	c, err := New(cfg, f, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("fetch calls = %d, want 1 (cancellation checked between pages)", len(f.calls))
	}
	if len(result.Bikes) != 1 {
		t.Fatalf("bikes = %d, want the page completed before cancellation", len(result.Bikes))
	}
}

// End to end: real HTTP backend over a mock transport, schema
// validation, and both output artifacts.
func TestCrawlEndToEnd(t *testing.T) {
	cfg := testManifest()
	cfg.BaseURL = "http://example.test/catalog"
	cfg.EndPage = 1

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg.Fetch)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	resp := httpmock.NewStringResponse(http.StatusOK, bikeAPage)
	resp.Header.Set("Content-Type", "text/html")
	transport.RegisterResponder("GET", cfg.BaseURL, httpmock.ResponderFromResponse(resp))
	httpFetcher.WithTransport(transport)

	schema := `{"type": "object", "required": ["name", "price", "availability"]}`
	v, err := validator.New([]byte(schema))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	c, err := New(cfg, httpFetcher, v)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Bikes) != 1 {
		t.Fatalf("bikes = %d, want 1", len(result.Bikes))
	}

	dir := t.TempDir()
	if err := pipeline.SaveAll(dir, result.Bikes); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "bikes.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []*models.Bike
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Name != "Bike A" {
		t.Fatalf("json first element = %+v, want Bike A", decoded)
	}

	csvFile, err := os.Open(filepath.Join(dir, "bikes.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer csvFile.Close()
	records, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("csv rows = %d, want header + 1 record", len(records))
	}
	wantHeader := fmt.Sprintf("%v", []string{"name", "price", "availability", "image_url", "detail_url", "specs"})
	if got := fmt.Sprintf("%v", records[0]); got != wantHeader {
		t.Fatalf("csv header = %v, want %v", records[0], wantHeader)
	}
	if records[1][0] != "Bike A" || records[1][1] != "1000" {
		t.Fatalf("csv record = %v", records[1])
	}
}
