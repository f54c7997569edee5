// Package parser turns fetched markup into candidate bike records.
package parser

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-bikes/models"
)

// productTypes are the structured-data @type values that qualify a
// block entry as a product.
var productTypes = map[string]struct{}{
	"product": {},
	"bike":    {},
	"bicycle": {},
}

// ParsePrice converts a "thousands-dot, decimal-comma" price string
// (e.g. "1.234,56") to a float. It is best-effort: empty input,
// garbage, or anything strconv rejects yields nil instead of an error.
func ParsePrice(text string) *float64 {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")
	text = strings.TrimSpace(text)

	var digits strings.Builder
	for _, ch := range text {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			digits.WriteRune(ch)
		}
	}

	value, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return nil
	}
	return &value
}

// ExtractBikes parses one page's markup and returns candidate records
// in document order: structured-data results first, then DOM-fallback
// results. Both strategies always run and nothing is deduplicated, so
// the same underlying item may appear twice.
func ExtractBikes(markup string, base *url.URL) ([]*models.Bike, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	bikes := extractStructured(doc)
	return append(bikes, extractLinks(doc, base)...), nil
}

// extractStructured scans embedded JSON-LD blocks. A block holds one
// object or an array of objects; malformed JSON skips the whole block.
func extractStructured(doc *goquery.Document) []*models.Bike {
	var bikes []*models.Bike

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}

		entries, ok := data.([]any)
		if !ok {
			entries = []any{data}
		}

		for _, entry := range entries {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			itemType, _ := item["@type"].(string)
			if _, ok := productTypes[strings.ToLower(itemType)]; !ok {
				continue
			}

			offers, _ := item["offers"].(map[string]any)
			availability, _ := offers["availability"].(string)

			bikes = append(bikes, &models.Bike{
				Name:         stringField(item, "name"),
				Price:        ParsePrice(priceText(offers["price"])),
				Availability: availability,
				ImageURL:     stringField(item, "image"),
				DetailURL:    stringField(item, "url"),
				Specs:        specsMap(item["additionalProperty"]),
			})
		}
	})

	return bikes
}

// extractLinks is the DOM fallback: every anchor whose target contains
// the product path marker becomes a candidate, provided it has visible
// text and a resolvable target.
func extractLinks(doc *goquery.Document, base *url.URL) []*models.Bike {
	var bikes []*models.Bike

	doc.Find(`a[href*="/bikes/"]`).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		detailURL := resolveURL(base, href)
		if name == "" || detailURL == "" {
			return
		}

		imageURL := ""
		if src, ok := s.Find("img").First().Attr("src"); ok {
			imageURL = resolveURL(base, src)
		}

		bikes = append(bikes, &models.Bike{
			Name:         name,
			Price:        ParsePrice(s.Find(".price").First().Text()),
			Availability: "",
			ImageURL:     imageURL,
			DetailURL:    detailURL,
			Specs:        map[string]any{},
		})
	})

	return bikes
}

func stringField(item map[string]any, key string) string {
	value, _ := item[key].(string)
	return value
}

// priceText coerces a structured-data price value to text for the
// normalizer; JSON numbers decode as float64.
func priceText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// specsMap folds additionalProperty into the record's specs. It occurs
// in the wild both as a mapping and as a list of name/value property
// objects; anything else yields an empty map.
func specsMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case []any:
		specs := make(map[string]any, len(v))
		for _, entry := range v {
			prop, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := prop["name"].(string)
			if name == "" {
				continue
			}
			specs[name] = prop["value"]
		}
		return specs
	default:
		return map[string]any{}
	}
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
