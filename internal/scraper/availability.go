package scraper

import (
	"regexp"

	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/reconcile"
)

// selectCandidate picks the embedded record describing the requested
// product. A discriminator parsed out of the URL itself is authoritative;
// without one, the most detailed candidate stands in for the primary
// product.
func selectCandidate(candidates []extract.Record, idKey string, urlID *regexp.Regexp, productURL string) extract.Record {
	if len(candidates) == 0 {
		return nil
	}

	if m := urlID.FindStringSubmatch(productURL); m != nil {
		target := m[1]
		for _, c := range candidates {
			if extract.RecordID(c, idKey) == target {
				return c
			}
		}
	}

	return mostDetailed(candidates)
}

// domFallbacks are the generic selectors used to fill fields the embedded
// data did not provide. Last resort only.
var domFallbacks = struct {
	name  []string
	price []string
	image []string
}{
	name:  []string{"h1"},
	price: []string{`[data-testid="product-price"]`, `[class*='Price']`},
	image: []string{`img[class*='product']`, `main img`},
}

// fillFromDOM completes still-missing record fields from the rendered
// markup.
func fillFromDOM(rec *models.AvailabilityRecord, content string) {
	doc := parseDoc(content)
	if doc == nil {
		return
	}

	if rec.Name == "N/A" || rec.Name == "" {
		for _, sel := range domFallbacks.name {
			if text := reconcile.NormalizeName(doc.Find(sel).First().Text()); text != "" {
				rec.Name = text
				break
			}
		}
	}

	if rec.Price == 0 {
		for _, sel := range domFallbacks.price {
			if price, ok := reconcile.ParsePrice(doc.Find(sel).First().Text()); ok {
				rec.Price = price
				if rec.MRP == 0 {
					rec.MRP = price
				}
				break
			}
		}
	}

	if rec.ImageURL == "N/A" || rec.ImageURL == "" {
		for _, sel := range domFallbacks.image {
			if src, ok := doc.Find(sel).First().Attr("src"); ok && src != "" {
				rec.ImageURL = src
				break
			}
		}
	}
}
