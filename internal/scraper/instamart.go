package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quickshelf/qcom-scraper/internal/actions"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/reconcile"
	"github.com/quickshelf/qcom-scraper/internal/session"
)

const instamartBaseURL = "https://www.swiggy.com/instamart"

// packSizePattern enriches the pack size from the product name, which is
// where Instamart keeps it: "Onion (1 kg)".
var packSizePattern = regexp.MustCompile(`\(([\d.]+\s*(?i:kg|g|ml|l))\)`)

// instamartURLID pulls the item identifier out of an /item/<id> link.
var instamartURLID = regexp.MustCompile(`item/([A-Za-z0-9\-]+)`)

type instamartAdapter struct {
	base
	reconciler *reconcile.Reconciler
}

func instamartFlow() session.Flow {
	return session.Flow{
		BaseURL: instamartBaseURL,
		Trigger: []actions.Candidate{
			{Selector: "div[data-testid='header-location-container']", Wait: 2 * time.Second},
			{Selector: "span:has-text('Setup your location')", Wait: 2 * time.Second},
			{Selector: "span:has-text('Location')", Wait: 2 * time.Second},
			{Selector: "button:has-text('Locate Me')", Wait: 2 * time.Second},
			{Selector: "div[class*='LocationHeader']", Wait: 2 * time.Second},
		},
		SearchInput: actions.List(
			"input[placeholder*='Search for area']",
			"input[name='location']",
			"input[data-testid='search-input']",
			"input[class*='SearchInput']",
			"input[placeholder*='Enter location']",
			"input[type='text']",
		),
		Suggestion: []actions.Candidate{
			{Selector: "div[data-testid='location-search-result']", Wait: 10 * time.Second},
			{Selector: "div[class*='SearchResults'] div", Wait: 2 * time.Second},
		},
		EtaContainers:    actions.List("header"),
		ModalSettle:      2 * time.Second,
		SuggestionSettle: time.Second,
		ApplySettle:      5 * time.Second,
	}
}

func instamartRules() reconcile.Rules {
	return reconcile.Rules{
		Platform:        models.PlatformInstamart,
		IDKey:           extract.KeySKU,
		NameKeys:        []string{extract.KeyName},
		BrandKeys:       []string{extract.KeyBrand},
		PriceKeys:       []string{extract.KeyPrice},
		MRPKeys:         []string{extract.KeyPrice},
		ImageKeys:       []string{extract.KeyImage},
		AvailabilityKey: extract.KeyAvailability,
		ProductURL: func(_, id string) string {
			return fmt.Sprintf("%s/item/%s", instamartBaseURL, id)
		},
	}
}

func newInstamart(page browser.Page, cfg *config.Config, cache session.EtaCache) *instamartAdapter {
	return &instamartAdapter{
		base:       newBase(models.PlatformInstamart, page, cfg, instamartFlow(), cache),
		reconciler: reconcile.New(instamartRules()),
	}
}

// FetchCatalog extracts a category via schema.org metadata. Instamart emits
// an ItemList of Products in ld+json, which is far more stable than its
// obfuscated DOM classes.
func (a *instamartAdapter) FetchCatalog(ctx context.Context, categoryURL string) []*models.CanonicalProduct {
	a.logger.Info("fetching catalog", "url", categoryURL)

	if err := a.page.Navigate(categoryURL); err != nil {
		a.logger.Error("catalog navigation failed", "error", err)
		a.snapshot("catalog_nav")
		return nil
	}
	a.page.Settle(a.settle)

	content, err := a.page.Content()
	if err != nil {
		a.logger.Error("could not read page content", "error", err)
		return nil
	}

	embedded := extract.ExtractJSONLD(extract.JSONLDScripts(content))
	a.logger.Info("extracted structured products", "count", len(embedded))

	products := a.reconciler.FromEmbedded(embedded, reconcile.Scope{
		Category: categoryURL,
		Pincode:  a.session.Pincode(),
		ETA:      a.session.ETA(),
	})
	for _, p := range products {
		if m := packSizePattern.FindStringSubmatch(p.Name); m != nil {
			p.Weight = m[1]
		}
	}
	return products
}

// FetchAvailability reads the Product metadata block of a single item page.
func (a *instamartAdapter) FetchAvailability(ctx context.Context, productURL string) *models.AvailabilityRecord {
	rec := models.NewAvailabilityRecord(productURL, a.session.Pincode(), models.PlatformInstamart)
	rec.DeliveryETA = a.session.ETA()

	if err := a.page.Navigate(productURL); err != nil {
		rec.SetError(fmt.Sprintf("navigation failed: %v", err))
		a.snapshot("availability_nav")
		return rec
	}
	a.page.Settle(a.settle)

	content, err := a.page.Content()
	if err != nil {
		rec.SetError(fmt.Sprintf("could not read page: %v", err))
		return rec
	}

	products := extract.ExtractJSONLD(extract.JSONLDScripts(content))
	if len(products) == 0 {
		rec.SetError("no structured product data found")
		fillFromDOM(rec, content)
		return rec
	}

	var candidates []extract.Record
	for _, p := range products {
		candidates = append(candidates, p)
	}
	chosen := selectCandidate(candidates, extract.KeySKU, instamartURLID, productURL)

	rec.Name = chosen.String(extract.KeyName)
	rec.Brand = orDefault(chosen.String(extract.KeyBrand), "N/A")
	if price, ok := chosen.Float(extract.KeyPrice); ok {
		rec.Price = price
		rec.MRP = price
	}
	rec.ImageURL = orDefault(chosen.String(extract.KeyImage), "N/A")
	if m := packSizePattern.FindStringSubmatch(rec.Name); m != nil {
		rec.Weight = m[1]
	}

	if avail := chosen.String(extract.KeyAvailability); avail != "" {
		if strings.Contains(avail, "InStock") {
			rec.Availability = models.InStock
		} else {
			rec.Availability = models.OutOfStock
		}
	} else {
		rec.Availability = keywordAvailability(content)
	}

	fillFromDOM(rec, content)
	return rec
}
