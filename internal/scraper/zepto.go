package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/quickshelf/qcom-scraper/internal/actions"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/reconcile"
	"github.com/quickshelf/qcom-scraper/internal/session"
)

const (
	zeptoBaseURL  = "https://www.zepto.com/"
	zeptoCDNBase  = "https://cdn.zeptonow.com/production///"
	zeptoNotFound = "page you’re looking for"
	zeptoEggSit   = "made an egg-sit"
)

// Zepto hydration objects open with a uuid id field. Embedded prices are
// paise.
var (
	zeptoMarker = regexp.MustCompile(`\{"id":"[a-f0-9\-]{36}"`)
	zeptoURLID  = regexp.MustCompile(`pvid/([a-f0-9\-]{36})`)
)

type zeptoAdapter struct {
	base
	scanner    *extract.Scanner
	reconciler *reconcile.Reconciler
}

func zeptoFlow() session.Flow {
	return session.Flow{
		BaseURL: zeptoBaseURL,
		Trigger: []actions.Candidate{
			{Selector: "text=Select Location", Wait: 10 * time.Second},
			{Selector: "header [class*='location']", Wait: 5 * time.Second},
			{Selector: "header button[aria-label*='location']", Wait: 5 * time.Second},
		},
		SearchInput: []actions.Candidate{
			{Selector: "input[placeholder='Search a new address']", Wait: 10 * time.Second},
		},
		Suggestion: []actions.Candidate{
			{Selector: "div[data-testid='address-search-item']", Wait: 10 * time.Second},
			{Selector: "div[class*='prediction-container'] > div:first-child", Wait: 2 * time.Second},
		},
		Confirm: []actions.Candidate{
			{Selector: "button[data-testid='confirm-location-button']", Wait: 5 * time.Second},
		},
		EtaContainers: actions.List(
			`[data-testid="delivery-time"]`,
			"header",
		),
		ModalSettle:      2 * time.Second,
		SuggestionSettle: time.Second,
		ApplySettle:      3 * time.Second,
	}
}

func zeptoRules() reconcile.Rules {
	return reconcile.Rules{
		Platform:          models.PlatformZepto,
		IDKey:             "id",
		NameKeys:          []string{"name"},
		BrandKeys:         []string{"brand", "brandName"},
		PriceKeys:         []string{"sellingPrice"},
		MRPKeys:           []string{"mrp"},
		WeightKeys:        []string{"packsize", "weight"},
		InventoryKey:      "availableQuantity",
		StoreIDKey:        "storeId",
		SoldOutKey:        "isSoldOut",
		ShelfLifeHoursKey: "shelfLifeInHours",
		MinorUnitPrices:   true,
		ProductURL: func(name, id string) string {
			slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
			return fmt.Sprintf("%spn/%s/pvid/%s", zeptoBaseURL, slug, id)
		},
	}
}

func newZepto(page browser.Page, cfg *config.Config, cache session.EtaCache) *zeptoAdapter {
	return &zeptoAdapter{
		base: newBase(models.PlatformZepto, page, cfg, zeptoFlow(), cache),
		scanner: extract.NewScanner(zeptoMarker, "id",
			[]string{"name"},
			[]string{"mrp", "sellingPrice", "brand"}),
		reconciler: reconcile.New(zeptoRules()),
	}
}

// FetchCatalog runs the hybrid strategy: DOM tiles are the base list (they
// reflect what is visually offered), enriched from the embedded hydration
// objects matched by normalized name.
func (a *zeptoAdapter) FetchCatalog(ctx context.Context, categoryURL string) []*models.CanonicalProduct {
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

	if a.isNotFound(content) || a.isRedirectedHome(categoryURL) {
		a.logger.Warn("direct link failed", "requested", categoryURL, "landed", a.page.URL())
		if !a.recoverNavigation(categoryURL) {
			return nil
		}
		content, err = a.page.Content()
		if err != nil {
			return nil
		}
	}

	embedded := a.scanner.Scan(content)
	tiles := zeptoTiles(parseDoc(content))
	a.logger.Info("extracted products", "tiles", len(tiles), "embedded", len(embedded))

	scope := reconcile.Scope{
		Category: categoryURL,
		Pincode:  a.session.Pincode(),
		ETA:      a.session.ETA(),
	}
	if len(tiles) == 0 {
		return a.reconciler.FromEmbedded(embedded, scope)
	}
	return a.reconciler.FromTiles(tiles, embedded, scope)
}

// FetchAvailability checks one product URL, preferring the candidate whose
// id appears in the pvid path segment.
func (a *zeptoAdapter) FetchAvailability(ctx context.Context, productURL string) *models.AvailabilityRecord {
	rec := models.NewAvailabilityRecord(productURL, a.session.Pincode(), models.PlatformZepto)
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

	// A not-found page is a definitive answer, not a failed check.
	if a.isNotFound(content) {
		rec.Availability = models.NotFound
		return rec
	}

	candidates := a.scanner.ScanAll(content)
	chosen := selectCandidate(candidates, "id", zeptoURLID, productURL)
	if chosen != nil {
		rec.Name = chosen.String("name")
		rec.Brand = orDefault(chosen.String("brand", "brandName"), "N/A")
		if price, ok := chosen.Float("sellingPrice"); ok {
			rec.Price = price / 100
		}
		if mrp, ok := chosen.Float("mrp"); ok {
			rec.MRP = mrp / 100
		} else {
			rec.MRP = rec.Price
		}
		rec.Weight = orDefault(chosen.String("packsize", "weight"), "N/A")
		if img := zeptoImage(chosen); img != "" {
			rec.ImageURL = img
		}

		if chosen.Bool("isSoldOut") {
			rec.Availability = models.OutOfStock
		} else {
			rec.Availability = models.InStock
		}
	}

	fillFromDOM(rec, content)

	if rec.Availability == models.Unknown {
		rec.Availability = keywordAvailability(content)
	}
	return rec
}

func (a *zeptoAdapter) isNotFound(content string) bool {
	return strings.Contains(content, zeptoNotFound) || strings.Contains(content, zeptoEggSit)
}

func (a *zeptoAdapter) isRedirectedHome(categoryURL string) bool {
	landed := strings.TrimRight(a.page.URL(), "/")
	return landed == strings.TrimRight(zeptoBaseURL, "/") &&
		strings.TrimRight(categoryURL, "/") != landed
}

// zeptoTiles enumerates the DOM product cards of a category page.
func zeptoTiles(doc *goquery.Document) []reconcile.Tile {
	if doc == nil {
		return nil
	}

	var tiles []reconcile.Tile
	doc.Find(`a[href^="/pn/"]`).Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find(`[data-slot-id="ProductName"]`).First().Text())
		if name == "" {
			return
		}

		tile := reconcile.Tile{
			Name:      name,
			PriceText: strings.TrimSpace(card.Find(`[data-slot-id="EdlpPrice"] span`).First().Text()),
			PackSize:  strings.TrimSpace(card.Find(`[data-slot-id="PackSize"]`).First().Text()),
		}
		if src, ok := card.Find(`[data-slot-id="ProductImageWrapper"] img`).First().Attr("src"); ok {
			tile.ImageURL = src
		}
		tiles = append(tiles, tile)
	})
	return tiles
}

// zeptoImage rebuilds the CDN URL from the first entry of the embedded
// images list.
func zeptoImage(rec extract.Record) string {
	images, ok := rec["images"].([]any)
	if !ok || len(images) == 0 {
		return ""
	}
	first, ok := images[0].(map[string]any)
	if !ok {
		return ""
	}
	path := extract.Record(first).String("path")
	if path == "" {
		return ""
	}
	return zeptoCDNBase + path
}
