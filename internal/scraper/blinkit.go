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

const blinkitBaseURL = "https://blinkit.com/"

// Blinkit serializes products as escaped JSON objects opening with a
// product_id field. ids are numeric.
var (
	blinkitMarker = regexp.MustCompile(`\{"product_id":`)
	blinkitURLID  = regexp.MustCompile(`prid/(\d+)`)
)

type blinkitAdapter struct {
	base
	scanner    *extract.Scanner
	reconciler *reconcile.Reconciler
}

func blinkitFlow() session.Flow {
	return session.Flow{
		BaseURL: blinkitBaseURL,
		Trigger: []actions.Candidate{
			{Selector: "text=Delivery in", Wait: 5 * time.Second},
			{Selector: "div[class*='LocationWidget']", Wait: 2 * time.Second},
			{Selector: "text=Detecting location", Wait: 2 * time.Second},
		},
		SearchInput: actions.List(
			"input[name='search']",
			"input[placeholder*='search']",
		),
		Suggestion: []actions.Candidate{
			{Selector: "div[class*='LocationSearchList'] div:has-text('" + session.PincodePlaceholder + "')", Wait: 10 * time.Second},
			{Selector: "div[class*='LocationSearchList'] div", Wait: 2 * time.Second},
		},
		EtaContainers: actions.List(
			"div[class*='LocationWidget']",
			"header",
		),
		ModalSettle:      2 * time.Second,
		SuggestionSettle: time.Second,
		ApplySettle:      5 * time.Second,
	}
}

func blinkitRules() reconcile.Rules {
	return reconcile.Rules{
		Platform:          models.PlatformBlinkit,
		IDKey:             "product_id",
		NameKeys:          []string{"product_name", "display_name"},
		BrandKeys:         []string{"brand"},
		PriceKeys:         []string{"price"},
		MRPKeys:           []string{"mrp"},
		WeightKeys:        []string{"unit", "quantity_info"},
		ImageKeys:         []string{"image_url"},
		InventoryKey:      "inventory",
		StoreIDKey:        "merchant_id",
		UnavailableQtyKey: "unavailable_quantity",
		ProductURL: func(name, id string) string {
			slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
			return fmt.Sprintf("%sprn/%s/prid/%s", blinkitBaseURL, slug, id)
		},
	}
}

func newBlinkit(page browser.Page, cfg *config.Config, cache session.EtaCache) *blinkitAdapter {
	return &blinkitAdapter{
		base: newBase(models.PlatformBlinkit, page, cfg, blinkitFlow(), cache),
		scanner: extract.NewScanner(blinkitMarker, "product_id",
			[]string{"product_name", "display_name"},
			[]string{"price", "mrp", "inventory"}),
		reconciler: reconcile.New(blinkitRules()),
	}
}

// FetchCatalog extracts a category listing. Blinkit category pages carry no
// stable DOM structure worth enumerating; the embedded JSON map is the
// source of record.
func (a *blinkitAdapter) FetchCatalog(ctx context.Context, categoryURL string) []*models.CanonicalProduct {
	a.logger.Info("fetching catalog", "url", categoryURL)

	if err := a.page.Navigate(categoryURL); err != nil {
		a.logger.Error("catalog navigation failed", "error", err)
		a.snapshot("catalog_nav")
		return nil
	}

	// Category deep links are session-bound; a bounce back to the home page
	// means the link did not resolve for this session.
	if a.page.URL() == blinkitBaseURL && categoryURL != blinkitBaseURL {
		a.logger.Warn("redirected to home page", "requested", categoryURL)
		if !a.recoverNavigation(categoryURL) {
			return nil
		}
	}

	a.page.Settle(a.settle)

	content, err := a.page.Content()
	if err != nil {
		a.logger.Error("could not read page content", "error", err)
		return nil
	}

	embedded := a.scanner.Scan(content)
	a.logger.Info("extracted embedded products", "count", len(embedded))

	return a.reconciler.FromEmbedded(embedded, reconcile.Scope{
		Category: categoryURL,
		Pincode:  a.session.Pincode(),
		ETA:      a.session.ETA(),
	})
}

// FetchAvailability checks one product URL. The candidate whose id matches
// the prid path segment wins; otherwise the most detailed object on the
// page is taken as the primary product.
func (a *blinkitAdapter) FetchAvailability(ctx context.Context, productURL string) *models.AvailabilityRecord {
	rec := models.NewAvailabilityRecord(productURL, a.session.Pincode(), models.PlatformBlinkit)
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

	candidates := a.scanner.ScanAll(content)
	chosen := selectCandidate(candidates, "product_id", blinkitURLID, productURL)
	if chosen == nil {
		// A rendered negative marker is a classification in its own right;
		// only a page with no signal at all counts as a failed check.
		if keywordAvailability(content) == models.OutOfStock {
			rec.Availability = models.OutOfStock
		} else {
			rec.SetError("no embedded product data found")
		}
		fillFromDOM(rec, content)
		return rec
	}

	rec.Name = chosen.String("product_name", "display_name")
	rec.Brand = orDefault(chosen.String("brand"), "N/A")
	if price, ok := chosen.Float("price"); ok {
		rec.Price = price
	}
	if mrp, ok := chosen.Float("mrp"); ok {
		rec.MRP = mrp
	} else {
		rec.MRP = rec.Price
	}
	rec.Weight = orDefault(chosen.String("unit", "quantity_info"), "N/A")
	rec.ImageURL = orDefault(chosen.String("image_url"), "N/A")

	switch {
	case chosen.Bool("unavailable_quantity"):
		rec.Availability = models.OutOfStock
	case hasZero(chosen, "inventory"):
		rec.Availability = models.OutOfStock
	default:
		rec.Availability = keywordAvailability(content)
	}

	fillFromDOM(rec, content)
	return rec
}

func hasZero(rec extract.Record, key string) bool {
	v, ok := rec.Float(key)
	return ok && v == 0
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
