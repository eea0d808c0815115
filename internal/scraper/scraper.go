package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/quickshelf/qcom-scraper/internal/actions"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/session"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNotFound        = errors.New("product page not found")
)

// Adapter is the uniform contract over the three target sites. No page
// interaction failure escapes any of its methods: SetLocation degrades,
// FetchCatalog returns an empty list, FetchAvailability records the error in
// the row itself. One unreachable page must not abort a batch.
type Adapter interface {
	Platform() models.Platform

	// SetLocation scopes the session to a delivery pincode, best effort.
	SetLocation(ctx context.Context, pincode string)

	// FetchCatalog returns the reconciled listings of a category page,
	// possibly empty.
	FetchCatalog(ctx context.Context, categoryURL string) []*models.CanonicalProduct

	// FetchAvailability checks a single product URL and always returns a
	// well-formed record.
	FetchAvailability(ctx context.Context, productURL string) *models.AvailabilityRecord

	Close() error
}

// New builds the adapter for a platform on the given page.
func New(platform models.Platform, page browser.Page, cfg *config.Config, cache session.EtaCache) (Adapter, error) {
	switch platform {
	case models.PlatformBlinkit:
		return newBlinkit(page, cfg, cache), nil
	case models.PlatformZepto:
		return newZepto(page, cfg, cache), nil
	case models.PlatformInstamart:
		return newInstamart(page, cfg, cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
}

// negativeKeywords in page text mean the product is not orderable even when
// no structured flag says so.
var negativeKeywords = []string{
	"Sold Out",
	"Notify Me",
	"Out of Stock",
	"Currently unavailable",
}

func keywordAvailability(content string) models.Availability {
	for _, kw := range negativeKeywords {
		if strings.Contains(content, kw) {
			return models.OutOfStock
		}
	}
	return models.InStock
}

// recoveryKeyword derives a category keyword from a URL path, used to find
// a matching link on the home page after a soft redirect. Path segments
// that look like slugs (hyphenated, non-trivial length) qualify.
func recoveryKeyword(rawURL string) string {
	for _, part := range strings.Split(rawURL, "/") {
		if len(part) > 3 && strings.Contains(part, "-") && !strings.Contains(part, ".") {
			return part
		}
	}
	return ""
}

// mostDetailed picks the candidate with the largest serialized field set, a
// proxy for "the primary product, not a related one". Heuristic; see
// Record.DetailScore.
func mostDetailed(candidates []extract.Record) extract.Record {
	var best extract.Record
	bestScore := -1
	for _, c := range candidates {
		if score := c.DetailScore(); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

func parseDoc(markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	return doc
}

// base carries the composed machinery every adapter shares.
type base struct {
	platform   models.Platform
	page       browser.Page
	resolver   *actions.Resolver
	session    *session.Session
	settle     time.Duration
	snapshots  string
	screenshot bool
	logger     *slog.Logger
}

func newBase(platform models.Platform, page browser.Page, cfg *config.Config, flow session.Flow, cache session.EtaCache) base {
	resolver := actions.NewResolver(cfg.Scraper.CandidateWait)
	return base{
		platform:   platform,
		page:       page,
		resolver:   resolver,
		session:    session.New(platform, page, resolver, flow, cache),
		settle:     cfg.Scraper.SettleDelay,
		snapshots:  cfg.Scraper.SnapshotDir,
		screenshot: cfg.Scraper.ScreenshotOnErr,
		logger:     slog.Default().With("component", "adapter", "platform", platform),
	}
}

func (b *base) Platform() models.Platform { return b.platform }

func (b *base) SetLocation(ctx context.Context, pincode string) {
	b.session.Run(ctx, pincode)
}

func (b *base) Close() error {
	return b.page.Close()
}

// snapshot dumps the page for offline debugging. Best effort; failures are
// logged and ignored.
func (b *base) snapshot(op string) {
	if !b.screenshot {
		return
	}
	if err := os.MkdirAll(b.snapshots, 0o755); err != nil {
		b.logger.Warn("could not create snapshot dir", "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%d", b.platform, op, time.Now().Unix())
	if err := b.page.Screenshot(filepath.Join(b.snapshots, name+".png")); err != nil {
		b.logger.Warn("screenshot failed", "error", err)
	}
	if content, err := b.page.Content(); err == nil {
		if err := os.WriteFile(filepath.Join(b.snapshots, name+".html"), []byte(content), 0o644); err != nil {
			b.logger.Warn("markup dump failed", "error", err)
		}
	}
}

// recoverNavigation attempts one link-based recovery after a soft redirect
// or not-found page. Returns false when no keyword link exists.
func (b *base) recoverNavigation(categoryURL string) bool {
	keyword := recoveryKeyword(categoryURL)
	if keyword == "" {
		return false
	}
	b.logger.Info("attempting recovery navigation", "keyword", keyword)

	if _, ok := b.resolver.ClickFirst(b.page, "recovery link", actions.List(
		fmt.Sprintf("a[href*='%s']", keyword),
	)); !ok {
		return false
	}
	b.page.Settle(b.settle)
	b.logger.Info("recovered navigation", "url", b.page.URL())
	return true
}
