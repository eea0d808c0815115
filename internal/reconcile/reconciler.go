// Package reconcile merges DOM-visible product tiles with embedded-JSON and
// JSON-LD records into canonical output. The merge is pure: everything it
// needs, including the session's delivery estimate, arrives as input.
package reconcile

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

// Tile is one DOM-visible product card. Every field is individually
// optional; an empty field falls back to the embedded record.
type Tile struct {
	Name      string
	PriceText string
	PackSize  string
	ImageURL  string
}

// Rules capture the per-platform reliability characteristics: which embedded
// keys carry which field, whether prices arrive in minor currency units, and
// which flags mean sold out.
type Rules struct {
	Platform models.Platform

	IDKey        string
	NameKeys     []string
	BrandKeys    []string
	PriceKeys    []string
	MRPKeys      []string
	WeightKeys   []string
	ImageKeys    []string
	InventoryKey string
	StoreIDKey   string

	// SoldOutKey is a boolean flag; UnavailableQtyKey marks out of stock
	// when it equals 1. Either may be empty for platforms without the flag.
	SoldOutKey        string
	UnavailableQtyKey string

	// ShelfLifeHoursKey, when set, renders as "<n> hours".
	ShelfLifeHoursKey string

	// MinorUnitPrices divides embedded price fields by 100.
	MinorUnitPrices bool

	// ProductURL rebuilds a product link from name and id. Optional.
	ProductURL func(name, id string) string

	// AvailabilityKey holds a schema.org availability URL ("...InStock").
	AvailabilityKey string
}

type Scope struct {
	Category string
	Pincode  string
	ETA      string
}

type Reconciler struct {
	rules Rules
}

func New(rules Rules) *Reconciler {
	return &Reconciler{rules: rules}
}

// FromTiles produces one canonical product per DOM tile, enriched from the
// embedded record whose normalized name matches. Unmatched tiles still
// produce a record with "unknown" embedded-only fields. The DOM price wins
// when present: it reflects exactly what is visually offered.
func (r *Reconciler) FromTiles(tiles []Tile, embedded map[string]extract.Record, scope Scope) []*models.CanonicalProduct {
	byName := make(map[string]extract.Record, len(embedded))
	for _, rec := range embedded {
		if name := rec.String(r.rules.NameKeys...); name != "" {
			key := NormalizeName(name)
			if existing, ok := byName[key]; !ok || rec.DetailScore() > existing.DetailScore() {
				byName[key] = rec
			}
		}
	}

	products := make([]*models.CanonicalProduct, 0, len(tiles))
	for _, tile := range tiles {
		rec := byName[NormalizeName(tile.Name)]
		products = append(products, r.merge(tile, rec, scope))
	}
	return products
}

// FromEmbedded produces one canonical product per embedded record, for
// platforms where DOM enumeration is unavailable.
func (r *Reconciler) FromEmbedded(embedded map[string]extract.Record, scope Scope) []*models.CanonicalProduct {
	products := make([]*models.CanonicalProduct, 0, len(embedded))
	for _, rec := range embedded {
		products = append(products, r.merge(Tile{}, rec, scope))
	}
	return products
}

func (r *Reconciler) merge(tile Tile, rec extract.Record, scope Scope) *models.CanonicalProduct {
	p := models.NewCanonicalProduct(r.rules.Platform, scope.Category, scope.Pincode)
	p.DeliveryETA = scope.ETA
	p.ScrapedAt = time.Now()

	// Identity and metadata prefer the embedded value.
	if rec != nil {
		if name := rec.String(r.rules.NameKeys...); name != "" {
			p.Name = name
		}
		if brand := rec.String(r.rules.BrandKeys...); brand != "" {
			p.Brand = brand
		}
		p.ProductID = extract.RecordID(rec, r.rules.IDKey)
		if store := rec.String(r.rules.StoreIDKey); store != "" {
			p.StoreID = store
		} else if f, ok := rec.Float(r.rules.StoreIDKey); ok {
			p.StoreID = strconv.FormatFloat(f, 'f', -1, 64)
		}
		if inv, ok := rec.Float(r.rules.InventoryKey); ok {
			p.Inventory = strconv.FormatFloat(inv, 'f', -1, 64)
		}
		if r.rules.ShelfLifeHoursKey != "" {
			if hours, ok := rec.Float(r.rules.ShelfLifeHoursKey); ok && hours > 0 {
				p.ShelfLife = strconv.FormatFloat(hours, 'f', -1, 64) + " hours"
			}
		}
	}
	if tile.Name != "" {
		p.Name = strings.TrimSpace(tile.Name)
	}

	// Displayed price: DOM wins when a tile exists.
	domPrice, hasDOMPrice := ParsePrice(tile.PriceText)
	embPrice, hasEmbPrice := r.embeddedFloat(rec, r.rules.PriceKeys)
	switch {
	case hasDOMPrice:
		p.Price = domPrice
	case hasEmbPrice:
		p.Price = embPrice
	}

	// MRP prefers the embedded value; absent that, MRP == price is assumed
	// rather than dropping the field.
	if mrp, ok := r.embeddedFloat(rec, r.rules.MRPKeys); ok {
		p.MRP = mrp
	} else {
		p.MRP = p.Price
	}

	if tile.PackSize != "" {
		p.Weight = strings.TrimSpace(tile.PackSize)
	} else if rec != nil {
		if w := rec.String(r.rules.WeightKeys...); w != "" {
			p.Weight = w
		}
	}

	if tile.ImageURL != "" {
		p.ImageURL = tile.ImageURL
	} else if rec != nil {
		if img := rec.String(r.rules.ImageKeys...); img != "" {
			p.ImageURL = img
		}
	}

	p.Availability = r.classify(rec)

	if r.rules.ProductURL != nil && p.ProductID != "" {
		p.ProductURL = r.rules.ProductURL(p.Name, p.ProductID)
	}

	return p
}

// classify maps explicit embedded flags to stock status. A rendered page
// with no negative flag defaults to in stock.
func (r *Reconciler) classify(rec extract.Record) models.Availability {
	if rec == nil {
		return models.InStock
	}
	if r.rules.SoldOutKey != "" && rec.Bool(r.rules.SoldOutKey) {
		return models.OutOfStock
	}
	if r.rules.UnavailableQtyKey != "" {
		if qty, ok := rec.Float(r.rules.UnavailableQtyKey); ok && qty == 1 {
			return models.OutOfStock
		}
	}
	if r.rules.InventoryKey != "" {
		if inv, ok := rec.Float(r.rules.InventoryKey); ok && inv == 0 {
			return models.OutOfStock
		}
	}
	if r.rules.AvailabilityKey != "" {
		if avail := rec.String(r.rules.AvailabilityKey); avail != "" {
			if strings.Contains(avail, "InStock") {
				return models.InStock
			}
			return models.OutOfStock
		}
	}
	return models.InStock
}

func (r *Reconciler) embeddedFloat(rec extract.Record, keys []string) (float64, bool) {
	if rec == nil {
		return 0, false
	}
	v, ok := rec.Float(keys...)
	if !ok {
		return 0, false
	}
	if r.rules.MinorUnitPrices {
		v /= 100
	}
	return v, true
}

var priceCleaner = regexp.MustCompile(`[^\d.]`)

// ParsePrice extracts a numeric price from displayed text like "₹1,299".
func ParsePrice(text string) (float64, bool) {
	cleaned := priceCleaner.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeName trims and collapses whitespace for tile-to-record matching.
func NormalizeName(name string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(name), " ")
}
