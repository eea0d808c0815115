package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

func testRules() Rules {
	return Rules{
		Platform:          models.PlatformBlinkit,
		IDKey:             "product_id",
		NameKeys:          []string{"product_name"},
		BrandKeys:         []string{"brand"},
		PriceKeys:         []string{"price"},
		MRPKeys:           []string{"mrp"},
		WeightKeys:        []string{"unit"},
		ImageKeys:         []string{"image_url"},
		InventoryKey:      "inventory",
		StoreIDKey:        "merchant_id",
		UnavailableQtyKey: "unavailable_quantity",
	}
}

func testScope() Scope {
	return Scope{Category: "dairy", Pincode: "560001", ETA: "8 mins"}
}

func TestFromTilesDOMPriceWins(t *testing.T) {
	embedded := map[string]extract.Record{
		"A1": {
			"product_id":   "A1",
			"product_name": "Amul Milk 500ml",
			"brand":        "Amul",
			"price":        30.0,
			"mrp":          33.0,
			"inventory":    12.0,
		},
	}
	tiles := []Tile{{Name: "Amul  Milk 500ml", PriceText: "₹28", PackSize: "500 ml"}}

	products := New(testRules()).FromTiles(tiles, embedded, testScope())

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, 28.0, p.Price, "displayed price overrides embedded")
	assert.Equal(t, 33.0, p.MRP, "MRP comes from the embedded record")
	assert.Equal(t, "A1", p.ProductID)
	assert.Equal(t, "Amul", p.Brand)
	assert.Equal(t, "500 ml", p.Weight)
	assert.Equal(t, "12", p.Inventory)
	assert.Equal(t, "8 mins", p.DeliveryETA)
	assert.Equal(t, models.InStock, p.Availability)
}

func TestFromTilesUnmatchedTileStillEmitted(t *testing.T) {
	tiles := []Tile{{Name: "Mystery Item", PriceText: "₹99"}}

	products := New(testRules()).FromTiles(tiles, nil, testScope())

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Mystery Item", p.Name)
	assert.Equal(t, 99.0, p.Price)
	assert.Equal(t, 99.0, p.MRP, "MRP falls back to price")
	assert.Empty(t, p.ProductID)
	assert.Equal(t, models.InStock, p.Availability)
}

func TestFromTilesMatchPrefersDetailedRecord(t *testing.T) {
	embedded := map[string]extract.Record{
		"thin": {"product_id": "thin", "product_name": "Tata Salt"},
		"rich": {
			"product_id":   "rich",
			"product_name": "Tata Salt",
			"price":        28.0,
			"mrp":          30.0,
			"brand":        "Tata",
			"inventory":    4.0,
		},
	}
	tiles := []Tile{{Name: "Tata Salt"}}

	products := New(testRules()).FromTiles(tiles, embedded, testScope())

	require.Len(t, products, 1)
	assert.Equal(t, "rich", products[0].ProductID)
}

func TestFromEmbedded(t *testing.T) {
	embedded := map[string]extract.Record{
		"A1": {"product_id": "A1", "product_name": "Bread", "price": 25.0},
		"B2": {"product_id": "B2", "product_name": "Eggs", "price": 70.0, "unavailable_quantity": 1.0},
	}

	products := New(testRules()).FromEmbedded(embedded, testScope())

	require.Len(t, products, 2)
	byID := make(map[string]*models.CanonicalProduct)
	for _, p := range products {
		byID[p.ProductID] = p
	}
	assert.Equal(t, models.InStock, byID["A1"].Availability)
	assert.Equal(t, models.OutOfStock, byID["B2"].Availability)
}

func TestMinorUnitPrices(t *testing.T) {
	rules := testRules()
	rules.MinorUnitPrices = true

	embedded := map[string]extract.Record{
		"Z1": {"product_id": "Z1", "product_name": "Curd", "price": 4500.0, "mrp": 5000.0},
	}

	products := New(rules).FromEmbedded(embedded, testScope())

	require.Len(t, products, 1)
	assert.Equal(t, 45.0, products[0].Price)
	assert.Equal(t, 50.0, products[0].MRP)
}

func TestClassify(t *testing.T) {
	rules := testRules()
	rules.SoldOutKey = "isSoldOut"
	rules.AvailabilityKey = "availability"
	r := New(rules)

	tests := []struct {
		name string
		rec  extract.Record
		want models.Availability
	}{
		{"nil record defaults in stock", nil, models.InStock},
		{"sold out flag", extract.Record{"isSoldOut": true}, models.OutOfStock},
		{"unavailable quantity", extract.Record{"unavailable_quantity": 1.0}, models.OutOfStock},
		{"zero inventory", extract.Record{"inventory": 0.0}, models.OutOfStock},
		{"positive inventory", extract.Record{"inventory": 7.0}, models.InStock},
		{"schema in stock", extract.Record{"availability": "https://schema.org/InStock"}, models.InStock},
		{"schema out of stock", extract.Record{"availability": "https://schema.org/OutOfStock"}, models.OutOfStock},
		{"no signals", extract.Record{"price": 10.0}, models.InStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.classify(tt.rec))
		})
	}
}

func TestProductURLRebuild(t *testing.T) {
	rules := testRules()
	rules.ProductURL = func(name, id string) string {
		return "https://example.com/prn/" + NormalizeName(name) + "/prid/" + id
	}

	embedded := map[string]extract.Record{
		"42": {"product_id": "42", "product_name": "Ghee"},
	}

	products := New(rules).FromEmbedded(embedded, testScope())

	require.Len(t, products, 1)
	assert.Equal(t, "https://example.com/prn/Ghee/prid/42", products[0].ProductURL)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"₹28", 28, true},
		{"₹1,299", 1299, true},
		{"₹45.50", 45.50, true},
		{"MRP ₹60", 60, true},
		{"", 0, false},
		{"Sold Out", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Amul Milk 500ml", NormalizeName("  Amul \t Milk\n500ml "))
}
