package scraper

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/extract"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

// contentPage serves a canned markup body. Navigation lands on the requested
// URL unless a redirect override is set.
type contentPage struct {
	content  string
	url      string
	redirect string
	navErr   error
}

func (p *contentPage) Navigate(url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	if p.redirect != "" {
		p.url = p.redirect
	} else {
		p.url = url
	}
	return nil
}

func (p *contentPage) URL() string              { return p.url }
func (p *contentPage) Content() (string, error) { return p.content, nil }
func (p *contentPage) IsVisible(string) bool    { return false }
func (p *contentPage) Settle(time.Duration)     {}
func (p *contentPage) Screenshot(string) error  { return nil }
func (p *contentPage) Close() error             { return nil }

func (p *contentPage) WaitVisible(string, time.Duration) error {
	return errors.New("not visible")
}

func (p *contentPage) Click(string, time.Duration) error {
	return errors.New("not visible")
}

func (p *contentPage) Fill(string, string, time.Duration) error {
	return errors.New("not visible")
}

func (p *contentPage) Text(string) (string, error) {
	return "", errors.New("no such element")
}

func testConfig() *config.Config {
	return &config.Config{
		Scraper: config.ScraperConfig{
			CandidateWait: 10 * time.Millisecond,
			SettleDelay:   0,
		},
	}
}

func TestBlinkitAvailabilityPrefersURLCandidate(t *testing.T) {
	page := &contentPage{content: `<html><body><script>` +
		`{"product_id":99999,"product_name":"Related Milk","price":50,"mrp":55,"inventory":10,"brand":"Other","extra_field":"related pad"}` +
		`{"product_id":12345,"product_name":"Amul Milk 500ml","brand":"Amul","price":30,"mrp":33,"inventory":5,"unit":"500 ml","image_url":"https://cdn.example.com/milk.jpg"}` +
		`</script></body></html>`}

	a := newBlinkit(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://blinkit.com/prn/amul-milk/prid/12345")

	assert.Empty(t, rec.Error)
	assert.Equal(t, "Amul Milk 500ml", rec.Name)
	assert.Equal(t, "Amul", rec.Brand)
	assert.Equal(t, 30.0, rec.Price)
	assert.Equal(t, 33.0, rec.MRP)
	assert.Equal(t, "500 ml", rec.Weight)
	assert.Equal(t, models.InStock, rec.Availability)
}

func TestBlinkitAvailabilityOutOfStockFlag(t *testing.T) {
	page := &contentPage{content: `<script>` +
		`{"product_id":12345,"product_name":"Amul Milk 500ml","price":30,"unavailable_quantity":1}` +
		`</script>`}

	a := newBlinkit(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://blinkit.com/prn/amul-milk/prid/12345")

	assert.Equal(t, models.OutOfStock, rec.Availability)
}

func TestBlinkitAvailabilityKeywordFallback(t *testing.T) {
	page := &contentPage{content: `<html><body><h1>Amul Milk 500ml</h1>` +
		`<div class="stock">Sold Out</div></body></html>`}

	a := newBlinkit(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://blinkit.com/prn/amul-milk/prid/12345")

	assert.Empty(t, rec.Error, "a keyword classification is not a failed check")
	assert.Equal(t, models.OutOfStock, rec.Availability)
	assert.Equal(t, "Amul Milk 500ml", rec.Name, "name falls back to the page heading")
}

func TestBlinkitAvailabilityNoSignalsStaysUnknown(t *testing.T) {
	page := &contentPage{content: `<html><body><p>Loading...</p></body></html>`}

	a := newBlinkit(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://blinkit.com/prn/amul-milk/prid/12345")

	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, models.Unknown, rec.Availability)
}

func TestBlinkitAvailabilityNavigationFailure(t *testing.T) {
	page := &contentPage{navErr: errors.New("net::ERR_TIMED_OUT")}

	a := newBlinkit(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://blinkit.com/prn/amul-milk/prid/12345")

	assert.Contains(t, rec.Error, "navigation failed")
	assert.Equal(t, models.Unknown, rec.Availability)
}

func TestBlinkitCatalog(t *testing.T) {
	page := &contentPage{content: `<script>` +
		`{"product_id":1,"product_name":"Milk","price":30,"mrp":33,"inventory":5}` +
		`{"product_id":2,"product_name":"Bread","price":25,"mrp":25,"inventory":0}` +
		`</script>`}

	a := newBlinkit(page, testConfig(), nil)
	products := a.FetchCatalog(context.Background(), "https://blinkit.com/cn/dairy-bread-eggs/cid/100")

	require.Len(t, products, 2)
	byID := make(map[string]*models.CanonicalProduct)
	for _, p := range products {
		byID[p.ProductID] = p
	}
	assert.Equal(t, models.InStock, byID["1"].Availability)
	assert.Equal(t, models.OutOfStock, byID["2"].Availability)
}

func TestBlinkitCatalogRedirectWithoutRecoveryIsEmpty(t *testing.T) {
	page := &contentPage{
		content:  `<html><body>home page</body></html>`,
		redirect: "https://blinkit.com/",
	}

	a := newBlinkit(page, testConfig(), nil)
	products := a.FetchCatalog(context.Background(), "https://blinkit.com/cn/dairy-bread-eggs/cid/100")

	assert.Empty(t, products)
}

const zeptoUUID = "0b4a1f6e-1111-2222-3333-444455556666"

func TestZeptoAvailabilityConvertsPaise(t *testing.T) {
	page := &contentPage{content: `<script>` +
		`{"id":"` + zeptoUUID + `","name":"Tata Salt 1kg","brandName":"Tata",` +
		`"sellingPrice":2800,"mrp":3000,"packsize":"1 kg",` +
		`"images":[{"path":"cms/product/salt.png"}]}` +
		`</script>`}

	a := newZepto(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://www.zepto.com/pn/tata-salt/pvid/"+zeptoUUID)

	assert.Empty(t, rec.Error)
	assert.Equal(t, "Tata Salt 1kg", rec.Name)
	assert.Equal(t, "Tata", rec.Brand)
	assert.Equal(t, 28.0, rec.Price)
	assert.Equal(t, 30.0, rec.MRP)
	assert.Equal(t, "https://cdn.zeptonow.com/production///cms/product/salt.png", rec.ImageURL)
	assert.Equal(t, models.InStock, rec.Availability)
}

func TestZeptoAvailabilitySoldOut(t *testing.T) {
	page := &contentPage{content: `<script>` +
		`{"id":"` + zeptoUUID + `","name":"Tata Salt 1kg","sellingPrice":2800,"isSoldOut":true}` +
		`</script>`}

	a := newZepto(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://www.zepto.com/pn/tata-salt/pvid/"+zeptoUUID)

	assert.Equal(t, models.OutOfStock, rec.Availability)
}

func TestZeptoAvailabilityNotFound(t *testing.T) {
	page := &contentPage{content: `<html><body>Looks like the product made an egg-sit!</body></html>`}

	a := newZepto(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://www.zepto.com/pn/gone/pvid/"+zeptoUUID)

	assert.Equal(t, models.NotFound, rec.Availability)
	assert.Empty(t, rec.Error, "a missing product page is an answer, not a failure")
}

func TestZeptoCatalogHybridMerge(t *testing.T) {
	page := &contentPage{content: `<html><body>` +
		`<a href="/pn/tata-salt/pvid/` + zeptoUUID + `">` +
		`<div data-slot-id="ProductImageWrapper"><img src="https://cdn.zeptonow.com/tile.png"/></div>` +
		`<div data-slot-id="ProductName">Tata Salt 1kg</div>` +
		`<div data-slot-id="PackSize">1 kg</div>` +
		`<div data-slot-id="EdlpPrice"><span>₹27</span></div>` +
		`</a>` +
		`<script>{"id":"` + zeptoUUID + `","name":"Tata Salt 1kg","brandName":"Tata","sellingPrice":2800,"mrp":3000}</script>` +
		`</body></html>`}

	a := newZepto(page, testConfig(), nil)
	products := a.FetchCatalog(context.Background(), "https://www.zepto.com/cn/masala/cid/1")

	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Tata Salt 1kg", p.Name)
	assert.Equal(t, 27.0, p.Price, "displayed tile price wins over embedded")
	assert.Equal(t, 30.0, p.MRP, "MRP comes from the embedded record in rupees")
	assert.Equal(t, "Tata", p.Brand)
	assert.Equal(t, "1 kg", p.Weight)
	assert.Equal(t, "https://cdn.zeptonow.com/tile.png", p.ImageURL)
}

func TestZeptoCatalogFallsBackToEmbeddedWithoutTiles(t *testing.T) {
	page := &contentPage{content: `<script>` +
		`{"id":"` + zeptoUUID + `","name":"Tata Salt 1kg","sellingPrice":2800,"mrp":3000}` +
		`</script>`}

	a := newZepto(page, testConfig(), nil)
	products := a.FetchCatalog(context.Background(), "https://www.zepto.com/cn/masala/cid/1")

	require.Len(t, products, 1)
	assert.Equal(t, 28.0, products[0].Price)
}

func TestInstamartAvailabilityFromMetadata(t *testing.T) {
	page := &contentPage{content: `<html><head>` +
		`<script type="application/ld+json">{` +
		`"@type": "Product", "name": "Onion (1 kg)", "sku": "ITM123",` +
		`"brand": {"name": "Fresh"},` +
		`"offers": {"price": 35, "availability": "https://schema.org/InStock"}}` +
		`</script></head><body></body></html>`}

	a := newInstamart(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://www.swiggy.com/instamart/item/ITM123")

	assert.Empty(t, rec.Error)
	assert.Equal(t, "Onion (1 kg)", rec.Name)
	assert.Equal(t, "Fresh", rec.Brand)
	assert.Equal(t, 35.0, rec.Price)
	assert.Equal(t, "1 kg", rec.Weight, "pack size is lifted out of the name")
	assert.Equal(t, models.InStock, rec.Availability)
}

func TestInstamartAvailabilityPrefersURLItem(t *testing.T) {
	page := &contentPage{content: `<html><head>` +
		`<script type="application/ld+json">[` +
		`{"@type": "Product", "name": "Potato (2 kg)", "sku": "ITM999",` +
		` "brand": {"name": "Fresh"}, "image": "https://cdn.example.com/potato.jpg",` +
		` "offers": {"price": 60, "availability": "https://schema.org/InStock"}},` +
		`{"@type": "Product", "name": "Onion (1 kg)", "sku": "ITM123",` +
		` "offers": {"price": 35}}` +
		`]</script></head><body></body></html>`}

	a := newInstamart(page, testConfig(), nil)
	rec := a.FetchAvailability(context.Background(), "https://www.swiggy.com/instamart/item/ITM123")

	assert.Equal(t, "Onion (1 kg)", rec.Name, "the item named by the URL wins over a richer sibling")
	assert.Equal(t, 35.0, rec.Price)
}

func TestInstamartCatalogFromItemList(t *testing.T) {
	page := &contentPage{content: `<html><head>` +
		`<script type="application/ld+json">{` +
		`"@type": "ItemList", "itemListElement": [` +
		`{"@type": "ListItem", "item": {"@type": "Product", "name": "Onion (1 kg)", "sku": "A", "offers": {"price": 35}}},` +
		`{"@type": "ListItem", "item": {"@type": "Product", "name": "Tomato (500 g)", "sku": "B", "offers": {"price": 22, "availability": "https://schema.org/OutOfStock"}}}` +
		`]}</script></head><body></body></html>`}

	a := newInstamart(page, testConfig(), nil)
	products := a.FetchCatalog(context.Background(), "https://www.swiggy.com/instamart/category/fresh-vegetables")

	require.Len(t, products, 2)
	byID := make(map[string]*models.CanonicalProduct)
	for _, p := range products {
		byID[p.ProductID] = p
	}
	assert.Equal(t, "1 kg", byID["A"].Weight)
	assert.Equal(t, models.OutOfStock, byID["B"].Availability)
}

func TestSelectCandidate(t *testing.T) {
	urlID := regexp.MustCompile(`prid/(\d+)`)
	small := extract.Record{"product_id": "12345", "product_name": "Target"}
	big := extract.Record{
		"product_id":   "99999",
		"product_name": "Related",
		"price":        50.0,
		"mrp":          55.0,
		"inventory":    10.0,
	}

	t.Run("url id wins over detail score", func(t *testing.T) {
		chosen := selectCandidate([]extract.Record{big, small}, "product_id", urlID, "https://blinkit.com/prn/x/prid/12345")
		assert.Equal(t, "Target", chosen.String("product_name"))
	})

	t.Run("no url id falls back to most detailed", func(t *testing.T) {
		chosen := selectCandidate([]extract.Record{small, big}, "product_id", urlID, "https://blinkit.com/prn/x")
		assert.Equal(t, "Related", chosen.String("product_name"))
	})

	t.Run("empty candidates", func(t *testing.T) {
		assert.Nil(t, selectCandidate(nil, "product_id", urlID, "https://blinkit.com/prn/x/prid/12345"))
	})
}

func TestRecoveryKeyword(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://blinkit.com/cn/dairy-bread-eggs/cid/100", "dairy-bread-eggs"},
		{"https://www.zepto.com/cn/masala/cid/1", ""},
		{"https://example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, recoveryKeyword(tt.url))
		})
	}
}

func TestNewRejectsUnknownPlatform(t *testing.T) {
	_, err := New(models.PlatformUnknown, &contentPage{}, testConfig(), nil)
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}
