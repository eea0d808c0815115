package extract

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Canonical keys the JSON-LD extractor writes into its output records.
const (
	KeySKU          = "sku"
	KeyName         = "name"
	KeyBrand        = "brand"
	KeyPrice        = "price"
	KeyAvailability = "availability"
	KeyImage        = "image"
)

// JSONLDScripts pulls the payloads of every ld+json script block out of the
// markup. Parsing errors in individual payloads are left to the caller.
func JSONLDScripts(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var payloads []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			payloads = append(payloads, text)
		}
	})
	return payloads
}

// ExtractJSONLD parses schema.org product metadata out of the given script
// payloads and returns one record per product, keyed by sku (or a synthetic
// hash of the name when sku is absent). Handles a single Product object, a
// list of Products, an @graph wrapper and an ItemList of Products. Malformed
// payloads and non-product entries are skipped; one bad script never aborts
// extraction of the others.
func ExtractJSONLD(payloads []string) map[string]Record {
	products := make(map[string]Record)

	for _, payload := range payloads {
		var data any
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			continue
		}
		collectProducts(data, products)
	}

	return products
}

func collectProducts(data any, out map[string]Record) {
	switch node := data.(type) {
	case map[string]any:
		rec := Record(node)
		switch rec.String("@type") {
		case "Product":
			addProduct(rec, out)
		case "ItemList":
			if elems, ok := node["itemListElement"].([]any); ok {
				for _, e := range elems {
					collectProducts(e, out)
				}
			}
		default:
			if graph, ok := node["@graph"].([]any); ok {
				for _, e := range graph {
					collectProducts(e, out)
				}
			}
			// ListItem wrappers nest the product under "item".
			if item, ok := node["item"]; ok {
				collectProducts(item, out)
			}
		}
	case []any:
		for _, e := range node {
			collectProducts(e, out)
		}
	}
}

func addProduct(rec Record, out map[string]Record) {
	name := rec.String("name")
	if name == "" {
		return
	}

	id := rec.String("sku")
	if id == "" {
		id = syntheticID(name)
	}

	product := Record{
		KeySKU:  id,
		KeyName: name,
	}

	if brand, ok := rec["brand"].(map[string]any); ok {
		product[KeyBrand] = Record(brand).String("name")
	} else if b := rec.String("brand"); b != "" {
		product[KeyBrand] = b
	}

	// Offer may be a single object or the first of a list.
	offer := firstOffer(rec["offers"])
	if offer != nil {
		if price, ok := offer.Float("price"); ok {
			product[KeyPrice] = price
		}
		if avail := offer.String("availability"); avail != "" {
			product[KeyAvailability] = avail
		}
	}

	switch img := rec["image"].(type) {
	case string:
		product[KeyImage] = img
	case []any:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok {
				product[KeyImage] = s
			}
		}
	}

	out[id] = product
}

func firstOffer(v any) Record {
	switch offer := v.(type) {
	case map[string]any:
		return Record(offer)
	case []any:
		if len(offer) > 0 {
			if m, ok := offer[0].(map[string]any); ok {
				return Record(m)
			}
		}
	}
	return nil
}

// syntheticID derives a stable identity for products whose metadata carries
// no sku.
func syntheticID(name string) string {
	h := fnv.New64a()
	h.Write([]byte(name))
	return strconv.FormatUint(h.Sum64(), 16)
}
