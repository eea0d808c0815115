package models

import (
	"strings"
	"time"
)

// Platform identifies the quick-commerce site a record came from.
type Platform string

const (
	PlatformBlinkit   Platform = "blinkit"
	PlatformZepto     Platform = "zepto"
	PlatformInstamart Platform = "instamart"
	PlatformUnknown   Platform = "unknown"
)

// DetectPlatform infers the platform from a product or category URL.
// Returns PlatformUnknown when no known domain substring matches.
func DetectPlatform(url string) Platform {
	switch {
	case strings.Contains(url, "blinkit.com"), strings.Contains(url, "blinkit"):
		return PlatformBlinkit
	case strings.Contains(url, "zepto"):
		return PlatformZepto
	case strings.Contains(url, "swiggy.com"), strings.Contains(url, "instamart"):
		return PlatformInstamart
	default:
		return PlatformUnknown
	}
}

// Availability is the stock status of a product at scrape time.
type Availability string

const (
	InStock    Availability = "In Stock"
	OutOfStock Availability = "Out of Stock"
	Unknown    Availability = "Unknown"
	NotFound   Availability = "Not Found"
	ErrorState Availability = "Error"
)

// CanonicalProduct is one reconciled catalog listing.
type CanonicalProduct struct {
	Platform     Platform     `json:"platform"`
	Category     string       `json:"category"`
	Name         string       `json:"name"`
	Brand        string       `json:"brand"`
	Price        float64      `json:"price"`
	MRP          float64      `json:"mrp"`
	Weight       string       `json:"weight"`
	DeliveryETA  string       `json:"delivery_eta"`
	Availability Availability `json:"availability"`
	Inventory    string       `json:"inventory"`
	StoreID      string       `json:"store_id,omitempty"`
	ProductID    string       `json:"product_id"`
	ShelfLife    string       `json:"shelf_life"`
	ProductURL   string       `json:"product_url"`
	ImageURL     string       `json:"image_url"`
	Pincode      string       `json:"pincode"`
	ScrapedAt    time.Time    `json:"scraped_at"`
}

// AvailabilityRecord is the outcome of a single-item availability check.
// If Error is non-empty, Availability is Unknown or ErrorState.
type AvailabilityRecord struct {
	InputPincode string       `json:"input_pincode"`
	URL          string       `json:"url"`
	Platform     Platform     `json:"platform"`
	Name         string       `json:"name"`
	Brand        string       `json:"brand"`
	Price        float64      `json:"price"`
	MRP          float64      `json:"mrp"`
	Weight       string       `json:"weight"`
	ImageURL     string       `json:"image_url"`
	DeliveryETA  string       `json:"delivery_eta"`
	Availability Availability `json:"availability"`
	ScrapedAt    time.Time    `json:"scraped_at"`
	Error        string       `json:"error,omitempty"`
}

// InputRow is one line of a batch availability input file.
type InputRow struct {
	URL     string `json:"url"`
	Pincode string `json:"pincode"`
}

func NewCanonicalProduct(platform Platform, category, pincode string) *CanonicalProduct {
	return &CanonicalProduct{
		Platform:     platform,
		Category:     category,
		Name:         "Unknown",
		Brand:        "Unknown",
		Weight:       "N/A",
		DeliveryETA:  "unknown",
		Availability: Unknown,
		Inventory:    "Unknown",
		StoreID:      "Unknown",
		ShelfLife:    "N/A",
		Pincode:      pincode,
		ScrapedAt:    time.Now(),
	}
}

func NewAvailabilityRecord(url, pincode string, platform Platform) *AvailabilityRecord {
	return &AvailabilityRecord{
		InputPincode: pincode,
		URL:          url,
		Platform:     platform,
		Name:         "N/A",
		Brand:        "N/A",
		Weight:       "N/A",
		ImageURL:     "N/A",
		DeliveryETA:  "unknown",
		Availability: Unknown,
		ScrapedAt:    time.Now(),
	}
}

// SetError marks the record as failed. An errored record never claims an
// observed stock state: anything other than an explicit error
// classification is reset to Unknown.
func (r *AvailabilityRecord) SetError(msg string) {
	r.Error = msg
	if r.Availability != ErrorState {
		r.Availability = Unknown
	}
}

func (p *CanonicalProduct) Validate() []string {
	var problems []string
	if p.Name == "" || p.Name == "Unknown" {
		problems = append(problems, "name is missing")
	}
	if p.Price < 0 {
		problems = append(problems, "price is negative")
	}
	if p.MRP < 0 {
		problems = append(problems, "mrp is negative")
	}
	return problems
}
