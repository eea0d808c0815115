// Package export handles the tabular edges of the system: reading batch
// input rows and writing result files. CSV is the interchange format.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/quickshelf/qcom-scraper/internal/models"
)

// Input column aliases, matched case-insensitively. Batch files come from
// several hands and name their columns differently.
var (
	urlColumns     = []string{"url", "product link", "product url"}
	pincodeColumns = []string{"pincode", "pin code", "pin"}
)

// ReadInputRows loads a CSV of availability inputs. Rows without a URL are
// dropped. The first row is treated as a header.
func ReadInputRows(path string) ([]models.InputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	urlIdx := findColumn(records[0], urlColumns)
	pinIdx := findColumn(records[0], pincodeColumns)
	if urlIdx < 0 {
		return nil, fmt.Errorf("input file has no url column (looked for %v)", urlColumns)
	}

	var rows []models.InputRow
	for _, record := range records[1:] {
		if urlIdx >= len(record) {
			continue
		}
		row := models.InputRow{URL: strings.TrimSpace(record[urlIdx])}
		if row.URL == "" {
			continue
		}
		if pinIdx >= 0 && pinIdx < len(record) {
			row.Pincode = strings.TrimSpace(record[pinIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func findColumn(header []string, names []string) int {
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		for _, name := range names {
			if col == name {
				return i
			}
		}
	}
	return -1
}

// WriteAvailability writes one output row per availability record.
func WriteAvailability(path string, records []*models.AvailabilityRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"input_pincode", "url", "platform", "name", "brand", "price", "mrp",
		"weight", "image_url", "delivery_eta", "availability", "scraped_at", "error",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.InputPincode,
			r.URL,
			string(r.Platform),
			r.Name,
			r.Brand,
			formatPrice(r.Price),
			formatPrice(r.MRP),
			r.Weight,
			r.ImageURL,
			r.DeliveryETA,
			string(r.Availability),
			r.ScrapedAt.Format("2006-01-02 15:04:05"),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteCatalog writes one output row per canonical product.
func WriteCatalog(path string, products []*models.CanonicalProduct) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"platform", "category", "name", "brand", "price", "mrp", "weight",
		"delivery_eta", "availability", "inventory", "store_id", "product_id",
		"shelf_life", "product_url", "image_url", "pincode", "scraped_at",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, p := range products {
		row := []string{
			string(p.Platform),
			p.Category,
			p.Name,
			p.Brand,
			formatPrice(p.Price),
			formatPrice(p.MRP),
			p.Weight,
			p.DeliveryETA,
			string(p.Availability),
			p.Inventory,
			p.StoreID,
			p.ProductID,
			p.ShelfLife,
			p.ProductURL,
			p.ImageURL,
			p.Pincode,
			p.ScrapedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatPrice(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
