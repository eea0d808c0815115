package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

// ResultStore persists scrape output. Schema:
//
//	CREATE TABLE availability_results (
//	    id BIGSERIAL PRIMARY KEY,
//	    batch_id UUID,
//	    input_pincode TEXT NOT NULL,
//	    url TEXT NOT NULL,
//	    platform TEXT NOT NULL,
//	    name TEXT,
//	    brand TEXT,
//	    price NUMERIC,
//	    mrp NUMERIC,
//	    weight TEXT,
//	    image_url TEXT,
//	    delivery_eta TEXT,
//	    availability TEXT NOT NULL,
//	    error TEXT,
//	    scraped_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE catalog_products (
//	    id BIGSERIAL PRIMARY KEY,
//	    batch_id UUID,
//	    platform TEXT NOT NULL,
//	    category TEXT,
//	    name TEXT NOT NULL,
//	    brand TEXT,
//	    price NUMERIC,
//	    mrp NUMERIC,
//	    weight TEXT,
//	    delivery_eta TEXT,
//	    availability TEXT NOT NULL,
//	    inventory TEXT,
//	    store_id TEXT,
//	    product_id TEXT,
//	    shelf_life TEXT,
//	    product_url TEXT,
//	    image_url TEXT,
//	    pincode TEXT,
//	    scraped_at TIMESTAMPTZ NOT NULL
//	);
type ResultStore struct {
	db *DB
}

func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveAvailability stores a whole batch atomically.
func (s *ResultStore) SaveAvailability(ctx context.Context, batchID string, records []*models.AvailabilityRecord) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, r := range records {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_results
				(batch_id, input_pincode, url, platform, name, brand, price, mrp,
				 weight, image_url, delivery_eta, availability, error, scraped_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			`, batchID, r.InputPincode, r.URL, r.Platform, r.Name, r.Brand,
				r.Price, r.MRP, r.Weight, r.ImageURL, r.DeliveryETA,
				r.Availability, nullable(r.Error), r.ScrapedAt)
			if err != nil {
				return fmt.Errorf("failed to insert availability result: %w", err)
			}
		}
		return nil
	})
}

// SaveCatalog stores a catalog extraction atomically.
func (s *ResultStore) SaveCatalog(ctx context.Context, batchID string, products []*models.CanonicalProduct) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, p := range products {
			_, err := tx.Exec(ctx, `
				INSERT INTO catalog_products
				(batch_id, platform, category, name, brand, price, mrp, weight,
				 delivery_eta, availability, inventory, store_id, product_id,
				 shelf_life, product_url, image_url, pincode, scraped_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				        $14, $15, $16, $17, $18)
			`, batchID, p.Platform, p.Category, p.Name, p.Brand, p.Price, p.MRP,
				p.Weight, p.DeliveryETA, p.Availability, p.Inventory, p.StoreID,
				p.ProductID, p.ShelfLife, p.ProductURL, p.ImageURL, p.Pincode,
				p.ScrapedAt)
			if err != nil {
				return fmt.Errorf("failed to insert catalog product: %w", err)
			}
		}
		return nil
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
