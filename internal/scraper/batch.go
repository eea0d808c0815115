package scraper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/ratelimit"
)

// AdapterFactory opens a ready adapter for a platform. background selects
// non-interactive rendering; concurrent batches always run background
// sessions to conserve resources.
type AdapterFactory func(platform models.Platform, background bool) (Adapter, error)

// Controller runs availability checks over many input rows under bounded
// concurrency. Sequential mode (concurrency 1) reuses one adapter and its
// location session across consecutive rows sharing (platform, pincode),
// amortizing the location state machine. Concurrent mode gives every task
// its own session; output order is then unspecified.
type Controller struct {
	factory     AdapterFactory
	concurrency int
	limiter     ratelimit.Limiter
	logger      *slog.Logger
}

func NewController(factory AdapterFactory, concurrency int, limiter ratelimit.Limiter) *Controller {
	if concurrency < 1 {
		concurrency = 1
	}
	if limiter == nil {
		limiter = ratelimit.None{}
	}
	return &Controller{
		factory:     factory,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      slog.Default().With("component", "batch_controller"),
	}
}

// Run processes the rows. Rows whose platform cannot be determined are
// skipped and logged, not turned into error records; every other row yields
// exactly one record. A row's own failure is caught inside its adapter and
// never blocks sibling rows.
func (c *Controller) Run(ctx context.Context, rows []models.InputRow, defaultPincode string) []*models.AvailabilityRecord {
	if c.concurrency == 1 {
		return c.runSequential(ctx, rows, defaultPincode)
	}
	return c.runConcurrent(ctx, rows, defaultPincode)
}

func (c *Controller) runSequential(ctx context.Context, rows []models.InputRow, defaultPincode string) []*models.AvailabilityRecord {
	var (
		results []*models.AvailabilityRecord
		current Adapter
	)
	defer func() {
		if current != nil {
			current.Close()
		}
	}()

	currentPincode := ""

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}

		platform, pincode, ok := c.resolveRow(row, defaultPincode)
		if !ok {
			continue
		}

		// Session churn only on change of platform or location.
		if current != nil && (current.Platform() != platform || currentPincode != pincode) {
			current.Close()
			current = nil
		}

		if current == nil {
			adapter, err := c.factory(platform, false)
			if err != nil {
				c.logger.Error("could not open adapter", "platform", platform, "error", err)
				continue
			}
			adapter.SetLocation(ctx, pincode)
			current = adapter
			currentPincode = pincode
		}

		if err := c.limiter.Wait(ctx); err != nil {
			break
		}

		results = append(results, current.FetchAvailability(ctx, row.URL))
	}

	return results
}

func (c *Controller) runConcurrent(ctx context.Context, rows []models.InputRow, defaultPincode string) []*models.AvailabilityRecord {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*models.AvailabilityRecord
	)
	gate := make(chan struct{}, c.concurrency)

	for _, row := range rows {
		platform, pincode, ok := c.resolveRow(row, defaultPincode)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(row models.InputRow, platform models.Platform, pincode string) {
			defer wg.Done()

			select {
			case gate <- struct{}{}:
				defer func() { <-gate }()
			case <-ctx.Done():
				return
			}

			adapter, err := c.factory(platform, true)
			if err != nil {
				c.logger.Error("could not open adapter", "platform", platform, "error", err)
				return
			}
			defer adapter.Close()

			adapter.SetLocation(ctx, pincode)
			record := adapter.FetchAvailability(ctx, row.URL)

			// Appended only after the row fully completes; no partial
			// writes reach the shared slice.
			mu.Lock()
			results = append(results, record)
			mu.Unlock()
		}(row, platform, pincode)
	}

	wg.Wait()
	return results
}

func (c *Controller) resolveRow(row models.InputRow, defaultPincode string) (models.Platform, string, bool) {
	if row.URL == "" {
		return models.PlatformUnknown, "", false
	}

	platform := models.DetectPlatform(row.URL)
	if platform == models.PlatformUnknown {
		c.logger.Warn("skipping row with unknown platform", "url", row.URL)
		return platform, "", false
	}

	pincode := row.Pincode
	if pincode == "" {
		pincode = defaultPincode
	}
	return platform, pincode, true
}
