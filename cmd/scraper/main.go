package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/cache"
	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/database"
	"github.com/quickshelf/qcom-scraper/internal/export"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/ratelimit"
	"github.com/quickshelf/qcom-scraper/internal/scraper"
	"github.com/quickshelf/qcom-scraper/internal/session"
	"github.com/quickshelf/qcom-scraper/pkg/logger"
)

func main() {
	var (
		mode        = flag.String("mode", "availability", "Run mode: assortment or availability")
		platform    = flag.String("platform", "", "Platform for assortment mode: blinkit, zepto or instamart")
		categoryURL = flag.String("url", "", "Category URL for assortment mode")
		pincode     = flag.String("pincode", "", "Delivery pincode (default from config)")
		inputFile   = flag.String("input", "", "Input CSV of url,pincode rows for availability mode")
		output      = flag.String("output", "", "Output CSV path")
		concurrency = flag.Int("concurrency", 0, "Concurrent sessions for availability mode (default from config)")
		headless    = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *pincode == "" {
		*pincode = cfg.Scraper.DefaultPincode
	}
	if *concurrency > 0 {
		cfg.Scraper.Concurrency = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slogger.Info("starting quick-commerce scraper", "mode", *mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slogger.Info("shutdown signal received")
		cancel()
	}()

	// Concurrent sessions always render in the background.
	browserHeadless := *headless && cfg.Browser.Headless
	if cfg.Scraper.Concurrency > 1 {
		browserHeadless = true
	}

	b, err := browser.New(&browser.Options{
		Headless:       browserHeadless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      browser.DefaultOptions().UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		BlockResources: cfg.Browser.BlockResources,
		ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
	})
	if err != nil {
		slogger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	var etaCache session.EtaCache
	if cfg.Redis.Enabled {
		c, err := cache.NewEtaCache(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.EtaTTL)
		if err != nil {
			slogger.Warn("eta cache unavailable, continuing without it", "error", err)
		} else {
			defer c.Close()
			etaCache = c
		}
	}

	var store *database.ResultStore
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
		})
		if err != nil {
			slogger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = database.NewResultStore(db)
	}

	factory := func(p models.Platform, _ bool) (scraper.Adapter, error) {
		page, err := b.NewPage(cfg.Scraper.NavTimeout, cfg.Scraper.MaxNavRetries)
		if err != nil {
			return nil, err
		}
		return scraper.New(p, page, cfg, etaCache)
	}

	var exitCode int
	switch *mode {
	case "assortment":
		exitCode = runAssortment(ctx, factory, store, *platform, *categoryURL, *pincode, *output)
	case "availability":
		exitCode = runAvailability(ctx, cfg, factory, store, *inputFile, *pincode, *output)
	default:
		slogger.Error("unknown mode", "mode", *mode)
		exitCode = 2
	}
	os.Exit(exitCode)
}

func runAssortment(ctx context.Context, factory scraper.AdapterFactory,
	store *database.ResultStore, platform, categoryURL, pincode, output string) int {

	slogger := logOp("assortment")
	if platform == "" || categoryURL == "" {
		slogger.Error("platform and url are required for assortment mode")
		return 2
	}

	adapter, err := factory(models.Platform(platform), false)
	if err != nil {
		slogger.Error("could not open adapter", "platform", platform, "error", err)
		return 1
	}
	defer adapter.Close()

	adapter.SetLocation(ctx, pincode)
	products := adapter.FetchCatalog(ctx, categoryURL)
	slogger.Info("catalog fetched", "products", len(products))

	if output == "" {
		output = filepath.Join("data", fmt.Sprintf("%s_assortment.csv", platform))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		slogger.Error("could not create output directory", "error", err)
		return 1
	}
	if err := export.WriteCatalog(output, products); err != nil {
		slogger.Error("failed to write output", "error", err)
		return 1
	}
	slogger.Info("saved assortment", "file", output)

	if store != nil {
		if err := store.SaveCatalog(ctx, uuid.New().String(), products); err != nil {
			slogger.Error("failed to persist catalog", "error", err)
		}
	}
	return 0
}

func runAvailability(ctx context.Context, cfg *config.Config, factory scraper.AdapterFactory,
	store *database.ResultStore, inputFile, pincode, output string) int {

	slogger := logOp("availability")
	if inputFile == "" {
		slogger.Error("input file is required for availability mode")
		return 2
	}

	rows, err := export.ReadInputRows(inputFile)
	if err != nil {
		slogger.Error("failed to read input", "error", err)
		return 1
	}
	slogger.Info("input loaded", "rows", len(rows))

	var limiter ratelimit.Limiter
	if cfg.Scraper.Concurrency == 1 {
		limiter = ratelimit.NewSimpleLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)
	}

	controller := scraper.NewController(factory, cfg.Scraper.Concurrency, limiter)
	results := controller.Run(ctx, rows, pincode)
	slogger.Info("batch finished", "results", len(results))

	if output == "" {
		output = filepath.Join("data", "availability_results.csv")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		slogger.Error("could not create output directory", "error", err)
		return 1
	}
	if err := export.WriteAvailability(output, results); err != nil {
		slogger.Error("failed to write output", "error", err)
		return 1
	}
	slogger.Info("saved availability results", "file", output)

	if store != nil {
		if err := store.SaveAvailability(ctx, uuid.New().String(), results); err != nil {
			slogger.Error("failed to persist results", "error", err)
		}
	}
	return 0
}

func logOp(mode string) *slog.Logger {
	return slog.Default().With("mode", mode)
}
