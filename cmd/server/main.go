package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quickshelf/qcom-scraper/internal/api"
	"github.com/quickshelf/qcom-scraper/internal/browser"
	"github.com/quickshelf/qcom-scraper/internal/cache"
	"github.com/quickshelf/qcom-scraper/internal/config"
	"github.com/quickshelf/qcom-scraper/internal/jobs"
	"github.com/quickshelf/qcom-scraper/internal/models"
	"github.com/quickshelf/qcom-scraper/internal/ratelimit"
	"github.com/quickshelf/qcom-scraper/internal/scraper"
	"github.com/quickshelf/qcom-scraper/internal/session"
	"github.com/quickshelf/qcom-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slogger.Info("starting scraper server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A server always renders in the background.
	opts := browser.DefaultOptions()
	opts.Headless = true
	opts.Timeout = cfg.Browser.Timeout
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.BlockResources = cfg.Browser.BlockResources

	b, err := browser.New(opts)
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

	factory := func(p models.Platform, _ bool) (scraper.Adapter, error) {
		page, err := b.NewPage(cfg.Scraper.NavTimeout, cfg.Scraper.MaxNavRetries)
		if err != nil {
			return nil, err
		}
		return scraper.New(p, page, cfg, etaCache)
	}

	limiter := ratelimit.NewSimpleLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)
	controller := scraper.NewController(factory, cfg.Scraper.Concurrency, limiter)

	manager := jobs.NewManager(controller)
	go manager.Work(ctx)

	handlers := api.NewHandlers(manager)
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slogger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server failed", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		slogger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("shutdown failed", "error", err)
	}
}
