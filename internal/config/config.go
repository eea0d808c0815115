package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Concurrency     int
	DefaultPincode  string
	NavTimeout      time.Duration
	CandidateWait   time.Duration
	SettleDelay     time.Duration
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
	MaxNavRetries   int
	ScreenshotOnErr bool
	SnapshotDir     string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	BlockResources bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Enabled  bool
}

type RedisConfig struct {
	Addr    string
	DB      int
	EtaTTL  time.Duration
	Enabled bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			Concurrency:     getIntOrDefault("SCRAPER_CONCURRENCY", 1),
			DefaultPincode:  getEnvOrDefault("SCRAPER_DEFAULT_PINCODE", "560001"),
			NavTimeout:      getDurationOrDefault("SCRAPER_NAV_TIMEOUT", 60*time.Second),
			CandidateWait:   getDurationOrDefault("SCRAPER_CANDIDATE_WAIT", 3*time.Second),
			SettleDelay:     getDurationOrDefault("SCRAPER_SETTLE_DELAY", 2*time.Second),
			RateLimitMin:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax:    getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 6*time.Second),
			MaxNavRetries:   getIntOrDefault("SCRAPER_MAX_NAV_RETRIES", 3),
			ScreenshotOnErr: getBoolOrDefault("SCRAPER_SCREENSHOT_ON_ERROR", true),
			SnapshotDir:     getEnvOrDefault("SCRAPER_SNAPSHOT_DIR", "debug"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			BlockResources: getBoolOrDefault("BROWSER_BLOCK_RESOURCES", true),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "qcom_scraper"),
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			DB:      getIntOrDefault("REDIS_DB", 0),
			EtaTTL:  getDurationOrDefault("REDIS_ETA_TTL", 30*time.Minute),
			Enabled: getBoolOrDefault("REDIS_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be at least 1")
	}

	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.CandidateWait <= 0 {
		return fmt.Errorf("SCRAPER_CANDIDATE_WAIT must be positive")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
