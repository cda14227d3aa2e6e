package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	DatabaseDriver string // mysql, sqlite
	DatabaseURL    string

	RedisAddr     string // empty disables the latest-price cache
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	JWTSecret     string
	WhatsAppPhone string

	LogLevel  string
	LogFormat string // text, json

	// One source page per metal
	GoldPriceURL   string
	GoldSelector   string
	SilverPriceURL string
	SilverSelector string

	ScrapeTimeout   time.Duration
	ScrapeMinGap    time.Duration
	ScrapeUserAgent string

	// Scheduler window, local time. End hour is inclusive: 5..13 fires up to 13:45.
	ScheduleEveryMinutes int
	ScheduleStartHour    int
	ScheduleEndHour      int

	CartTTL time.Duration
}

func Load() *Config {
	defaultDSN := "root:root@tcp(127.0.0.1:3306)/welcome_craft?charset=utf8mb4&parseTime=True&loc=UTC"

	return &Config{
		Port:        getEnv("PORT", "8081"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseURL:    getEnv("DATABASE_URL", defaultDSN),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      getEnvDuration("REDIS_TTL", 15*time.Minute),

		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key"),
		WhatsAppPhone: getEnv("WHATSAPP_PHONE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GoldPriceURL:   getEnv("GOLD_PRICE_URL", "https://www.sharesansar.com/bullion"),
		GoldSelector:   getEnv("GOLD_SELECTOR", "gold-cell"),
		SilverPriceURL: getEnv("SILVER_PRICE_URL", "https://www.sharesansar.com/bullion"),
		SilverSelector: getEnv("SILVER_SELECTOR", "silver-row"),

		ScrapeTimeout:   getEnvDuration("SCRAPE_TIMEOUT", 10*time.Second),
		ScrapeMinGap:    getEnvDuration("SCRAPE_MIN_GAP", 2*time.Second),
		ScrapeUserAgent: getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (compatible; welcome-craft-price-bot/1.0)"),

		ScheduleEveryMinutes: getEnvInt("SCHEDULE_EVERY_MINUTES", 15),
		ScheduleStartHour:    getEnvInt("SCHEDULE_START_HOUR", 5),
		ScheduleEndHour:      getEnvInt("SCHEDULE_END_HOUR", 13),

		CartTTL: getEnvDuration("CART_TTL", 7*24*time.Hour),
	}
}

// Validate reports the first setting that cannot produce a working process.
func (c *Config) Validate() error {
	if c.DatabaseDriver != "mysql" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.ScheduleEveryMinutes <= 0 || c.ScheduleEveryMinutes > 59 {
		return fmt.Errorf("SCHEDULE_EVERY_MINUTES must be within 1..59, got %d", c.ScheduleEveryMinutes)
	}
	if c.ScheduleStartHour < 0 || c.ScheduleEndHour > 23 || c.ScheduleStartHour > c.ScheduleEndHour {
		return fmt.Errorf("invalid schedule window %d-%d", c.ScheduleStartHour, c.ScheduleEndHour)
	}
	if c.ScrapeTimeout <= 0 {
		return fmt.Errorf("SCRAPE_TIMEOUT must be positive")
	}
	if c.GoldPriceURL == "" || c.SilverPriceURL == "" {
		return fmt.Errorf("GOLD_PRICE_URL and SILVER_PRICE_URL are required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
