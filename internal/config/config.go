package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"` // postgres, mysql
	DatabaseURL string `envconfig:"DATABASE_URL" default:"host=localhost port=5432 user=admin password=adminpass dbname=testdb sslmode=disable"`
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogFile     string `envconfig:"LOG_FILE" default:""`
	ItemsFile   string `envconfig:"ITEMS_FILE" default:""`

	Market   MarketConfig
	LisSkins LisSkinsConfig
	Rate     RateConfig
	Pipeline PipelineConfig
	Schedule ScheduleConfig
	Redis    RedisConfig

	Catalog *Catalog `ignored:"true"`
}

// MarketConfig holds market.csgo.com settings.
type MarketConfig struct {
	APIKey       string        `envconfig:"MARKET_API_KEY" default:""`
	BaseURL      string        `envconfig:"MARKET_BASE_URL" default:"https://market.csgo.com"`
	ItemURL      string        `envconfig:"MARKET_ITEM_URL" default:"https://market.csgo.com/ru/item/"`
	ExportFile   string        `envconfig:"MARKET_EXPORT_FILE" default:"USD.json"`
	Timeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	StatsRetries int           `envconfig:"STATS_RETRIES" default:"0"`
	RepriceDelay time.Duration `envconfig:"REPRICE_DELAY" default:"1500ms"`
	ListCurrency string        `envconfig:"MARKET_LIST_CURRENCY" default:"RUB"`
}

// LisSkinsConfig holds lis-skins.com export settings.
type LisSkinsConfig struct {
	ExportURL string        `envconfig:"LIS_SKINS_URL" default:"https://lis-skins.com/market_export_json/csgo.json"`
	Timeout   time.Duration `envconfig:"LIS_SKINS_TIMEOUT" default:"30s"`
}

// RateConfig holds the currency rate source.
type RateConfig struct {
	URL      string        `envconfig:"RATE_URL" default:"https://www.cbr-xml-daily.ru/daily_json.js"`
	Fallback float64       `envconfig:"RATE_FALLBACK" default:"95.0"`
	Markup   float64       `envconfig:"RATE_MARKUP" default:"1.0"`
	Timeout  time.Duration `envconfig:"RATE_TIMEOUT" default:"5s"`
}

// PipelineConfig tunes the parsing run.
type PipelineConfig struct {
	ShardWorkers     int           `envconfig:"SHARD_WORKERS" default:"20"`
	ShardSubmitDelay time.Duration `envconfig:"SHARD_SUBMIT_DELAY" default:"5ms"`
	BatchSize        int           `envconfig:"STATS_BATCH_SIZE" default:"30"`
	BatchDelay       time.Duration `envconfig:"STATS_BATCH_DELAY" default:"700ms"`
	PriceCurrency    string        `envconfig:"PRICE_CURRENCY" default:"USD"`
}

type ScheduleConfig struct {
	Enabled bool   `envconfig:"SCHEDULE_ENABLED" default:"true"`
	Spec    string `envconfig:"SCHEDULE" default:"@every 5m"`
}

// RedisConfig is optional; an empty address keeps sessions and the run lock in process.
type RedisConfig struct {
	Addr       string        `envconfig:"REDIS_ADDR" default:""`
	Password   string        `envconfig:"REDIS_PASSWORD" default:""`
	DB         int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"15m"`
	LockTTL    time.Duration `envconfig:"RUN_LOCK_TTL" default:"30m"`
}

func Load() (*Config, error) {
	// Missing .env is fine, the process environment wins anyway
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	catalog := DefaultCatalog()
	if cfg.ItemsFile != "" {
		loaded, err := LoadCatalog(cfg.ItemsFile)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	cfg.Catalog = catalog

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
