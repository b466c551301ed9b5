package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingDSN          = errors.New("database.dsn is required")
	ErrMissingBucket       = errors.New("bucket.name is required")
	ErrInvalidBatchSize    = errors.New("rollup.batch_size must be positive")
	ErrInvalidUpsertBatch  = errors.New("rollup.upsert_batch_size must be positive")
	ErrInvalidGamesFloor   = errors.New("rollup.games_floor can't be negative")
	ErrInvalidRetries      = errors.New("rollup.upsert_retries can't be negative")
	ErrInvalidCardDivisor  = errors.New("rollup.detailed_card_divisor must be positive")
	ErrInvalidWindowPeriod = errors.New("scheduler.window_interval must be positive")
)

// Redis configuration struct.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type DatabaseConfig struct {
	DSN            string `mapstructure:"dsn"`
	Name           string `mapstructure:"name"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type BucketConfig struct {
	Name              string  `mapstructure:"name"`
	LogBucket         string  `mapstructure:"log_bucket"`
	Region            string  `mapstructure:"region"`
	Endpoint          string  `mapstructure:"endpoint"`
	AccessKey         string  `mapstructure:"access_key"`
	AccessSecret      string  `mapstructure:"access_secret"`
	KeyPrefix         string  `mapstructure:"key_prefix"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type RollupConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	GamesFloor          int64         `mapstructure:"games_floor"`
	DetailedCardDivisor int64         `mapstructure:"detailed_card_divisor"`
	MinDeckCards        int           `mapstructure:"min_deck_cards"`
	UpsertBatchSize     int           `mapstructure:"upsert_batch_size"`
	UpsertRetries       int           `mapstructure:"upsert_retries"`
	UpsertBackoff       time.Duration `mapstructure:"upsert_backoff"`
	LastPatchDate       string        `mapstructure:"last_patch_date"`
}

// Parse the configured patch date, zero if not set.
func (r RollupConfig) LastPatch() (time.Time, error) {
	if r.LastPatchDate == "" {
		return time.Time{}, nil
	}
	patch, err := time.Parse(time.RFC3339, r.LastPatchDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid rollup.last_patch_date: %w", err)
	}
	return patch.UTC(), nil
}

type CardsConfig struct {
	ReferenceURL string        `mapstructure:"reference_url"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type APIConfig struct {
	Port         string        `mapstructure:"port"`
	DeckClassTTL time.Duration `mapstructure:"deck_class_ttl"`
	MemCacheTTL  time.Duration `mapstructure:"mem_cache_ttl"`
	RedisTTL     time.Duration `mapstructure:"redis_ttl"`
	DBFreshness  time.Duration `mapstructure:"db_freshness"`
}

type SchedulerConfig struct {
	MetricsPort    string        `mapstructure:"metrics_port"`
	WindowInterval time.Duration `mapstructure:"window_interval"`
}

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Bucket      BucketConfig    `mapstructure:"bucket"`
	Rollup      RollupConfig    `mapstructure:"rollup"`
	Cards       CardsConfig     `mapstructure:"cards"`
	API         APIConfig       `mapstructure:"api"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.name", "hsmeta")
	v.SetDefault("database.migrations_path", "pkg/database/migrations")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bucket.name", "")
	v.SetDefault("bucket.log_bucket", "")
	v.SetDefault("bucket.region", "us-west-2")
	v.SetDefault("bucket.endpoint", "")
	v.SetDefault("bucket.access_key", "")
	v.SetDefault("bucket.access_secret", "")
	v.SetDefault("bucket.key_prefix", "api/constructed/stats")
	v.SetDefault("bucket.requests_per_second", 50.0)

	v.SetDefault("rollup.batch_size", 5)
	v.SetDefault("rollup.games_floor", 50)
	v.SetDefault("rollup.detailed_card_divisor", 50)
	v.SetDefault("rollup.min_deck_cards", 5)
	v.SetDefault("rollup.upsert_batch_size", 50)
	v.SetDefault("rollup.upsert_retries", 15)
	v.SetDefault("rollup.upsert_backoff", 200*time.Millisecond)
	v.SetDefault("rollup.last_patch_date", "")

	v.SetDefault("cards.reference_url", "https://static.zerotoheroes.com/hearthstone/jsoncards/cards.json")
	v.SetDefault("cards.cache_ttl", 24*time.Hour)

	v.SetDefault("api.port", "8080")
	v.SetDefault("api.deck_class_ttl", 5*time.Minute)
	v.SetDefault("api.mem_cache_ttl", 15*time.Minute)
	v.SetDefault("api.redis_ttl", time.Hour)
	v.SetDefault("api.db_freshness", 24*time.Hour)

	v.SetDefault("scheduler.metrics_port", "9090")
	v.SetDefault("scheduler.window_interval", 2*time.Hour)
}

// Load the configuration from the environment, with a .env file if present.
// Keys map to variables by upper casing and replacing dots, rollup.batch_size is ROLLUP_BATCH_SIZE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// Validate the fields needed by the rollup services.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, ErrMissingDSN)
	}
	if c.Bucket.Name == "" {
		errs = append(errs, ErrMissingBucket)
	}
	if c.Rollup.BatchSize <= 0 {
		errs = append(errs, ErrInvalidBatchSize)
	}
	if c.Rollup.UpsertBatchSize <= 0 {
		errs = append(errs, ErrInvalidUpsertBatch)
	}
	if c.Rollup.GamesFloor < 0 {
		errs = append(errs, ErrInvalidGamesFloor)
	}
	if c.Rollup.UpsertRetries < 0 {
		errs = append(errs, ErrInvalidRetries)
	}
	if c.Rollup.DetailedCardDivisor <= 0 {
		errs = append(errs, ErrInvalidCardDivisor)
	}
	if c.Scheduler.WindowInterval <= 0 {
		errs = append(errs, ErrInvalidWindowPeriod)
	}
	if _, err := c.Rollup.LastPatch(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
