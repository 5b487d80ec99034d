// Package config loads application configuration from defaults, an optional
// config file, a .env file and the environment (in increasing precedence).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/tax"
	"gstledger/internal/infrastructure/storage/postgres"
	"gstledger/pkg/logger"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Seller   transaction.SellerProfile
	// BooksStart dates opening stock entries.
	BooksStart time.Time
	Worker     WorkerConfig
	Audit      AuditConfig
	CORS       CORSConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

// Development reports whether the app runs in development mode.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

// Logger returns the logger configuration for the app section.
func (c AppConfig) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Development: c.Development()}
}

type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	IdempotencyTTL time.Duration
	// ReportRateLimit is a ulule/limiter formatted rate, e.g. "60-M".
	ReportRateLimit string
}

type DatabaseConfig struct {
	URL         string
	MaxConns    int32
	MinConns    int32
	AutoMigrate bool
}

// Pool returns the pool configuration for the database section.
func (c DatabaseConfig) Pool() postgres.PoolConfig {
	cfg := postgres.DefaultPoolConfig(c.URL)
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		cfg.MinConns = c.MinConns
	}
	return cfg
}

type StorageConfig struct {
	Driver string
}

type WorkerConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	PollInterval   time.Duration
	BatchSize      int
	MaxRetries     int
	Backoff        time.Duration
	DLQInterval    time.Duration
}

type AuditConfig struct {
	CompressThreshold int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.idempotency_ttl", "24h")
	v.SetDefault("http.report_rate_limit", "60-M")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("seller.name", "")
	v.SetDefault("seller.gstin", "")
	v.SetDefault("seller.state_code", "")
	v.SetDefault("seller.gst_status", string(tax.StatusGST))
	v.SetDefault("books_start", "2024-04-01")

	v.SetDefault("worker.webhook_url", "")
	v.SetDefault("worker.webhook_timeout", "10s")
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.max_retries", 5)
	v.SetDefault("worker.backoff", "1m")
	v.SetDefault("worker.dlq_interval", "10m")

	v.SetDefault("audit.compress_threshold", 0)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load reads configuration. path names an optional config file (yaml, json
// or toml); an empty path looks for ./config.yaml and skips it when absent.
func Load(path string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// SELLER_GSTIN overrides seller.gstin.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("app.env"),
			LogLevel: v.GetString("app.log_level"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			IdempotencyTTL:  v.GetDuration("http.idempotency_ttl"),
			ReportRateLimit: v.GetString("http.report_rate_limit"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("database.url"),
			MaxConns:    v.GetInt32("database.max_conns"),
			MinConns:    v.GetInt32("database.min_conns"),
			AutoMigrate: v.GetBool("database.auto_migrate"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
		},
		Worker: WorkerConfig{
			WebhookURL:     v.GetString("worker.webhook_url"),
			WebhookTimeout: v.GetDuration("worker.webhook_timeout"),
			PollInterval:   v.GetDuration("worker.poll_interval"),
			BatchSize:      v.GetInt("worker.batch_size"),
			MaxRetries:     v.GetInt("worker.max_retries"),
			Backoff:        v.GetDuration("worker.backoff"),
			DLQInterval:    v.GetDuration("worker.dlq_interval"),
		},
		Audit: AuditConfig{
			CompressThreshold: v.GetInt("audit.compress_threshold"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
	}

	status, err := tax.ParseStatus(v.GetString("seller.gst_status"))
	if err != nil {
		return nil, fmt.Errorf("seller.gst_status: %w", err)
	}
	cfg.Seller = transaction.SellerProfile{
		Name:      v.GetString("seller.name"),
		GSTIN:     tax.NormalizeGSTIN(v.GetString("seller.gstin")),
		StateCode: v.GetString("seller.state_code"),
		Status:    status,
	}
	if cfg.Seller.StateCode == "" && len(cfg.Seller.GSTIN) >= 2 {
		cfg.Seller.StateCode = cfg.Seller.GSTIN[:2]
	}

	booksStart, err := types.ParseDate(v.GetString("books_start"))
	if err != nil {
		return nil, fmt.Errorf("books_start: %w", err)
	}
	cfg.BooksStart = booksStart

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Seller.StateCode != "" && !tax.ValidStateCode(c.Seller.StateCode) {
		return fmt.Errorf("seller.state_code %q is not a valid GST state code", c.Seller.StateCode)
	}
	if c.Seller.GSTIN != "" {
		if err := tax.ValidateGSTIN(c.Seller.GSTIN); err != nil {
			return fmt.Errorf("seller.gstin: %w", err)
		}
	}
	if c.Seller.GSTIN != "" && c.Seller.StateCode != c.Seller.GSTIN[:2] {
		return fmt.Errorf("seller.state_code %q does not match seller.gstin prefix %q",
			c.Seller.StateCode, c.Seller.GSTIN[:2])
	}
	if c.Seller.Status == tax.StatusGST && c.Seller.GSTIN == "" && c.Storage.Driver == DriverPostgres {
		return fmt.Errorf("seller.gstin is required for a GST registered seller")
	}
	if c.Seller.Status == tax.StatusGST && c.Seller.StateCode == "" {
		return fmt.Errorf("seller.state_code is required for a GST registered seller")
	}
	return nil
}
