package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every setting of the service. Keys mirror the environment
// variable names in lower case, so the same names work in the YAML file.
type Config struct {
	Port       string `koanf:"port"`
	AppEnv     string `koanf:"app_env"`
	DBURL      string `koanf:"db_url"`
	JWTSecret  string `koanf:"jwt_secret"`
	CORSOrigin string `koanf:"cors_origin"`
	LogFile    string `koanf:"log_file"`
	LogLevel   string `koanf:"log_level"`

	// payment provider
	PaymentProvider      string        `koanf:"payment_provider"`
	PaymentMockMode      bool          `koanf:"payment_mock_mode"`
	PaymentTimeout       time.Duration `koanf:"payment_timeout"`
	RazorpayKeyID        string        `koanf:"razorpay_key_id"`
	RazorpayKeySecret    string        `koanf:"razorpay_key_secret"`
	RazorpayBaseURL      string        `koanf:"razorpay_base_url"`
	StripeSecretKey      string        `koanf:"stripe_secret_key"`
	StripePublishableKey string        `koanf:"stripe_publishable_key"`
	StripeWebhookSecret  string        `koanf:"stripe_webhook_secret"`

	// optional infrastructure
	RedisURL         string        `koanf:"redis_url"`
	VerifyCacheTTL   time.Duration `koanf:"verify_cache_ttl"`
	RabbitMQURL      string        `koanf:"rabbitmq_url"`
	RabbitMQExchange string        `koanf:"rabbitmq_exchange"`
	CronEnabled      bool          `koanf:"cron_enabled"`
	ReconcileCron    string        `koanf:"reconcile_cron"`
}

func defaults() Config {
	return Config{
		Port:             "8080",
		AppEnv:           "development",
		CORSOrigin:       "http://localhost:3000",
		LogFile:          "./logs/app.log",
		LogLevel:         "info",
		PaymentProvider:  "razorpay",
		PaymentTimeout:   10 * time.Second,
		RazorpayBaseURL:  "https://api.razorpay.com",
		VerifyCacheTTL:   24 * time.Hour,
		RabbitMQExchange: "finance.events",
		CronEnabled:      true,
		ReconcileCron:    "0 0 */6 * * *",
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the process
// environment. Later sources override earlier ones.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(cfg.PaymentProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("db_url required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret required")
	}
	switch c.PaymentProvider {
	case "razorpay", "stripe":
	default:
		return fmt.Errorf("payment_provider must be razorpay or stripe, got %q", c.PaymentProvider)
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("payment_timeout must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}
