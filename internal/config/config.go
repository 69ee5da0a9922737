package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DevJWTSecret is the placeholder signing secret used when JWT_SECRET is unset.
// It is refused once the service talks to Postgres or a real payment provider.
const DevJWTSecret = "change-me"

// Config is the service configuration, read from the environment.
type Config struct {
	AppPort string

	DBDriver    string
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// RabbitMQURL is empty when no broker is configured.
	RabbitMQURL string

	JWTSecret string
	TokenTTL  time.Duration

	PaymentProvider string
	PaymentEndpoint string
	PaymentAPIKey   string
	PaymentTimeout  time.Duration

	ServiceFeePercent     decimal.Decimal
	DeliveryFeeStandard   decimal.Decimal
	DeliveryFeeExpress    decimal.Decimal
	DeliveryFeeScheduled  decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal

	AdminEmail    string
	AdminPassword string

	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:grocer.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("JWT_SECRET", DevJWTSecret)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("PAYMENT_ENDPOINT", "")
	v.SetDefault("PAYMENT_API_KEY", "")
	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("SERVICE_FEE_PERCENT", "0")
	v.SetDefault("DELIVERY_FEE_STANDARD", "3.99")
	v.SetDefault("DELIVERY_FEE_EXPRESS", "6.99")
	v.SetDefault("DELIVERY_FEE_SCHEDULED", "4.99")
	v.SetDefault("FREE_DELIVERY_THRESHOLD", "0")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1m")
}

// Load reads the configuration from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:         v.GetString("APP_PORT"),
		DBDriver:        strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		RabbitMQURL:     v.GetString("RABBITMQ_URL"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		TokenTTL:        v.GetDuration("TOKEN_TTL"),
		PaymentProvider: strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
		PaymentEndpoint: v.GetString("PAYMENT_ENDPOINT"),
		PaymentAPIKey:   v.GetString("PAYMENT_API_KEY"),
		PaymentTimeout:  v.GetDuration("PAYMENT_TIMEOUT"),
		AdminEmail:      v.GetString("ADMIN_EMAIL"),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),

		SessionIdleTimeout:   v.GetDuration("SESSION_IDLE_TIMEOUT"),
		SessionSweepInterval: v.GetDuration("SESSION_SWEEP_INTERVAL"),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.PaymentProvider {
	case "sandbox":
	case "http":
		if cfg.PaymentEndpoint == "" {
			return nil, fmt.Errorf("PAYMENT_ENDPOINT is required for the http payment provider")
		}
	default:
		return nil, fmt.Errorf("unsupported PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}
	if cfg.JWTSecret == "" || cfg.JWTSecret == DevJWTSecret {
		if cfg.DBDriver == "postgres" || cfg.PaymentProvider == "http" {
			return nil, fmt.Errorf("JWT_SECRET must be set when using %s with the %s payment provider", cfg.DBDriver, cfg.PaymentProvider)
		}
		log.Println("Warning: JWT_SECRET is not set, tokens are signed with the development secret.")
		cfg.JWTSecret = DevJWTSecret
	}
	if cfg.SessionIdleTimeout <= 0 || cfg.SessionSweepInterval <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT and SESSION_SWEEP_INTERVAL must be positive")
	}

	amounts := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"SERVICE_FEE_PERCENT", &cfg.ServiceFeePercent},
		{"DELIVERY_FEE_STANDARD", &cfg.DeliveryFeeStandard},
		{"DELIVERY_FEE_EXPRESS", &cfg.DeliveryFeeExpress},
		{"DELIVERY_FEE_SCHEDULED", &cfg.DeliveryFeeScheduled},
		{"FREE_DELIVERY_THRESHOLD", &cfg.FreeDeliveryThreshold},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(a.key)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", a.key, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("invalid %s: must not be negative", a.key)
		}
		// Fees are stored with two decimal places.
		if !d.Equal(d.Round(2)) {
			return nil, fmt.Errorf("invalid %s: at most two decimal places allowed", a.key)
		}
		*a.dst = d
	}
	return cfg, nil
}
