package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/relaycrm/relaycrm/internal/types"
)

type Configuration struct {
	Deployment  DeploymentConfig  `validate:"required"`
	Server      ServerConfig      `validate:"required"`
	Logging     LoggingConfig     `validate:"required"`
	Postgres    PostgresConfig    `validate:"required"`
	Billing     BillingConfig     `validate:"required"`
	Webhook     WebhookConfig     `validate:"required"`
	Idempotency IdempotencyConfig `validate:"required"`
	Redis       RedisConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// BillingConfig carries the billing policy parameters. These are business
// policy, not constants: grace length, the anchor clamp bound and the job
// hours all vary per deployment.
type BillingConfig struct {
	// Timezone is the business timezone all billing dates are observed in
	Timezone string `validate:"required"`
	// Currency is the default invoice currency (lowercase ISO code)
	Currency string `validate:"required"`
	// GraceDays is the default grace period applied when a subscription
	// does not carry its own
	GraceDays int `validate:"required,gt=0"`
	// AnchorDayMax is the clamp bound for anchor days so every month can
	// honour the anchor (28 covers February)
	AnchorDayMax int `validate:"required,gte=1,lte=28"`
	// RenewalHour and OverdueHour are the business-local hours the two
	// scheduled jobs fire at. They must be staggered.
	RenewalHour int `validate:"gte=0,lte=23"`
	OverdueHour int `validate:"gte=0,lte=23"`
}

type WebhookConfig struct {
	// Asaas validates requests via an access-token header
	AsaasAccessToken string
	// AbacatePay signs the request body with HMAC-SHA256
	AbacatePaySecret string
}

type IdempotencyConfig struct {
	// Backend selects the ledger store: memory or redis
	Backend string `validate:"required,oneof=memory redis"`
	// TTL is how long processed event keys are remembered
	TTL time.Duration `validate:"required"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func NewConfig() (*Configuration, error) {
	// Load .env if present; env vars always win over the file
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/relaycrm")

	v.SetEnvPrefix("RELAYCRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("billing.timezone", "America/Sao_Paulo")
	v.SetDefault("billing.currency", "brl")
	v.SetDefault("billing.gracedays", 7)
	v.SetDefault("billing.anchordaymax", 28)
	v.SetDefault("billing.renewalhour", 6)
	v.SetDefault("billing.overduehour", 8)
	v.SetDefault("idempotency.backend", "memory")
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("postgres.sslmode", "disable")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a configuration suitable for tests and scripts.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		Billing: BillingConfig{
			Timezone:     "America/Sao_Paulo",
			Currency:     "brl",
			GraceDays:    7,
			AnchorDayMax: 28,
			RenewalHour:  6,
			OverdueHour:  8,
		},
		Idempotency: IdempotencyConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
