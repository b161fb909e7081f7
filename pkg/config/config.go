package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CAMPUSWORKS_DB_DSN"
	EnvDBHost = "CAMPUSWORKS_DB_HOST"
	EnvDBUser = "CAMPUSWORKS_DB_USER"
	EnvDBName = "CAMPUSWORKS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Payments PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAMPUSWORKS_APP_ENV" required:"true"`
	Port         string `envconfig:"CAMPUSWORKS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAMPUSWORKS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAMPUSWORKS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUSWORKS_DB_DSN"`
	Driver string `envconfig:"CAMPUSWORKS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAMPUSWORKS_DB_HOST"`
	LegacyPort     int    `envconfig:"CAMPUSWORKS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAMPUSWORKS_DB_USER"`
	LegacyPassword string `envconfig:"CAMPUSWORKS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAMPUSWORKS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAMPUSWORKS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAMPUSWORKS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUSWORKS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUSWORKS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUSWORKS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUSWORKS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAMPUSWORKS_REDIS_ADDR"`
	Password     string        `envconfig:"CAMPUSWORKS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUSWORKS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUSWORKS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUSWORKS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUSWORKS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUSWORKS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUSWORKS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CAMPUSWORKS_STRIPE_API_KEY"`
	Secret string `envconfig:"CAMPUSWORKS_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"CAMPUSWORKS_STRIPE_ENV" default:"test"`

	WebhookIdempotencyTTL time.Duration `envconfig:"CAMPUSWORKS_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	FeeRate       string        `envconfig:"CAMPUSWORKS_PLATFORM_FEE_RATE" default:"0.10"`
	Currency      string        `envconfig:"CAMPUSWORKS_PAYMENT_CURRENCY" default:"usd"`
	IntentTimeout time.Duration `envconfig:"CAMPUSWORKS_PAYMENT_INTENT_TIMEOUT" default:"15s"`
	CheckoutTTL   time.Duration `envconfig:"CAMPUSWORKS_CHECKOUT_TTL" default:"24h"`

	feeRate decimal.Decimal
}

// NewPaymentsConfig builds a validated payments configuration outside the
// envconfig path.
func NewPaymentsConfig(feeRate, currency string, intentTimeout time.Duration) (PaymentsConfig, error) {
	cfg := PaymentsConfig{FeeRate: feeRate, Currency: currency, IntentTimeout: intentTimeout, CheckoutTTL: 24 * time.Hour}
	if err := cfg.validate(); err != nil {
		return PaymentsConfig{}, err
	}
	return cfg, nil
}

func (p *PaymentsConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.FeeRate))
	if err != nil {
		return fmt.Errorf("parsing platform fee rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("platform fee rate %s out of range [0,1)", rate)
	}
	if p.IntentTimeout <= 0 {
		return fmt.Errorf("payment intent timeout must be positive")
	}
	if p.CheckoutTTL <= 0 {
		return fmt.Errorf("checkout ttl must be positive")
	}
	p.feeRate = rate
	return nil
}

// FeeRateDecimal returns the parsed platform fee rate.
func (p PaymentsConfig) FeeRateDecimal() decimal.Decimal {
	return p.feeRate
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
