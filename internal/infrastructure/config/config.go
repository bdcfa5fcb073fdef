package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          string        `env:"PORT,            default=8080"`
	Env           string        `env:"ENV,             default=development"`
	JWTSecret     string        `env:"JWT_SECRET,      required"`
	LogLevel      string        `env:"LOG_LEVEL,       default=info"`
	TokenTTL      time.Duration `env:"TOKEN_TTL,       default=24h"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL, default=http://localhost:8080"`
	Workers       int           `env:"DEPOSIT_WORKERS, default=8"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Paystack  PaystackConfig
	PriceFeed PriceFeedConfig
	Sui       SuiConfig
	SMS       SMSConfig
	Mail      MailConfig
	OAuth     OAuthConfig
	OTP       OTPConfig
	Reconcile ReconcileConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=sui_ichiba"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type PaystackConfig struct {
	BaseURL     string `env:"PAYSTACK_BASE_URL,     default=https://api.paystack.co"`
	SecretKey   string `env:"PAYSTACK_SECRET_KEY"`
	CallbackURL string `env:"PAYSTACK_CALLBACK_URL"`
}

type PriceFeedConfig struct {
	BaseURL  string        `env:"PRICEFEED_BASE_URL,  default=https://api.coingecko.com/api/v3"`
	APIKey   string        `env:"PRICEFEED_API_KEY"`
	CacheTTL time.Duration `env:"PRICEFEED_CACHE_TTL, default=30s"`
}

type SuiConfig struct {
	RPCURL     string `env:"SUI_RPC_URL,     default=https://fullnode.testnet.sui.io:443"`
	PackageID  string `env:"SUI_PACKAGE_ID"`
	PrivateKey string `env:"SUI_PRIVATE_KEY"`
	GasObject  string `env:"SUI_GAS_OBJECT"`
}

type SMSConfig struct {
	BaseURL  string `env:"SMS_BASE_URL"`
	APIKey   string `env:"SMS_API_KEY"`
	SenderID string `env:"SMS_SENDER_ID, default=SuiIchiba"`
}

type MailConfig struct {
	BaseURL string `env:"MAIL_BASE_URL"`
	APIKey  string `env:"MAIL_API_KEY"`
	From    string `env:"MAIL_FROM, default=no-reply@sui-ichiba.app"`
}

type OAuthConfig struct {
	GoogleUserInfoURL string `env:"OAUTH_GOOGLE_USERINFO_URL, default=https://openidconnect.googleapis.com/v1/userinfo"`
	FacebookGraphURL  string `env:"OAUTH_FACEBOOK_GRAPH_URL,  default=https://graph.facebook.com"`
}

type OTPConfig struct {
	Length   int           `env:"OTP_LENGTH,   default=6"`
	TTL      time.Duration `env:"OTP_TTL,      default=5m"`
	Interval time.Duration `env:"OTP_INTERVAL, default=1m"`
	Burst    int           `env:"OTP_BURST,    default=3"`
}

type ReconcileConfig struct {
	Interval time.Duration `env:"RECONCILE_INTERVAL, default=1m"`
	Grace    time.Duration `env:"RECONCILE_GRACE,    default=2m"`
}

// Production reports whether the service runs with production defaults
// (JSON logs, no swagger UI).
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
