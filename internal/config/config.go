package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
	Workflow  WorkflowConfig
	R2        R2Config
	Payment   PaymentConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds the Postgres connection for report, profile and
// payment rows. An empty URL switches the stores to their in-memory
// fallbacks.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type OIDCConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type RateLimitConfig struct {
	ReportsPerHour  int
	PaymentsPerHour int
	AccessPerMin    int
}

// WorkflowConfig points at the external generation webhook. URL is required
// for dispatch to operate; CallbackToken is the shared secret the workflow
// presents on its callback.
type WorkflowConfig struct {
	URL           string
	CallbackToken string
	CallbackURL   string
	Timeout       int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// PaymentConfig holds the gateway credentials. KeySecret signs the
// order|payment verification HMAC.
type PaymentConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("WORKFLOW_CALLBACK_TOKEN")
	readSecret("PAYMENT_KEY_SECRET")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	_ = viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("oidc.domain", "OIDC_DOMAIN")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("workflow.url", "WORKFLOW_WEBHOOK_URL")
	_ = viper.BindEnv("workflow.callback_token", "WORKFLOW_CALLBACK_TOKEN")
	_ = viper.BindEnv("workflow.callback_url", "WORKFLOW_CALLBACK_URL")
	_ = viper.BindEnv("workflow.timeout", "WORKFLOW_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("payment.key_id", "PAYMENT_KEY_ID")
	_ = viper.BindEnv("payment.key_secret", "PAYMENT_KEY_SECRET")
	_ = viper.BindEnv("payment.base_url", "PAYMENT_BASE_URL")
	_ = viper.BindEnv("payment.currency", "PAYMENT_CURRENCY")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.reports_per_hour", 10)
	viper.SetDefault("ratelimit.payments_per_hour", 20)
	viper.SetDefault("ratelimit.access_per_min", 60)

	// Workflow defaults
	viper.SetDefault("workflow.timeout", 120)

	// Payment defaults
	viper.SetDefault("payment.base_url", "https://api.razorpay.com")
	viper.SetDefault("payment.currency", "INR")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Domain:   viper.GetString("oidc.domain"),
			ClientID: viper.GetString("oidc.client_id"),
			Issuer:   viper.GetString("oidc.issuer"),
		},
		RateLimit: RateLimitConfig{
			ReportsPerHour:  viper.GetInt("ratelimit.reports_per_hour"),
			PaymentsPerHour: viper.GetInt("ratelimit.payments_per_hour"),
			AccessPerMin:    viper.GetInt("ratelimit.access_per_min"),
		},
		Workflow: WorkflowConfig{
			URL:           viper.GetString("workflow.url"),
			CallbackToken: viper.GetString("workflow.callback_token"),
			CallbackURL:   viper.GetString("workflow.callback_url"),
			Timeout:       viper.GetInt("workflow.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Payment: PaymentConfig{
			KeyID:     viper.GetString("payment.key_id"),
			KeySecret: viper.GetString("payment.key_secret"),
			BaseURL:   viper.GetString("payment.base_url"),
			Currency:  viper.GetString("payment.currency"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}

// Validate checks settings whose absence would only surface deep inside a
// request. Callers that need the workflow or payments enabled should treat
// an error here as fatal.
func (c *Config) Validate() error {
	if c.Workflow.URL == "" {
		return fmt.Errorf("workflow webhook URL is required (WORKFLOW_WEBHOOK_URL)")
	}
	if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
		return fmt.Errorf("payment gateway credentials are required (PAYMENT_KEY_ID, PAYMENT_KEY_SECRET)")
	}
	return nil
}
