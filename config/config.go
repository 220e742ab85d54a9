package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-bridge/internal/core/domain"

	"github.com/spf13/viper"
)

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Operator OperatorConfig `mapstructure:"operator"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LedgerConfig struct {
	Backend string `mapstructure:"backend"` // memory, postgres
}

// GatewayConfig describes the upstream payment gateway. Paths left empty fall
// back to the defaults of the selected API version.
type GatewayConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	TokenURL      string `mapstructure:"token_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	ClientVersion string `mapstructure:"client_version"`
	MerchantID    string `mapstructure:"merchant_id"`
	SaltKey       string `mapstructure:"salt_key"`
	SaltIndex     string `mapstructure:"salt_index"`

	APIVersion    string `mapstructure:"api_version"`    // v1, v2
	AuthMode      string `mapstructure:"auth_mode"`      // none, oauth, basic, client_headers
	SignatureMode string `mapstructure:"signature_mode"` // none, checksum, checksum_merchant

	PayPath    string `mapstructure:"pay_path"`
	StatusPath string `mapstructure:"status_path"`
	RefundPath string `mapstructure:"refund_path"`

	RedirectURL string `mapstructure:"redirect_url"`
	CallbackURL string `mapstructure:"callback_url"`

	TokenSafetyMargin time.Duration `mapstructure:"token_safety_margin"`
	DefaultTokenTTL   time.Duration `mapstructure:"default_token_ttl"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout"`
	CreateTimeout     time.Duration `mapstructure:"create_timeout"`
	StatusTimeout     time.Duration `mapstructure:"status_timeout"`
	RefundTimeout     time.Duration `mapstructure:"refund_timeout"`

	RateLimit float64 `mapstructure:"rate_limit"` // outbound requests per second, 0 = unlimited
	Burst     int     `mapstructure:"burst"`
}

// Credentials builds the immutable gateway identity.
func (g GatewayConfig) Credentials() domain.Credentials {
	return domain.Credentials{
		ClientID:      g.ClientID,
		ClientSecret:  g.ClientSecret,
		ClientVersion: g.ClientVersion,
		MerchantID:    g.MerchantID,
		BaseURL:       strings.TrimRight(g.BaseURL, "/"),
		TokenURL:      g.TokenURL,
		SaltKey:       g.SaltKey,
		SaltIndex:     g.SaltIndex,
	}
}

// Modes parses the configured API version, auth mode and signature mode.
func (g GatewayConfig) Modes() (domain.APIVersion, domain.AuthMode, domain.SignatureMode, error) {
	version, err := domain.ParseAPIVersion(g.APIVersion)
	if err != nil {
		return "", "", "", err
	}
	auth, err := domain.ParseAuthMode(g.AuthMode)
	if err != nil {
		return "", "", "", err
	}
	sig, err := domain.ParseSignatureMode(g.SignatureMode)
	if err != nil {
		return "", "", "", err
	}
	return version, auth, sig, nil
}

type WebhookConfig struct {
	Secret           string        `mapstructure:"secret"`
	SignatureHeaders []string      `mapstructure:"signature_headers"`
	ReplayTTL        time.Duration `mapstructure:"replay_ttl"`
}

type NotifierConfig struct {
	URL    string `mapstructure:"url"` // empty = merchant notifications disabled
	Secret string `mapstructure:"secret"`
}

type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // Argon2id, see cmd/hashpass
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PGB_ (payment gateway bridge).
// Nested keys use underscore: PGB_GATEWAY_BASE_URL, PGB_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_bridge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.backend", LedgerPostgres)

	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.token_url", "")
	v.SetDefault("gateway.client_id", "")
	v.SetDefault("gateway.client_secret", "")
	v.SetDefault("gateway.client_version", "1")
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.salt_key", "")
	v.SetDefault("gateway.salt_index", "1")
	v.SetDefault("gateway.api_version", "v2")
	v.SetDefault("gateway.auth_mode", "oauth")
	v.SetDefault("gateway.signature_mode", "none")
	v.SetDefault("gateway.pay_path", "")
	v.SetDefault("gateway.status_path", "")
	v.SetDefault("gateway.refund_path", "")
	v.SetDefault("gateway.redirect_url", "")
	v.SetDefault("gateway.callback_url", "")
	v.SetDefault("gateway.token_safety_margin", "30s")
	v.SetDefault("gateway.default_token_ttl", "600s")
	v.SetDefault("gateway.auth_timeout", "10s")
	v.SetDefault("gateway.create_timeout", "15s")
	v.SetDefault("gateway.status_timeout", "10s")
	v.SetDefault("gateway.refund_timeout", "15s")
	v.SetDefault("gateway.rate_limit", 0)
	v.SetDefault("gateway.burst", 10)

	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.signature_headers", []string{"X-Webhook-Signature", "X-Signature", "X-Verify"})
	v.SetDefault("webhook.replay_ttl", "24h")
	v.SetDefault("notifier.url", "")
	v.SetDefault("notifier.secret", "")
	v.SetDefault("operator.username", "")
	v.SetDefault("operator.password_hash", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "8h")
	v.SetDefault("jwt.issuer", "payment-bridge")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// PGB_GATEWAY_BASE_URL -> gateway.base_url
	v.SetEnvPrefix("PGB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine; env vars can carry everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks everything the bridge needs before it can serve traffic.
// The first problem found is returned as a *domain.ConfigError.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case LedgerMemory, LedgerPostgres:
	default:
		return &domain.ConfigError{Field: "ledger.backend", Reason: fmt.Sprintf("unsupported value %q", c.Ledger.Backend)}
	}

	_, auth, sig, err := c.Gateway.Modes()
	if err != nil {
		return err
	}
	if err := c.Gateway.Credentials().Validate(auth, sig); err != nil {
		return err
	}

	if c.Webhook.Secret == "" {
		return &domain.ConfigError{Field: "webhook.secret", Reason: "required"}
	}
	if len(c.Webhook.SignatureHeaders) == 0 {
		return &domain.ConfigError{Field: "webhook.signature_headers", Reason: "at least one header name is required"}
	}
	if c.Notifier.URL != "" && c.Notifier.Secret == "" {
		return &domain.ConfigError{Field: "notifier.secret", Reason: "required when notifier.url is set"}
	}
	if c.JWT.Secret == "" {
		return &domain.ConfigError{Field: "jwt.secret", Reason: "required"}
	}
	if c.Ledger.Backend == LedgerPostgres && c.AES.Key == "" {
		return &domain.ConfigError{Field: "aes.key", Reason: "required for the postgres ledger"}
	}
	return nil
}
