package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// PublicBaseURL is used to derive default redirect/callback urls when a request omits them.
	PublicBaseURL string `yaml:"public_base_url"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP. Enable only behind a proxy.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
	// EncryptionKey enables AES-GCM encryption of payer mobile numbers. 16, 24 or 32 bytes.
	EncryptionKey string `yaml:"encryption_key"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PhonePeConfig struct {
	MerchantID string        `yaml:"merchant_id"`
	SaltKey    string        `yaml:"salt_key"`
	SaltIndex  int           `yaml:"salt_index"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	// Initiations allowed per payer per Window.
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type PaymentConfig struct {
	Gateway   string          `yaml:"gateway"` // phonepe | noop
	PhonePe   PhonePeConfig   `yaml:"phonepe"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type NotifyConfig struct {
	Kafka    KafkaConfig    `yaml:"kafka"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type SchedulerConfig struct {
	OutboxInterval    time.Duration `yaml:"outbox_interval"`
	OutboxBatch       int           `yaml:"outbox_batch"`
	OutboxMaxAttempts int           `yaml:"outbox_max_attempts"`
	PendingInterval   time.Duration `yaml:"pending_interval"`
	PendingStaleAfter time.Duration `yaml:"pending_stale_after"`
	Workers           int           `yaml:"workers"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, overlays secrets from the environment
// (and an optional .env next to the process), applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Payment.PhonePe.MerchantID, "PHONEPE_MERCHANT_ID")
	setStr(&cfg.Payment.PhonePe.SaltKey, "PHONEPE_SALT_KEY")
	setStr(&cfg.Payment.PhonePe.BaseURL, "PHONEPE_BASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Database.EncryptionKey, "DATABASE_ENCRYPTION_KEY")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	setStr(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setStr(&cfg.Notify.Telegram.Token, "TELEGRAM_BOT_TOKEN")

	if v, ok := os.LookupEnv("PHONEPE_SALT_INDEX"); ok && v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PHONEPE_SALT_INDEX: %w", err)
		}
		cfg.Payment.PhonePe.SaltIndex = idx
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.Notify.Kafka.Brokers = strings.Split(v, ",")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 20 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payment.Gateway == "" {
		cfg.Payment.Gateway = "phonepe"
	}
	if cfg.Payment.PhonePe.Timeout <= 0 {
		cfg.Payment.PhonePe.Timeout = 15 * time.Second
	}
	if cfg.Payment.RateLimit.Limit <= 0 {
		cfg.Payment.RateLimit.Limit = 5
	}
	if cfg.Payment.RateLimit.Window <= 0 {
		cfg.Payment.RateLimit.Window = time.Minute
	}
	if cfg.Notify.Kafka.Topic == "" {
		cfg.Notify.Kafka.Topic = "order-events"
	}

	if cfg.Scheduler.OutboxInterval <= 0 {
		cfg.Scheduler.OutboxInterval = 5 * time.Second
	}
	if cfg.Scheduler.OutboxBatch <= 0 {
		cfg.Scheduler.OutboxBatch = 50
	}
	if cfg.Scheduler.OutboxMaxAttempts <= 0 {
		cfg.Scheduler.OutboxMaxAttempts = 10
	}
	if cfg.Scheduler.PendingInterval <= 0 {
		cfg.Scheduler.PendingInterval = time.Minute
	}
	if cfg.Scheduler.PendingStaleAfter <= 0 {
		cfg.Scheduler.PendingStaleAfter = 30 * time.Minute
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
}

// Validate performs the minimal checks needed to start the service.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if n := len(c.Database.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("database.encryption_key must be 16, 24, or 32 bytes; got %d", n)
	}
	switch c.Payment.Gateway {
	case "phonepe":
		p := c.Payment.PhonePe
		if p.MerchantID == "" {
			return errors.New("payment.phonepe.merchant_id is required")
		}
		if p.SaltKey == "" {
			return errors.New("payment.phonepe.salt_key is required")
		}
		if p.SaltIndex <= 0 {
			return errors.New("payment.phonepe.salt_index must be positive")
		}
	case "noop":
		if !c.Runtime.Dev {
			return errors.New("payment.gateway noop is only allowed with -dev")
		}
	default:
		return fmt.Errorf("unknown payment.gateway %q", c.Payment.Gateway)
	}
	if c.Admin.APIKey != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.api_key is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
