package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Relay    RelayConfig
	Webhook  WebhookConfig
	Stream   StreamConfig
	Page     PageConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string        `validate:"required"`
	Port               string        `validate:"required,numeric"`
	ShutdownTimeout    time.Duration `validate:"gt=0"`
	CORSAllowedOrigins []string
}

// RelayConfig holds event history and fan-out settings
type RelayConfig struct {
	HistorySize     int           `validate:"gt=0"`
	ReplayInterval  time.Duration `validate:"gt=0"`
	SubscriberQueue int           `validate:"gt=0"`
	MaxSubscribers  int           `validate:"gte=0"`
}

// WebhookConfig holds the inbound webhook endpoint settings
type WebhookConfig struct {
	Path            string `validate:"required,startswith=/"`
	AppSecret       string `validate:"required_if=SignaturePolicy reject"`
	VerifyToken     string
	SignaturePolicy string `validate:"oneof=reject log"`
	MaxBodyBytes    int64  `validate:"gt=0"`
}

// StreamConfig holds the SSE endpoint settings
type StreamConfig struct {
	Path              string        `validate:"required,startswith=/"`
	TokenSecret       string        `validate:"omitempty,min=16"`
	TokenIssuer       string        `validate:"required"`
	TokenExpiry       time.Duration `validate:"gt=0"`
	HeartbeatInterval time.Duration `validate:"gt=0"`
	ConnectionTimeout time.Duration `validate:"gte=0"`
	ConnectRateLimit  int           `validate:"gte=0"`
}

// PageConfig holds the viewer page settings
type PageConfig struct {
	Title string
}

// DatabaseConfig holds the optional PostgreSQL connection for the webhook receipt log.
type DatabaseConfig struct {
	URL             string `validate:"omitempty,url"`
	MaxOpenConns    int    `validate:"gte=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	// ReceiptRetention is how long receipts are kept; 0 keeps them forever.
	ReceiptRetention time.Duration `validate:"gte=0"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnv("SERVER_PORT", "8080"),
			ShutdownTimeout:    getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Relay: RelayConfig{
			HistorySize:     getIntEnv("HISTORY_SIZE", 1000),
			ReplayInterval:  getDurationEnv("REPLAY_INTERVAL", 150*time.Millisecond),
			SubscriberQueue: getIntEnv("SUBSCRIBER_QUEUE_SIZE", 256),
			MaxSubscribers:  getIntEnv("MAX_SUBSCRIBERS", 0),
		},
		Webhook: WebhookConfig{
			Path:            getEnv("WEBHOOK_PATH", "/webhook"),
			AppSecret:       os.Getenv("WEBHOOK_APP_SECRET"),
			VerifyToken:     os.Getenv("WEBHOOK_VERIFY_TOKEN"),
			SignaturePolicy: strings.ToLower(getEnv("WEBHOOK_SIGNATURE_POLICY", "reject")),
			MaxBodyBytes:    int64(getIntEnv("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
		},
		Stream: StreamConfig{
			Path:              getEnv("STREAM_PATH", "/sse"),
			TokenSecret:       os.Getenv("STREAM_TOKEN_SECRET"),
			TokenIssuer:       getEnv("STREAM_TOKEN_ISSUER", "webhook-relay"),
			TokenExpiry:       getDurationEnv("STREAM_TOKEN_EXPIRY", 24*time.Hour),
			HeartbeatInterval: getDurationEnv("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
			ConnectionTimeout: getDurationEnv("STREAM_CONNECTION_TIMEOUT", 0),
			ConnectRateLimit:  getIntEnv("STREAM_CONNECT_RATE_LIMIT", 30),
		},
		Page: PageConfig{
			Title: getEnv("PAGE_TITLE", "Webhook events"),
		},
		Database: DatabaseConfig{
			URL:              os.Getenv("DATABASE_URL"),
			MaxOpenConns:     getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ReceiptRetention: getDurationEnv("DB_RECEIPT_RETENTION", 7*24*time.Hour),
		},
	}
}

var validate = validator.New()

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("150ms", "30s") or a bare number of milliseconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
