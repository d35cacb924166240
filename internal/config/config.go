package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"rentescrow/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Escrow     EscrowConfig     `yaml:"escrow"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig gates the API with static keys. The user id of the caller is
// taken from HeaderUserID, set by the fronting API layer.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderUserID string         `yaml:"header_user_id"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// TelegramConfig configures operator notifications. An empty token disables them.
type TelegramConfig struct {
	BotToken        string  `yaml:"bot_token"`
	OperatorChatIDs []int64 `yaml:"operator_chat_ids"`
	Debug           bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	LedgerSpreadsheetID string `yaml:"ledger_spreadsheet_id"`
	LedgerSheetName     string `yaml:"ledger_sheet_name"`
}

// GatewayConfig describes the Squad payment gateway.
type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	SecretKey     string        `yaml:"secret_key"`
	CallbackURL   string        `yaml:"callback_url"`
	MerchantID    string        `yaml:"merchant_id"`
	Currency      string        `yaml:"currency"`
	Channels      []string      `yaml:"channels"`
	ChargeTimeout time.Duration `yaml:"charge_timeout"`
	PayoutTimeout time.Duration `yaml:"payout_timeout"`
	BankCodesFile string        `yaml:"bank_codes_file"`

	// RequireWebhookSignature rejects webhook deliveries without a valid signature header.
	RequireWebhookSignature bool `yaml:"require_webhook_signature"`
}

type EscrowConfig struct {
	CancellationWindow time.Duration `yaml:"cancellation_window"`
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
	BookingFee         int64         `yaml:"booking_fee"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	SweepBatchSize     int           `yaml:"sweep_batch_size"`
	ListingCacheTTL    time.Duration `yaml:"listing_cache_ttl"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Auth.Enabled && c.API.HTTP.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("at least one api key is required when auth is enabled")
	}
	for i, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key #%d is empty", i+1)
		}
	}

	if c.Escrow.CancellationWindow <= 0 || c.Escrow.ConfirmationWindow <= 0 {
		return errors.New("escrow windows must be positive")
	}
	if c.Escrow.BookingFee <= 0 {
		return errors.New("booking fee must be positive")
	}

	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base url is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "rentescrow"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderUserID == "" {
		c.API.Auth.HeaderUserID = "x-user-id"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://sandbox-api-d.squadco.com"
	}
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "NGN"
	}
	if len(c.Gateway.Channels) == 0 {
		c.Gateway.Channels = []string{"card", "bank", "ussd", "transfer"}
	}
	if c.Gateway.ChargeTimeout == 0 {
		c.Gateway.ChargeTimeout = 10 * time.Second
	}
	if c.Gateway.PayoutTimeout == 0 {
		c.Gateway.PayoutTimeout = 30 * time.Second
	}
	if c.Gateway.BankCodesFile == "" {
		c.Gateway.BankCodesFile = "configs/bank_codes.yaml"
	}

	// Escrow defaults
	if c.Escrow.CancellationWindow == 0 {
		c.Escrow.CancellationWindow = models.DefaultCancellationWindowHours * time.Hour
	}
	if c.Escrow.ConfirmationWindow == 0 {
		c.Escrow.ConfirmationWindow = models.DefaultConfirmationWindowHours * time.Hour
	}
	if c.Escrow.BookingFee == 0 {
		c.Escrow.BookingFee = models.DefaultBookingFee
	}
	if c.Escrow.SweepInterval == 0 {
		c.Escrow.SweepInterval = 5 * time.Minute
	}
	if c.Escrow.SweepBatchSize == 0 {
		c.Escrow.SweepBatchSize = 100
	}
	if c.Escrow.ListingCacheTTL == 0 {
		c.Escrow.ListingCacheTTL = models.DefaultListingCacheTTL * time.Second
	}

	if c.Google.LedgerSheetName == "" {
		c.Google.LedgerSheetName = "Ledger"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
