package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/circuit"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
)

// DefaultPath is read by Load when no path is given
const DefaultPath = "config.json"

type Config struct {
	Binance  BinanceConfig  `json:"binance" yaml:"binance"`
	Scanner  ScannerConfig  `json:"scanner" yaml:"scanner"`
	Analysis signals.Config `json:"analysis" yaml:"analysis"`
	Risk     risk.Config    `json:"risk" yaml:"risk"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Logging  logging.Config `json:"logging" yaml:"logging"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Vault    VaultConfig    `json:"vault" yaml:"vault"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Kafka    KafkaConfig    `json:"kafka" yaml:"kafka"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type BinanceConfig struct {
	APIKey         string  `json:"api_key" yaml:"api_key"`
	SecretKey      string  `json:"secret_key" yaml:"secret_key"`
	BaseURL        string  `json:"base_url" yaml:"base_url" default:"https://api.binance.com" validate:"required,url"`
	RequestsPerSec float64 `json:"requests_per_sec" yaml:"requests_per_sec" default:"10" validate:"gt=0"`
	Timeout        int     `json:"timeout" yaml:"timeout" default:"10"` // Seconds
	MockMode       bool    `json:"mock_mode" yaml:"mock_mode"`          // Use simulated data when the exchange is unavailable
}

type ScannerConfig struct {
	Symbols      []string `json:"symbols" yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\"]" validate:"min=1"`
	Timeframes   []string `json:"timeframes" yaml:"timeframes" default:"[\"4h\",\"1h\"]" validate:"min=1"`
	ScanInterval int      `json:"scan_interval" yaml:"scan_interval" default:"60" validate:"gt=0"` // Seconds between scans
	Bars         int      `json:"bars" yaml:"bars" default:"200" validate:"gte=50"`
	WorkerCount  int      `json:"worker_count" yaml:"worker_count" default:"4" validate:"gt=0"`
	PersistBars  bool     `json:"persist_bars" yaml:"persist_bars"`
}

// ParsedTimeframes returns the configured timeframes, rejecting unknown ones
func (s ScannerConfig) ParsedTimeframes() ([]market.Timeframe, error) {
	return market.ParseTimeframes(strings.Join(s.Timeframes, ","))
}

type BacktestConfig struct {
	Days       int            `json:"days" yaml:"days" default:"365" validate:"gt=0"`
	Commission float64        `json:"commission" yaml:"commission" default:"0.001" validate:"gte=0,lt=1"`
	Persist    bool           `json:"persist" yaml:"persist"`
	Breaker    circuit.Config `json:"breaker" yaml:"breaker"`
}

// Engine returns the backtest engine configuration built from the analysis,
// risk and backtest sections
func (c *Config) Engine() backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.Risk = c.Risk
	cfg.Signals = c.Analysis
	cfg.Commission = c.Backtest.Commission
	cfg.Breaker = c.Backtest.Breaker
	return cfg
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token" yaml:"bot_token" validate:"required_if=Enabled true"`
	ChatID   string `json:"chat_id" yaml:"chat_id" validate:"required_if=Enabled true"`
}

type ServerConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Port            int    `json:"port" yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	Host            string `json:"host" yaml:"host" default:"0.0.0.0"`
	AllowedOrigins  string `json:"allowed_origins" yaml:"allowed_origins" default:"*"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout" yaml:"read_timeout" default:"30"`      // Seconds
	WriteTimeout    int    `json:"write_timeout" yaml:"write_timeout" default:"30"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10"`
}

type AuthConfig struct {
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	JWTSecret           string        `json:"jwt_secret" yaml:"jwt_secret" validate:"required_if=Enabled true"`
	AccessTokenDuration time.Duration `json:"access_token_duration" yaml:"access_token_duration" default:"15m"`
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Address    string `json:"address" yaml:"address" default:"http://localhost:8200"`
	Token      string `json:"token" yaml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path" default:"secret"`               // KV secrets engine mount path
	SecretPath string `json:"secret_path" yaml:"secret_path" default:"fortis/credentials"` // Path of the credentials secret
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Address  string `json:"address" yaml:"address" default:"localhost:6379"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size" default:"10"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host" default:"localhost"`
	Port     int    `json:"port" yaml:"port" default:"5432"`
	User     string `json:"user" yaml:"user" default:"fortis"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname" default:"fortis"`
	SSLMode  string `json:"sslmode" yaml:"sslmode" default:"disable" validate:"oneof=disable require verify-ca verify-full prefer allow"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns" default:"10"`
}

type KafkaConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Brokers     []string `json:"brokers" yaml:"brokers" default:"[\"localhost:9092\"]"`
	SignalTopic string   `json:"signal_topic" yaml:"signal_topic" default:"fortis.signals"`
	TradeTopic  string   `json:"trade_topic" yaml:"trade_topic" default:"fortis.trades"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path" default:"/metrics"`
}

var validate = validator.New()

// Load reads the optional config file at path (JSON, or YAML by extension),
// fills defaults, applies environment overrides and validates the result. A
// missing file is not an error. .env files are loaded into the environment
// first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = getEnvOrDefault("FORTIS_CONFIG", DefaultPath)
	}

	cfg := &Config{Analysis: signals.DefaultConfig()}
	if err := loadFromFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with only defaults applied
func Default() *Config {
	cfg := &Config{Analysis: signals.DefaultConfig()}
	_ = defaults.Set(cfg)
	return cfg
}

// Validate checks field constraints and that the scanner timeframes parse
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Scanner.ParsedTimeframes(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Binance.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.Binance.SecretKey)
	cfg.Binance.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.Binance.BaseURL)
	cfg.Binance.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.Binance.MockMode)

	cfg.Scanner.Symbols = getEnvListOrDefault("SCANNER_SYMBOLS", cfg.Scanner.Symbols)
	cfg.Scanner.Timeframes = getEnvListOrDefault("SCANNER_TIMEFRAMES", cfg.Scanner.Timeframes)
	cfg.Scanner.ScanInterval = getEnvIntOrDefault("SCANNER_INTERVAL", cfg.Scanner.ScanInterval)

	cfg.Risk.InitialCapital = getEnvFloatOrDefault("RISK_INITIAL_CAPITAL", cfg.Risk.InitialCapital)
	cfg.Risk.RiskPerTrade = getEnvFloatOrDefault("RISK_PER_TRADE", cfg.Risk.RiskPerTrade)

	cfg.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.Telegram.Enabled)
	cfg.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.Logging.JSONFormat)
	cfg.Logging.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.Logging.IncludeFile)

	cfg.Server.Enabled = getEnvBoolOrDefault("SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnvOrDefault("WEB_HOST", cfg.Server.Host)
	cfg.Server.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Auth.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.Auth.AccessTokenDuration)

	cfg.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.Vault.MountPath)
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.Vault.SecretPath)

	cfg.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Database.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Kafka.Enabled = getEnvBoolOrDefault("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = getEnvListOrDefault("KAFKA_BROKERS", cfg.Kafka.Brokers)

	cfg.Metrics.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.Metrics.Enabled)
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, cfg)
	default:
		err = json.Unmarshal(file, cfg)
	}
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
