package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"fortis-trading-bot/config"
)

// ErrNotFound is returned when no credentials are stored
var ErrNotFound = errors.New("credentials not found")

// Credentials are the secrets the bot needs at runtime
type Credentials struct {
	BinanceAPIKey    string `json:"binance_api_key"`
	BinanceSecretKey string `json:"binance_secret_key"`
	TelegramToken    string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

// Client wraps the HashiCorp Vault client. Credentials live in a single
// KV v2 secret at <mount>/data/<secret_path>.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *Credentials
}

// NewClient creates a new Vault client. A disabled config yields a client
// backed only by its in-memory cache.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// GetCredentials reads the credentials secret, served from cache after the first read
func (c *Client) GetCredentials(ctx context.Context) (*Credentials, error) {
	c.mu.RLock()
	if c.cached != nil {
		creds := *c.cached
		c.mu.RUnlock()
		return &creds, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("%w and vault is disabled", ErrNotFound)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.dataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		BinanceAPIKey:    getString(data, "binance_api_key"),
		BinanceSecretKey: getString(data, "binance_secret_key"),
		TelegramToken:    getString(data, "telegram_bot_token"),
		TelegramChatID:   getString(data, "telegram_chat_id"),
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	out := *creds
	return &out, nil
}

// StoreCredentials writes the credentials secret
func (c *Client) StoreCredentials(ctx context.Context, creds Credentials) error {
	if c.config.Enabled {
		secretData := map[string]interface{}{
			"data": map[string]interface{}{
				"binance_api_key":    creds.BinanceAPIKey,
				"binance_secret_key": creds.BinanceSecretKey,
				"telegram_bot_token": creds.TelegramToken,
				"telegram_chat_id":   creds.TelegramChatID,
			},
		}
		if _, err := c.client.Logical().WriteWithContext(ctx, c.dataPath(), secretData); err != nil {
			return fmt.Errorf("failed to store credentials in vault: %w", err)
		}
	}

	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()
	return nil
}

// Apply overlays stored credentials onto cfg. Empty secret fields leave the
// configured values alone.
func (c *Client) Apply(ctx context.Context, cfg *config.Config) error {
	creds, err := c.GetCredentials(ctx)
	if err != nil {
		return err
	}

	setIfPresent(&cfg.Binance.APIKey, creds.BinanceAPIKey)
	setIfPresent(&cfg.Binance.SecretKey, creds.BinanceSecretKey)
	setIfPresent(&cfg.Telegram.BotToken, creds.TelegramToken)
	setIfPresent(&cfg.Telegram.ChatID, creds.TelegramChatID)
	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) dataPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
