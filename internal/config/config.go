package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nonyonah/hedwig/internal/utils"
)

// Config is the full application configuration. Values load from config.yaml
// and individual environment variables override the file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Custody  CustodyConfig  `yaml:"custody"`
	Telegram TelegramConfig `yaml:"telegram"`
	LLM      LLMConfig      `yaml:"llm"`
	Offramp  OfframpConfig  `yaml:"offramp"`
	Renderer RendererConfig `yaml:"renderer"`
	NATS     NATSConfig     `yaml:"nats"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	CORS     CORSConfig     `yaml:"cors"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP server configuration. PublicURL is the externally
// reachable base used when composing payment links and document URLs.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig Postgres connection configuration.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CustodyConfig custody vendor (wallet creation, signing, broadcast).
type CustodyConfig struct {
	BaseURL   string `yaml:"base_url"`
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	Timeout   int    `yaml:"timeout"` // seconds
}

// TelegramConfig bot API configuration.
type TelegramConfig struct {
	BotToken   string `yaml:"bot_token"`
	WebhookURL string `yaml:"webhook_url"`
}

// LLMConfig intent-parser model configuration.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// OfframpConfig fiat off-ramp vendor configuration.
type OfframpConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// RendererConfig PDF renderer service configuration.
type RendererConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds, bounds the whole render
}

// NATSConfig event bus configuration. Optional; events are skipped when the
// URL is empty.
type NATSConfig struct {
	URL           string `yaml:"url"`
	MaxReconnects int    `yaml:"max_reconnects"`
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
}

// AuthConfig dashboard API auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // hours
}

// AdminConfig admin endpoint access control.
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash"` // bcrypt
	TOTPSecret   string `yaml:"totp_secret"`
}

// CORSConfig browser origin policy for the dashboard API.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// DispatchConfig transaction dispatch tuning.
type DispatchConfig struct {
	MaxAttempts int `yaml:"max_attempts"` // blockhash retry bound
	RetryDelay  int `yaml:"retry_delay"`  // milliseconds between attempts
	TimeoutSec  int `yaml:"timeout"`      // per-broadcast timeout
}

// LogConfig logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file at path (optional) and applies environment
// overrides. Missing required secrets are a fatal configuration error: the
// process cannot serve requests without them.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, PublicURL: "http://localhost:8080"},
		Custody:  CustodyConfig{BaseURL: "https://api.privy.io", Timeout: 30},
		LLM:      LLMConfig{BaseURL: "https://generativelanguage.googleapis.com", Model: "gemini-2.0-flash"},
		Offramp:  OfframpConfig{BaseURL: "https://api.paycrest.io"},
		Renderer: RendererConfig{Timeout: 45},
		NATS:     NATSConfig{MaxReconnects: 10, ReconnectWait: 2},
		Auth:     AuthConfig{TokenTTL: 24},
		Dispatch: DispatchConfig{MaxAttempts: 3, RetryDelay: 500, TimeoutSec: 30},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

func applyEnvOverrides(cfg *Config) {
	setStr := func(dst *string, name string) {
		if v := utils.Env(name); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, name string) {
		if v := utils.Env(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "PORT")
	setStr(&cfg.Server.PublicURL, "PUBLIC_URL")
	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Custody.BaseURL, "CUSTODY_BASE_URL")
	setStr(&cfg.Custody.AppID, "CUSTODY_APP_ID")
	setStr(&cfg.Custody.AppSecret, "CUSTODY_APP_SECRET")
	setStr(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Telegram.WebhookURL, "TELEGRAM_WEBHOOK_URL")
	setStr(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setStr(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.LLM.Model, "LLM_MODEL")
	setStr(&cfg.Offramp.BaseURL, "OFFRAMP_BASE_URL")
	setStr(&cfg.Offramp.APIKey, "OFFRAMP_API_KEY")
	setStr(&cfg.Offramp.APISecret, "OFFRAMP_API_SECRET")
	setStr(&cfg.Renderer.BaseURL, "RENDERER_BASE_URL")
	setInt(&cfg.Renderer.Timeout, "RENDERER_TIMEOUT")
	setStr(&cfg.NATS.URL, "NATS_URL")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setStr(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setStr(&cfg.Admin.TOTPSecret, "ADMIN_TOTP_SECRET")
	setInt(&cfg.Dispatch.MaxAttempts, "DISPATCH_MAX_ATTEMPTS")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Format, "LOG_FORMAT")
}

func (c *Config) validate() error {
	required := map[string]string{
		"database.dsn":       c.Database.DSN,
		"custody.app_id":     c.Custody.AppID,
		"custody.app_secret": c.Custody.AppSecret,
		"telegram.bot_token": c.Telegram.BotToken,
		"auth.jwt_secret":    c.Auth.JWTSecret,
	}
	for key, val := range required {
		if val == "" {
			return fmt.Errorf("missing required config: %s", key)
		}
	}
	return nil
}

// CustodyTimeout returns the custody client timeout as a duration.
func (c *Config) CustodyTimeout() time.Duration {
	if c.Custody.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Custody.Timeout) * time.Second
}

// RenderTimeout bounds a full PDF render round trip.
func (c *Config) RenderTimeout() time.Duration {
	if c.Renderer.Timeout <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.Renderer.Timeout) * time.Second
}

// DispatchRetryDelay is the fixed sleep between blockhash retries.
func (c *Config) DispatchRetryDelay() time.Duration {
	if c.Dispatch.RetryDelay <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Dispatch.RetryDelay) * time.Millisecond
}

// DispatchTimeout bounds a single broadcast attempt.
func (c *Config) DispatchTimeout() time.Duration {
	if c.Dispatch.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Dispatch.TimeoutSec) * time.Second
}
