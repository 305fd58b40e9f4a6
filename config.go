package farmbot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aredoff/farmbot/internal/api"
	"github.com/aredoff/farmbot/internal/farm"
	"github.com/aredoff/farmbot/internal/parser"
	"github.com/aredoff/farmbot/internal/secret"
	"github.com/aredoff/farmbot/internal/validator"
	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://api.getgrass.io"

type APIConfig struct {
	BaseURL             string        `ini:"base_url" yaml:"base_url"`
	Timeout             time.Duration `ini:"timeout" yaml:"timeout"`
	TransportRetries    int           `ini:"transport_retries" yaml:"transport_retries"`
	TransportBackoffMin time.Duration `ini:"transport_backoff_min" yaml:"transport_backoff_min"`
	TransportBackoffMax time.Duration `ini:"transport_backoff_max" yaml:"transport_backoff_max"`
	TimeoutBackoff      time.Duration `ini:"timeout_backoff" yaml:"timeout_backoff"`
	ConnectionBackoff   time.Duration `ini:"connection_backoff" yaml:"connection_backoff"`
	RateLimitBackoff    time.Duration `ini:"rate_limit_backoff" yaml:"rate_limit_backoff"`
	MaxAttempts         int           `ini:"max_attempts" yaml:"max_attempts"`
	MinInterval         time.Duration `ini:"min_interval" yaml:"min_interval"`
	UserAgents          []string      `ini:"user_agents" yaml:"user_agents" delim:"|"`
}

type ProxyConfig struct {
	// Primary routes every target when PrimaryHTTPS is empty.
	Primary          string        `ini:"primary" yaml:"primary"`
	PrimaryHTTPS     string        `ini:"primary_https" yaml:"primary_https"`
	ProbeURL         string        `ini:"probe_url" yaml:"probe_url"`
	ProbeTimeout     time.Duration `ini:"probe_timeout" yaml:"probe_timeout"`
	DirectoryURLs    []string      `ini:"directory_urls" yaml:"directory_urls" delim:","`
	DirectoryTimeout time.Duration `ini:"directory_timeout" yaml:"directory_timeout"`
}

type FarmConfig struct {
	MinDelay      time.Duration `ini:"min_delay" yaml:"min_delay"`
	MaxDelay      time.Duration `ini:"max_delay" yaml:"max_delay"`
	UnknownStatus string        `ini:"unknown_status" yaml:"unknown_status"`
}

type TelegramConfig struct {
	Token       string `ini:"token" yaml:"token"`
	ChatID      string `ini:"chat_id" yaml:"chat_id"`
	APIEndpoint string `ini:"api_endpoint" yaml:"api_endpoint"`
}

// Enabled reports whether both the bot token and the target chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

type SecretConfig struct {
	// Token is the encrypted bearer token.
	Token  string `ini:"token" yaml:"token"`
	Key    string `ini:"key" yaml:"key"`
	Cipher string `ini:"cipher" yaml:"cipher"`
}

type LogConfig struct {
	Level string `ini:"level" yaml:"level"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics listener. Empty disables it.
	Listen    string `ini:"listen" yaml:"listen"`
	Namespace string `ini:"namespace" yaml:"namespace"`
}

type Config struct {
	API      APIConfig      `ini:"api" yaml:"api"`
	Proxy    ProxyConfig    `ini:"proxy" yaml:"proxy"`
	Farm     FarmConfig     `ini:"farm" yaml:"farm"`
	Telegram TelegramConfig `ini:"telegram" yaml:"telegram"`
	Secret   SecretConfig   `ini:"secret" yaml:"secret"`
	Log      LogConfig      `ini:"log" yaml:"log"`
	Metrics  MetricsConfig  `ini:"metrics" yaml:"metrics"`

	// Seed drives user agent, public proxy and jitter selection. Zero seeds from the clock.
	Seed uint64 `ini:"seed" yaml:"seed"`

	Logger zerolog.Logger `ini:"-" yaml:"-"`
}

func DefaultConfig() *Config {
	apiDefaults := api.DefaultConfig()
	farmDefaults := farm.DefaultConfig()

	return &Config{
		API: APIConfig{
			BaseURL:             DefaultBaseURL,
			Timeout:             apiDefaults.Timeout,
			TransportRetries:    apiDefaults.TransportRetries,
			TransportBackoffMin: apiDefaults.TransportBackoffMin,
			TransportBackoffMax: apiDefaults.TransportBackoffMax,
			TimeoutBackoff:      apiDefaults.TimeoutBackoff,
			ConnectionBackoff:   apiDefaults.ConnectionBackoff,
			RateLimitBackoff:    apiDefaults.RateLimitBackoff,
			MaxAttempts:         apiDefaults.MaxAttempts,
			UserAgents:          append([]string(nil), api.DefaultUserAgents...),
		},
		Proxy: ProxyConfig{
			ProbeURL:         validator.DefaultTestURL,
			ProbeTimeout:     5 * time.Second,
			DirectoryURLs:    append([]string(nil), parser.DefaultDirectoryURLs...),
			DirectoryTimeout: 15 * time.Second,
		},
		Farm: FarmConfig{
			MinDelay:      farmDefaults.MinDelay,
			MaxDelay:      farmDefaults.MaxDelay,
			UnknownStatus: string(farmDefaults.UnknownStatus),
		},
		Secret: SecretConfig{
			Cipher: string(secret.XChaCha20),
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "farmbot",
		},
		Logger: zerolog.Nop(),
	}
}

// LoadFile overlays the file at path onto cfg. The format follows the extension:
// .ini, or .yaml/.yml.
func LoadFile(cfg *Config, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		file, err := ini.Load(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := file.MapTo(cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// ApplyEnv overrides cfg from the process environment. Unset variables leave
// the current value alone.
func ApplyEnv(cfg *Config) {
	overrideFromEnv(&cfg.Secret.Token, "AUTH_TOKEN")
	overrideFromEnv(&cfg.Secret.Key, "ENCRYPTION_KEY")
	overrideFromEnv(&cfg.Secret.Cipher, "TOKEN_CIPHER")
	overrideFromEnv(&cfg.Proxy.Primary, "PRIMARY_PROXY")
	overrideFromEnv(&cfg.Proxy.PrimaryHTTPS, "PRIMARY_PROXY_HTTPS")
	overrideFromEnv(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	overrideFromEnv(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	overrideFromEnv(&cfg.API.BaseURL, "API_BASE_URL")
	overrideFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	overrideFromEnv(&cfg.Metrics.Listen, "METRICS_LISTEN")
}

func overrideFromEnv(target *string, name string) {
	if v, ok := os.LookupEnv(name); ok {
		*target = strings.TrimSpace(v)
	}
}

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.TransportRetries < 0 || c.API.MaxAttempts < 0 {
		errs = append(errs, errors.New("api retry counts must not be negative"))
	}
	for name, d := range map[string]time.Duration{
		"api.transport_backoff_min": c.API.TransportBackoffMin,
		"api.transport_backoff_max": c.API.TransportBackoffMax,
		"api.timeout_backoff":       c.API.TimeoutBackoff,
		"api.connection_backoff":    c.API.ConnectionBackoff,
		"api.rate_limit_backoff":    c.API.RateLimitBackoff,
		"api.min_interval":          c.API.MinInterval,
		"proxy.probe_timeout":       c.Proxy.ProbeTimeout,
		"proxy.directory_timeout":   c.Proxy.DirectoryTimeout,
		"farm.min_delay":            c.Farm.MinDelay,
		"farm.max_delay":            c.Farm.MaxDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Farm.MinDelay > c.Farm.MaxDelay {
		errs = append(errs, fmt.Errorf("farm.min_delay %s exceeds farm.max_delay %s", c.Farm.MinDelay, c.Farm.MaxDelay))
	}
	if _, err := farm.ParseUnknownStatus(c.Farm.UnknownStatus); err != nil {
		errs = append(errs, err)
	}
	if _, err := secret.ParseAlgorithm(c.Secret.Cipher); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) apiConfig(token secret.Token, logger zerolog.Logger) api.Config {
	return api.Config{
		BaseURL:             c.API.BaseURL,
		Token:               token,
		Timeout:             c.API.Timeout,
		TransportRetries:    c.API.TransportRetries,
		TransportBackoffMin: c.API.TransportBackoffMin,
		TransportBackoffMax: c.API.TransportBackoffMax,
		TimeoutBackoff:      c.API.TimeoutBackoff,
		ConnectionBackoff:   c.API.ConnectionBackoff,
		RateLimitBackoff:    c.API.RateLimitBackoff,
		MaxAttempts:         c.API.MaxAttempts,
		MinInterval:         c.API.MinInterval,
		UserAgents:          c.API.UserAgents,
		Logger:              logger,
	}
}
