// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	API         APIConfig         `yaml:"api"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	Router      RouterConfig      `yaml:"router"`
	UI          UIConfig          `yaml:"ui"`
	Form        FormConfig        `yaml:"form"`
	Status      StatusConfig      `yaml:"status"`
	History     HistoryConfig     `yaml:"history"`
	Notify      NotifyConfig      `yaml:"notify"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// APIConfig locates the simulation and asset directory services
type APIConfig struct {
	SimulatorURL      string  `yaml:"simulator_url"`
	DirectoryURL      string  `yaml:"directory_url"`
	StatusURL         string  `yaml:"status_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	AssetCacheTTLSecs int     `yaml:"asset_cache_ttl_seconds"`
}

// Timeout returns the request timeout as a duration
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// AssetCacheTTL returns the asset cache TTL as a duration
func (a APIConfig) AssetCacheTTL() time.Duration {
	return time.Duration(a.AssetCacheTTLSecs) * time.Second
}

// BridgeConfig locates the wallet-connect relay
type BridgeConfig struct {
	URL string `yaml:"url"`
}

// RouterConfig identifies the DEX router contracts
type RouterConfig struct {
	Address        string `yaml:"address"`
	ProxyTONMaster string `yaml:"proxy_ton_master"`
}

// UIConfig controls the local live view server
type UIConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// FormConfig tunes the amount-sync controllers
type FormConfig struct {
	DebounceMs       int     `yaml:"debounce_ms"`
	RequestTimeoutMs int     `yaml:"request_timeout_ms"`
	Slippage         float64 `yaml:"slippage"`
}

// StatusConfig tunes transaction status polling
type StatusConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxWaitSeconds  int `yaml:"max_wait_seconds"`
}

// Interval returns the poll interval as a duration
func (s StatusConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// MaxWait returns the maximum poll window as a duration
func (s StatusConfig) MaxWait() time.Duration {
	return time.Duration(s.MaxWaitSeconds) * time.Second
}

// HistoryConfig locates the local trade history database
type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

// NotifyConfig configures outcome notification channels
type NotifyConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	PoolSize   int `yaml:"pool_size" validate:"min=1,max=100"`
	PoolBuffer int `yaml:"pool_buffer" validate:"min=1,max=10000"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAPIConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateRouterConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateUIConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateFormConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateNotifyConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAPIConfig() error {
	if c.API.SimulatorURL == "" {
		return ValidationError{
			Field:   "api.simulator_url",
			Message: "simulation service URL is required",
		}
	}
	if c.API.DirectoryURL == "" {
		return ValidationError{
			Field:   "api.directory_url",
			Message: "asset directory URL is required",
		}
	}
	if c.API.RequestsPerSecond < 0 {
		return ValidationError{
			Field:   "api.requests_per_second",
			Value:   c.API.RequestsPerSecond,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateRouterConfig() error {
	if c.Router.Address == "" {
		return ValidationError{
			Field:   "router.address",
			Message: "router address is required",
		}
	}
	if c.Router.ProxyTONMaster == "" {
		return ValidationError{
			Field:   "router.proxy_ton_master",
			Message: "proxy TON master address is required",
		}
	}
	return nil
}

func (c *Config) validateUIConfig() error {
	if c.UI.ListenAddr == "" {
		return ValidationError{
			Field:   "ui.listen_addr",
			Message: "UI listen address is required",
		}
	}
	if c.UI.MaxConnections <= 0 {
		return ValidationError{
			Field:   "ui.max_connections",
			Value:   c.UI.MaxConnections,
			Message: "must be positive",
		}
	}
	if len(c.UI.AllowedOrigins) == 0 {
		return ValidationError{
			Field:   "ui.allowed_origins",
			Message: "at least one allowed origin is required",
		}
	}
	return nil
}

func (c *Config) validateFormConfig() error {
	if c.Form.DebounceMs <= 0 {
		return ValidationError{
			Field:   "form.debounce_ms",
			Value:   c.Form.DebounceMs,
			Message: "must be positive",
		}
	}
	if c.Form.Slippage < 0 || c.Form.Slippage >= 1 {
		return ValidationError{
			Field:   "form.slippage",
			Value:   c.Form.Slippage,
			Message: "must be in [0, 1)",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateNotifyConfig() error {
	if c.Notify.TelegramBotToken != "" && c.Notify.TelegramChatID == "" {
		return ValidationError{
			Field:   "notify.telegram_chat_id",
			Message: "chat ID is required when a bot token is set",
		}
	}
	return nil
}

// String returns a string representation of the configuration. Secret-typed
// fields redact themselves.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the baseline configuration; LoadConfig overlays the
// YAML file on top of it.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			SimulatorURL:      "https://api.swapdesk.local",
			DirectoryURL:      "https://api.swapdesk.local",
			StatusURL:         "https://api.swapdesk.local",
			TimeoutSeconds:    10,
			RequestsPerSecond: 5,
			AssetCacheTTLSecs: 30,
		},
		Bridge: BridgeConfig{
			URL: "wss://bridge.swapdesk.local/ws",
		},
		Router: RouterConfig{
			Address:        "EQB3ncyBUTjZUA5EnFKR5_EnOMI9V1tTEAAPaiU71gc4TiUt",
			ProxyTONMaster: "EQCM3B12QK1e4yZSf8GtBRT0aLMNyEsBc_DhVfRRtOEffLez",
		},
		UI: UIConfig{
			ListenAddr:     "127.0.0.1:8080",
			StaticDir:      "web",
			AllowedOrigins: []string{"http://127.0.0.1:8080", "http://localhost:8080"},
			MaxConnections: 32,
			RateLimit:      10,
			RateBurst:      20,
		},
		Form: FormConfig{
			DebounceMs:       500,
			RequestTimeoutMs: 10000,
			Slippage:         0.01,
		},
		Status: StatusConfig{
			IntervalSeconds: 3,
			MaxWaitSeconds:  300,
		},
		History: HistoryConfig{
			DBPath: "swapdesk.db",
		},
		Concurrency: ConcurrencyConfig{
			PoolSize:   8,
			PoolBuffer: 256,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9091,
			EnableMetrics: true,
		},
	}
}
