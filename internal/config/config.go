// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all nudge configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Twilio    TwilioConfig
	Push      PushConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Bind string
	Port int
	// BaseURL is the externally reachable URL used in Twilio voice callbacks
	// and push deep links.
	BaseURL string
}

type DatabaseConfig struct {
	Path string
}

type LLMConfig struct {
	Provider     string // "anthropic", "ollama"
	Model        string
	OllamaURL    string
	OllamaModel  string
	AnthropicKey string
	Timeout      time.Duration
}

type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	FromNumber   string
	SMSEnabled   bool
	CallsEnabled bool // calls are gated independently of SMS
}

type PushConfig struct {
	Enabled         bool
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	ContactEmail    string
}

type SchedulerConfig struct {
	TickInterval time.Duration
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:    "127.0.0.1",
			Port:    38080,
			BaseURL: "http://localhost:38080",
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2",
			Timeout:     120 * time.Second,
		},
		Twilio: TwilioConfig{
			SMSEnabled:   true,
			CallsEnabled: false,
		},
		Push: PushConfig{
			Enabled: true,
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Minute,
		},
	}
}

// Load reads configuration from the environment, with .env support.
func Load() (Config, error) {
	godotenv.Load()

	cfg := Default()

	cfg.Server.Bind = getEnv("NUDGE_BIND", cfg.Server.Bind)
	cfg.Server.Port = getEnvInt("NUDGE_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = strings.TrimRight(getEnv("NUDGE_BASE_URL", cfg.Server.BaseURL), "/")
	cfg.Database.Path = getEnv("NUDGE_DB", cfg.Database.Path)

	cfg.LLM.Provider = getEnv("NUDGE_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("NUDGE_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.OllamaURL = getEnv("OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.AnthropicKey = getEnv("ANTHROPIC_API_KEY", "")
	if cfg.LLM.AnthropicKey != "" {
		cfg.LLM.Provider = "anthropic"
	}
	if secs := getEnvInt("NUDGE_LLM_TIMEOUT", 0); secs > 0 {
		cfg.LLM.Timeout = time.Duration(secs) * time.Second
	}

	cfg.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.FromNumber = getEnv("TWILIO_PHONE_NUMBER", "")
	cfg.Twilio.SMSEnabled = getEnvBool("TWILIO_SMS_ENABLED", cfg.Twilio.SMSEnabled)
	cfg.Twilio.CallsEnabled = getEnvBool("TWILIO_CALLS_ENABLED", cfg.Twilio.CallsEnabled)

	cfg.Push.Enabled = getEnvBool("PUSH_ENABLED", cfg.Push.Enabled)
	cfg.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", "")
	cfg.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", "")
	cfg.Push.ContactEmail = getEnv("VAPID_EMAIL", "")

	if secs := getEnvInt("NUDGE_TICK_SECONDS", 0); secs > 0 {
		cfg.Scheduler.TickInterval = time.Duration(secs) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("NUDGE_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.Scheduler.TickInterval < time.Second {
		return fmt.Errorf("NUDGE_TICK_SECONDS must be >= 1")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
