// Package config holds OPERATOR-LEVEL configuration for an opsdesk installation.
//
// This is infrastructure config set by whoever deploys the service, NOT
// end-user or per-tenant data. It is resolved from env vars (OPSDESK_*),
// an optional opsdesk.config.yaml, and defaults, in that order of
// precedence via Viper.
//
// The OpenAI API key is deliberately optional: the chat surface must stay
// up and answer with a fixed degraded message when the key is absent, so
// a misconfigured deployment never turns into a hard outage for end users.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the OPSDESK_ prefix
// (e.g. "openai_api_key" → OPSDESK_OPENAI_API_KEY) and to a YAML field
// in opsdesk.config.yaml.
const (
	KeyDataDir       = "data_dir"
	KeyOpenAIAPIKey  = "openai_api_key"
	KeyChatModel     = "chat_model"
	KeyTriageModel   = "triage_model"
	KeyBaseCurrency  = "base_currency"
	KeyRetentionDays = "retention_days"
	KeyMemoryEnabled = "memory_enabled"
	KeyTenantsFile   = "tenants_file"
)

// Defaults. The triage model is intentionally a cheaper/faster model than
// the chat model: classification is a one-token-ish decision.
const (
	DefaultChatModel     = "gpt-4o"
	DefaultTriageModel   = "gpt-4o-mini"
	DefaultBaseCurrency  = "EUR"
	DefaultRetentionDays = 7
)

// Config holds resolved operator-level configuration for an opsdesk process.
type Config struct {
	DataDir       string // base directory for all state (~/.opsdesk)
	OpenAIAPIKey  string // optional; empty means degraded chat replies
	ChatModel     string // model used for specialist dispatch
	TriageModel   string // model used for triage classification
	BaseCurrency  string // default currency when a tenant has none
	RetentionDays int    // conversation/memory sliding retention window
	MemoryEnabled bool   // working-memory feature flag
	TenantsFile   string // path to tenants.yaml; empty means single default tenant
}

// CRMDBPath returns the full path to the CRM SQLite database.
func (c *Config) CRMDBPath() string {
	return filepath.Join(c.DataDir, "crm.db")
}

// ConversationDBPath returns the full path to the conversation SQLite database.
func (c *Config) ConversationDBPath() string {
	return filepath.Join(c.DataDir, "conversations.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// ProviderConfigured reports whether an LLM provider credential is present.
func (c *Config) ProviderConfigured() bool {
	return c.OpenAIAPIKey != ""
}

func init() {
	viper.SetEnvPrefix("OPSDESK")
	viper.AutomaticEnv()
	viper.SetDefault(KeyChatModel, DefaultChatModel)
	viper.SetDefault(KeyTriageModel, DefaultTriageModel)
	viper.SetDefault(KeyBaseCurrency, DefaultBaseCurrency)
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyMemoryEnabled, true)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:       resolveDataDir(),
		OpenAIAPIKey:  viper.GetString(KeyOpenAIAPIKey),
		ChatModel:     viper.GetString(KeyChatModel),
		TriageModel:   viper.GetString(KeyTriageModel),
		BaseCurrency:  viper.GetString(KeyBaseCurrency),
		RetentionDays: viper.GetInt(KeyRetentionDays),
		MemoryEnabled: viper.GetBool(KeyMemoryEnabled),
		TenantsFile:   viper.GetString(KeyTenantsFile),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opsdesk"
	}
	return filepath.Join(home, ".opsdesk")
}

func (c *Config) validate() error {
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}
	if c.ChatModel == "" {
		return fmt.Errorf("chat_model must not be empty")
	}
	if c.TriageModel == "" {
		return fmt.Errorf("triage_model must not be empty")
	}
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("base_currency must be a 3-letter ISO code (got %q)", c.BaseCurrency)
	}
	return nil
}
