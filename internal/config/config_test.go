package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetEnvPrefix("OPSDESK")
	viper.AutomaticEnv()
	viper.SetDefault(KeyChatModel, DefaultChatModel)
	viper.SetDefault(KeyTriageModel, DefaultTriageModel)
	viper.SetDefault(KeyBaseCurrency, DefaultBaseCurrency)
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyMemoryEnabled, true)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, cfg.ChatModel)
	assert.Equal(t, DefaultTriageModel, cfg.TriageModel)
	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.True(t, cfg.MemoryEnabled)
	assert.False(t, cfg.ProviderConfigured())
}

func TestLoad_ProviderConfigured(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyOpenAIAPIKey, "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ProviderConfigured())
}

func TestLoad_InvalidRetention(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyRetentionDays, 0)

	_, err := Load()
	assert.ErrorContains(t, err, "retention_days")
}

func TestLoad_InvalidCurrency(t *testing.T) {
	resetViper(t)
	viper.Set(KeyDataDir, t.TempDir())
	viper.Set(KeyBaseCurrency, "EURO")

	_, err := Load()
	assert.ErrorContains(t, err, "base_currency")
}

func TestConfig_Paths(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	viper.Set(KeyDataDir, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "crm.db"), cfg.CRMDBPath())
	assert.Equal(t, filepath.Join(dir, "conversations.db"), cfg.ConversationDBPath())
	require.NoError(t, cfg.EnsureDataDir())
}
