package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"Thorchain", "0x", "CowSwap", "Osmosis", "NearIntents"}, cfg.Swappers)
	assert.Equal(t, "https://api.0x.org", cfg.Zrx.BaseURLs["eip155:1"])
	assert.Equal(t, 3, cfg.Zrx.GasRetryAttempts)
	assert.Equal(t, "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110", cfg.CowSwap.VaultRelayer)
	assert.Equal(t, "ss", cfg.Thorchain.Affiliate)
	assert.Equal(t, 5*time.Second, cfg.Osmosis.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Osmosis.PollTimeout)
	assert.Equal(t, "eth", cfg.NearIntents.Blockchains["eip155:1"])
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	eth, ok := cfg.EVM.Networks["ethereum"]
	require.True(t, ok)
	assert.Equal(t, "eip155:1", eth.CAIP2())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MULTISWAP_LOG_LEVEL", "debug")
	t.Setenv("MULTISWAP_THORCHAIN_THORNODE_URL", "http://localhost:1317")
	t.Setenv("MULTISWAP_OSMOSIS_POLL_INTERVAL", "1s")
	t.Setenv("MULTISWAP_EVM_PRIVATE_KEY", "0xabc")

	cfg, err := FromViper(New())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:1317", cfg.Thorchain.ThornodeURL)
	assert.Equal(t, time.Second, cfg.Osmosis.PollInterval)
	assert.Equal(t, "0xabc", cfg.EVM.Networks["ethereum"].PrivateKey)
}

func TestValidate(t *testing.T) {
	t.Setenv("MULTISWAP_LOG_LEVEL", "verbose")
	_, err := FromViper(New())
	assert.Error(t, err)
}

func TestValidatePollWindow(t *testing.T) {
	t.Setenv("MULTISWAP_OSMOSIS_POLL_INTERVAL", "5m")
	_, err := FromViper(New())
	assert.ErrorContains(t, err, "poll_interval")
}

func TestValidateSlippage(t *testing.T) {
	t.Setenv("MULTISWAP_THORCHAIN_MAX_SLIPPAGE", "1.5")
	_, err := FromViper(New())
	assert.ErrorContains(t, err, "thorchain.max_slippage")
}

func TestValidateSlippageBps(t *testing.T) {
	t.Setenv("MULTISWAP_NEAR_INTENTS_SLIPPAGE_BPS", "20000")
	_, err := FromViper(New())
	assert.ErrorContains(t, err, "slippage_bps")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
log_level: warn
swappers: [CowSwap]
journal:
  path: /tmp/journal.json
cowswap:
  min_trade_value_usd: "50"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".multiswap.yaml"), content, 0600))

	v := New()
	v.AddConfigPath(dir)
	v.SetConfigFile(filepath.Join(dir, ".multiswap.yaml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"CowSwap"}, cfg.Swappers)
	assert.Equal(t, "/tmp/journal.json", cfg.Journal.Path)
	assert.Equal(t, "50", cfg.CowSwap.MinTradeValueUSD)
	assert.Equal(t, "https://api.cow.fi/mainnet/api", cfg.CowSwap.BaseURL)
}
