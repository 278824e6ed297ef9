package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	Swappers    []string          `mapstructure:"swappers"`
	EVM         EVMConfig         `mapstructure:"evm"`
	Zrx         ZrxConfig         `mapstructure:"zrx"`
	CowSwap     CowSwapConfig     `mapstructure:"cowswap"`
	Thorchain   ThorchainConfig   `mapstructure:"thorchain"`
	Osmosis     OsmosisConfig     `mapstructure:"osmosis"`
	NearIntents NearIntentsConfig `mapstructure:"near_intents"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Server      ServerConfig      `mapstructure:"server"`
}

// EVMConfig holds the EVM networks the router can sign for
type EVMConfig struct {
	Networks map[string]EVMNetwork `mapstructure:"networks"`
}

// EVMNetwork describes one EVM chain
type EVMNetwork struct {
	ChainID    int64   `mapstructure:"chain_id"`
	RPCUrl     string  `mapstructure:"rpc_url"`
	PrivateKey string  `mapstructure:"private_key"`
	FeeAssetID string  `mapstructure:"fee_asset_id"`
	GasLimit   *uint64 `mapstructure:"gas_limit"`
	GasPrice   *int64  `mapstructure:"gas_price"`
}

// CAIP2 returns the network's CAIP-2 chain id
func (n EVMNetwork) CAIP2() string {
	return fmt.Sprintf("eip155:%d", n.ChainID)
}

// ZrxConfig configures the 0x aggregator
type ZrxConfig struct {
	BaseURLs         map[string]string `mapstructure:"base_urls"`
	USDCAddresses    map[string]string `mapstructure:"usdc_addresses"`
	APIKey           string            `mapstructure:"api_key"`
	AffiliateAddress string            `mapstructure:"affiliate_address"`
	MinTradeValueUSD string            `mapstructure:"min_trade_value_usd"`
	MaxTradeAmount   string            `mapstructure:"max_trade_amount"`
	DefaultSlippage  string            `mapstructure:"default_slippage"`
	GasRetryAttempts int               `mapstructure:"gas_retry_attempts"`
	GasRetryDelay    time.Duration     `mapstructure:"gas_retry_delay"`
	RequestTimeout   time.Duration     `mapstructure:"request_timeout"`
}

// CowSwapConfig configures the CoW Protocol batch auction venue
type CowSwapConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	ChainID            int64         `mapstructure:"chain_id"`
	SettlementContract string        `mapstructure:"settlement_contract"`
	VaultRelayer       string        `mapstructure:"vault_relayer"`
	AppData            string        `mapstructure:"app_data"`
	DefaultReceiver    string        `mapstructure:"default_receiver"`
	MinTradeValueUSD   string        `mapstructure:"min_trade_value_usd"`
	MaxTradeAmount     string        `mapstructure:"max_trade_amount"`
	DefaultSlippage    string        `mapstructure:"default_slippage"`
	OrderValidity      time.Duration `mapstructure:"order_validity"`
	USDCAddress        string        `mapstructure:"usdc_address"`
	WrappedNative      string        `mapstructure:"wrapped_native"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// ThorchainConfig configures the THORChain hub venue
type ThorchainConfig struct {
	ThornodeURL     string        `mapstructure:"thornode_url"`
	Affiliate       string        `mapstructure:"affiliate"`
	AffiliateBps    string        `mapstructure:"affiliate_bps"`
	DefaultSlippage string        `mapstructure:"default_slippage"`
	MaxSlippage     string        `mapstructure:"max_slippage"`
	MaxFeeFraction  string        `mapstructure:"max_fee_fraction"`
	USDPool         string        `mapstructure:"usd_pool"`
	DepositExpiry   time.Duration `mapstructure:"deposit_expiry"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// OsmosisConfig configures the Osmosis single-pool venue and its IBC legs
type OsmosisConfig struct {
	OsmosisURL          string        `mapstructure:"osmosis_url"`
	CosmosHubURL        string        `mapstructure:"cosmoshub_url"`
	PoolID              string        `mapstructure:"pool_id"`
	USDPoolID           string        `mapstructure:"usd_pool_id"`
	USDDenom            string        `mapstructure:"usd_denom"`
	AtomDenomOnOsmosis  string        `mapstructure:"atom_denom_on_osmosis"`
	ChannelToOsmosis    string        `mapstructure:"channel_to_osmosis"`
	ChannelToCosmosHub  string        `mapstructure:"channel_to_cosmoshub"`
	OsmosisChainID      string        `mapstructure:"osmosis_chain_id"`
	CosmosHubChainID    string        `mapstructure:"cosmoshub_chain_id"`
	OsmosisRevision     string        `mapstructure:"osmosis_revision"`
	CosmosHubRevision   string        `mapstructure:"cosmoshub_revision"`
	TimeoutHeightOffset int64         `mapstructure:"timeout_height_offset"`
	SwapGas             string        `mapstructure:"swap_gas"`
	TransferGas         string        `mapstructure:"transfer_gas"`
	OsmosisTxFee        string        `mapstructure:"osmosis_tx_fee"`
	CosmosHubTxFee      string        `mapstructure:"cosmoshub_tx_fee"`
	DefaultSlippage     string        `mapstructure:"default_slippage"`
	MaxSlippage         string        `mapstructure:"max_slippage"`
	MinTradeValueUSD    string        `mapstructure:"min_trade_value_usd"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	PollTimeout         time.Duration `mapstructure:"poll_timeout"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// NearIntentsConfig configures the 1Click intents venue
type NearIntentsConfig struct {
	JWTToken       string            `mapstructure:"jwt_token"`
	BaseURL        string            `mapstructure:"base_url"`
	Blockchains    map[string]string `mapstructure:"blockchains"`
	SlippageBps    int32             `mapstructure:"slippage_bps"`
	Deadline       time.Duration     `mapstructure:"deadline"`
	MinTradeAmount string            `mapstructure:"min_trade_amount"`
	MaxTradeAmount string            `mapstructure:"max_trade_amount"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// JournalConfig locates the trade journal
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var globalConfig *Config

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("swappers", []string{"Thorchain", "0x", "CowSwap", "Osmosis", "NearIntents"})

	v.SetDefault("evm.networks", map[string]any{
		"ethereum": map[string]any{
			"chain_id":     1,
			"rpc_url":      "https://ethereum-rpc.publicnode.com",
			"fee_asset_id": "eip155:1/slip44:60",
		},
	})

	v.SetDefault("zrx.base_urls", map[string]string{
		"eip155:1":     "https://api.0x.org",
		"eip155:43114": "https://avalanche.api.0x.org",
	})
	v.SetDefault("zrx.usdc_addresses", map[string]string{
		"eip155:1":     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"eip155:43114": "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e",
	})
	v.SetDefault("zrx.affiliate_address", "0xc770eefad204b5180df6a14ee197d99d808ee52d")
	v.SetDefault("zrx.min_trade_value_usd", "1")
	v.SetDefault("zrx.max_trade_amount", "100000000000000000000000000")
	v.SetDefault("zrx.default_slippage", "0.002")
	v.SetDefault("zrx.gas_retry_attempts", 3)
	v.SetDefault("zrx.gas_retry_delay", 500*time.Millisecond)
	v.SetDefault("zrx.request_timeout", 20*time.Second)

	v.SetDefault("cowswap.base_url", "https://api.cow.fi/mainnet/api")
	v.SetDefault("cowswap.chain_id", 1)
	v.SetDefault("cowswap.settlement_contract", "0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	v.SetDefault("cowswap.vault_relayer", "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110")
	v.SetDefault("cowswap.app_data", "0x0000000000000000000000000000000000000000000000000000000000000000")
	v.SetDefault("cowswap.default_receiver", "0x0000000000000000000000000000000000000000")
	v.SetDefault("cowswap.min_trade_value_usd", "20")
	v.SetDefault("cowswap.max_trade_amount", "100000000000000000000000000")
	v.SetDefault("cowswap.default_slippage", "0.005")
	v.SetDefault("cowswap.order_validity", 30*time.Minute)
	v.SetDefault("cowswap.usdc_address", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	v.SetDefault("cowswap.wrapped_native", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	v.SetDefault("cowswap.request_timeout", 20*time.Second)

	v.SetDefault("thorchain.thornode_url", "https://thornode.ninerealms.com")
	v.SetDefault("thorchain.affiliate", "ss")
	v.SetDefault("thorchain.affiliate_bps", "0")
	v.SetDefault("thorchain.default_slippage", "0.03")
	v.SetDefault("thorchain.max_slippage", "0.1")
	v.SetDefault("thorchain.max_fee_fraction", "0.1")
	v.SetDefault("thorchain.usd_pool", "ETH.USDC-0XA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48")
	v.SetDefault("thorchain.deposit_expiry", 15*time.Minute)
	v.SetDefault("thorchain.request_timeout", 20*time.Second)

	v.SetDefault("osmosis.osmosis_url", "https://lcd.osmosis.zone")
	v.SetDefault("osmosis.cosmoshub_url", "https://cosmos-rest.publicnode.com")
	v.SetDefault("osmosis.pool_id", "1")
	v.SetDefault("osmosis.usd_pool_id", "678")
	v.SetDefault("osmosis.usd_denom", "ibc/D189335C6E4A68B513C10AB227BF1C1D38C746766278BA3EEB4FB14124F1D858")
	v.SetDefault("osmosis.atom_denom_on_osmosis", "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2")
	v.SetDefault("osmosis.channel_to_osmosis", "channel-141")
	v.SetDefault("osmosis.channel_to_cosmoshub", "channel-0")
	v.SetDefault("osmosis.osmosis_chain_id", "osmosis-1")
	v.SetDefault("osmosis.cosmoshub_chain_id", "cosmoshub-4")
	v.SetDefault("osmosis.osmosis_revision", "1")
	v.SetDefault("osmosis.cosmoshub_revision", "4")
	v.SetDefault("osmosis.timeout_height_offset", 100)
	v.SetDefault("osmosis.swap_gas", "1000000")
	v.SetDefault("osmosis.transfer_gas", "300000")
	v.SetDefault("osmosis.osmosis_tx_fee", "0")
	v.SetDefault("osmosis.cosmoshub_tx_fee", "2500")
	v.SetDefault("osmosis.default_slippage", "0.01")
	v.SetDefault("osmosis.max_slippage", "0.1")
	v.SetDefault("osmosis.min_trade_value_usd", "1")
	v.SetDefault("osmosis.poll_interval", 5*time.Second)
	v.SetDefault("osmosis.poll_timeout", 2*time.Minute)
	v.SetDefault("osmosis.request_timeout", 20*time.Second)

	v.SetDefault("near_intents.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("near_intents.blockchains", map[string]string{
		"eip155:1":     "eth",
		"eip155:43114": "avax",
		"bip122:000000000019d6689c085ae165831e93": "btc",
	})
	v.SetDefault("near_intents.slippage_bps", 100)
	v.SetDefault("near_intents.deadline", 24*time.Hour)
	v.SetDefault("near_intents.min_trade_amount", "0")
	v.SetDefault("near_intents.max_trade_amount", "100000000000000000000000000")
	v.SetDefault("near_intents.request_timeout", 30*time.Second)

	v.SetDefault("journal.path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// New builds a viper instance reading .multiswap.yaml and MULTISWAP_* variables
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName(".multiswap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	SetDefaults(v)

	v.SetEnvPrefix("MULTISWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := New()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Secrets from the environment override nested file values
	if key := v.GetString("evm_private_key"); key != "" {
		for name, network := range cfg.EVM.Networks {
			if network.PrivateKey == "" {
				network.PrivateKey = key
				cfg.EVM.Networks[name] = network
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a trade
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: expected debug, info, warn or error", c.LogLevel)
	}

	if c.Osmosis.PollInterval <= 0 || c.Osmosis.PollTimeout <= 0 {
		return fmt.Errorf("osmosis poll_interval and poll_timeout must be positive")
	}
	if c.Osmosis.PollInterval > c.Osmosis.PollTimeout {
		return fmt.Errorf("osmosis poll_interval %s exceeds poll_timeout %s", c.Osmosis.PollInterval, c.Osmosis.PollTimeout)
	}

	if c.NearIntents.SlippageBps < 0 || c.NearIntents.SlippageBps > 10000 {
		return fmt.Errorf("near_intents slippage_bps %d outside [0, 10000]", c.NearIntents.SlippageBps)
	}
	for key, raw := range map[string]string{
		"zrx.default_slippage":       c.Zrx.DefaultSlippage,
		"cowswap.default_slippage":   c.CowSwap.DefaultSlippage,
		"thorchain.default_slippage": c.Thorchain.DefaultSlippage,
		"thorchain.max_slippage":     c.Thorchain.MaxSlippage,
		"osmosis.default_slippage":   c.Osmosis.DefaultSlippage,
		"osmosis.max_slippage":       c.Osmosis.MaxSlippage,
	} {
		if err := validateFraction(key, raw); err != nil {
			return err
		}
	}

	for name, network := range c.EVM.Networks {
		if network.ChainID <= 0 {
			return fmt.Errorf("evm network %s: chain_id is required", name)
		}
	}
	return nil
}

// validateFraction accepts empty values and decimals in [0, 1]
func validateFraction(key, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s %s outside [0, 1]", key, raw)
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
