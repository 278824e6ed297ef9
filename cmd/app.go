package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"multiswap/config"
	"multiswap/pkg/asset"
	"multiswap/pkg/chain"
	"multiswap/pkg/chain/evm"
	"multiswap/pkg/journal"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
	"multiswap/pkg/venue/cowswap"
	"multiswap/pkg/venue/nearintents"
	"multiswap/pkg/venue/osmosis"
	"multiswap/pkg/venue/thorchain"
	"multiswap/pkg/venue/zrx"
)

// app holds everything a command needs, built once from the configuration
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	assets   *asset.Registry
	adapters chain.Adapters
	wallet   chain.Wallet
	journal  *journal.Journal
	manager  *swapper.Manager
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(level, verbose)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		assets:   asset.Default(),
		adapters: make(chain.Adapters),
	}

	names := make([]string, 0, len(cfg.EVM.Networks))
	for name := range cfg.EVM.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		network := cfg.EVM.Networks[name]
		adapter, err := evm.Dial(network)
		if err != nil {
			return nil, fmt.Errorf("evm network %s: %w", name, err)
		}
		a.adapters[network.CAIP2()] = adapter

		if a.wallet == nil && network.PrivateKey != "" {
			w, err := evm.NewKeyWallet(network.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("evm network %s: %w", name, err)
			}
			a.wallet = w
		}
	}

	if a.journal, err = journal.Open(cfg.Journal.Path, logger); err != nil {
		return nil, err
	}

	a.manager = swapper.NewManager(logger)
	factories := a.factories()
	for _, name := range cfg.Swappers {
		t := swapper.Type(name)
		factory, ok := factories[t]
		if !ok {
			return nil, fmt.Errorf("unknown swapper %q in configuration", name)
		}
		if err := a.manager.AddSwapper(t, factory); err != nil {
			return nil, err
		}
	}

	logger.Debug("loaded configuration",
		"swappers", cfg.Swappers,
		"evm_networks", names,
		"wallet", a.wallet != nil,
		"journal", a.journal.Path(),
	)
	return a, nil
}

// factories constructs venues lazily so a misconfigured venue only fails
// the commands that use it
func (a *app) factories() map[swapper.Type]swapper.Factory {
	return map[swapper.Type]swapper.Factory{
		swapper.TypeZrx: func() (swapper.Swapper, error) {
			return zrx.New(a.cfg.Zrx, zrx.Deps{Adapters: a.adapters, Logger: a.logger})
		},
		swapper.TypeCowSwap: func() (swapper.Swapper, error) {
			return cowswap.New(a.cfg.CowSwap, cowswap.Deps{Adapters: a.adapters, Logger: a.logger})
		},
		swapper.TypeThorchain: func() (swapper.Swapper, error) {
			return thorchain.New(a.cfg.Thorchain, thorchain.Deps{Adapters: a.adapters, Logger: a.logger})
		},
		swapper.TypeOsmosis: func() (swapper.Swapper, error) {
			return osmosis.New(a.cfg.Osmosis, osmosis.Deps{
				Adapters: a.adapters,
				Observer: a.journal,
				Logger:   a.logger,
			})
		},
		swapper.TypeNearIntents: func() (swapper.Swapper, error) {
			return nearintents.New(a.cfg.NearIntents, nearintents.Deps{Adapters: a.adapters, Logger: a.logger})
		},
	}
}

// pick returns the named swapper, or the first one supporting the pair
func (a *app) pick(name string, sell, buy types.Asset) (swapper.Swapper, error) {
	if name != "" {
		return a.manager.BySwapper(swapper.Type(name))
	}
	return a.manager.GetBestSwapper(sell.AssetID, buy.AssetID)
}

func (a *app) requireWallet() error {
	if a.wallet == nil {
		return fmt.Errorf("no wallet configured: set evm.networks.<name>.private_key or MULTISWAP_EVM_PRIVATE_KEY")
	}
	return nil
}

// feeAsset returns the fee asset of chainID when both its adapter and the asset are known
func (a *app) feeAsset(chainID string) (types.Asset, bool) {
	adapter, err := a.adapters.Get(chainID)
	if err != nil {
		return types.Asset{}, false
	}
	fee, err := a.assets.ByID(adapter.FeeAssetID())
	if err != nil {
		return types.Asset{}, false
	}
	return fee, true
}

// symbolOf returns the registry symbol for assetID, or the id itself
func (a *app) symbolOf(assetID string) string {
	if found, err := a.assets.ByID(assetID); err == nil {
		return found.Symbol
	}
	return assetID
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// mustLoadApp loads the app or exits like the other command failures
func mustLoadApp(cmd *cobra.Command) *app {
	a, err := loadApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}
