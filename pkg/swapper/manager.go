package swapper

import (
	"fmt"
	"log/slog"
	"sync"
)

// Factory constructs a swapper on first use
type Factory func() (Swapper, error)

type registration struct {
	factory Factory
	swapper Swapper
}

// Manager is the registry of venues
type Manager struct {
	mu      sync.RWMutex
	entries map[Type]*registration
	order   []Type
	logger  *slog.Logger
}

// NewManager creates an empty manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: make(map[Type]*registration),
		logger:  logger,
	}
}

// AddSwapper registers a venue factory. The factory runs on first lookup.
func (m *Manager) AddSwapper(t Type, factory Factory) error {
	if factory == nil {
		return NewError(KindValidationFailed, "nil factory for swapper %s", t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[t]; exists {
		return NewError(KindAlreadyExists, "swapper %s already registered", t)
	}
	m.entries[t] = &registration{factory: factory}
	m.order = append(m.order, t)
	return nil
}

// BySwapper returns the venue registered as t, constructing it if needed.
// Construction failures are returned and retried on the next lookup.
func (m *Manager) BySwapper(t Type) (Swapper, error) {
	m.mu.RLock()
	reg, exists := m.entries[t]
	var s Swapper
	if exists {
		s = reg.swapper
	}
	m.mu.RUnlock()

	if !exists {
		return nil, NewError(KindNotFound, "swapper %s not registered", t)
	}
	if s != nil {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reg.swapper != nil {
		return reg.swapper, nil
	}
	s, err := reg.factory()
	if err != nil {
		return nil, fmt.Errorf("construct swapper %s: %w", t, err)
	}
	reg.swapper = s
	return s, nil
}

// Swappers lists registered venue types in registration order
func (m *Manager) Swappers() []Type {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Type, len(m.order))
	copy(out, m.order)
	return out
}

// GetBestSwapper returns the first registered venue that supports the pair.
// No prices are compared and no network calls are made.
func (m *Manager) GetBestSwapper(sellAssetID, buyAssetID string) (Swapper, error) {
	for _, t := range m.Swappers() {
		s, err := m.BySwapper(t)
		if err != nil {
			m.logger.Warn("skipping swapper", "swapper", t, "error", err)
			continue
		}

		if !ContainsAsset(s.FilterAssetIDsBySellable([]string{sellAssetID}), sellAssetID) {
			continue
		}
		buyable := s.FilterBuyAssetsBySellAssetID(BuyAssetFilterInput{
			AssetIDs:    []string{buyAssetID},
			SellAssetID: sellAssetID,
		})
		if ContainsAsset(buyable, buyAssetID) {
			return s, nil
		}
	}
	return nil, NewError(KindUnsupportedPair, "no swapper supports %s -> %s", sellAssetID, buyAssetID)
}
