// Package journal persists executed trades and their settlement progress.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"multiswap/pkg/settlement"
)

const (
	DefaultFileName = ".multiswap-journal.json"
)

// State is the lifecycle of a journal entry
type State string

const (
	StatePending   State = "pending"   // Trade built, not yet executed
	StateSettling  State = "settling"  // Legs broadcast, awaiting confirmation
	StateCompleted State = "completed" // Trade executed
	StateFailed    State = "failed"    // Trade failed, see Error
)

// Entry is one trade execution
type Entry struct {
	ID             string                  `json:"id"`
	Swapper        string                  `json:"swapper"`
	SellAssetID    string                  `json:"sell_asset_id"`
	BuyAssetID     string                  `json:"buy_asset_id"`
	SellAmount     string                  `json:"sell_amount"`
	ReceiveAddress string                  `json:"receive_address"`
	DepositAddress string                  `json:"deposit_address,omitempty"`
	State          State                   `json:"state"`
	TradeID        string                  `json:"trade_id,omitempty"`
	Legs           []string                `json:"legs,omitempty"`
	Transitions    []settlement.Transition `json:"transitions,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Created        time.Time               `json:"created"`
	LastUpdated    time.Time               `json:"last_updated"`
}

// Settlement returns the last settlement state recorded for the entry
func (e *Entry) Settlement() (settlement.State, bool) {
	if len(e.Transitions) == 0 {
		return "", false
	}
	return e.Transitions[len(e.Transitions)-1].To, true
}

// NeedsAttention reports a failed entry that broadcast at least one leg
func (e *Entry) NeedsAttention() bool {
	return e.State == StateFailed && len(e.Legs) > 0
}

// Journal is a JSON file of entries keyed by id
type Journal struct {
	filePath string
	logger   *slog.Logger
	mu       sync.RWMutex
	entries  map[string]*Entry
}

type fileFormat struct {
	Entries map[string]*Entry `json:"entries"`
}

// Open loads the journal at filePath, defaulting to the home directory
func Open(filePath string, logger *slog.Logger) (*Journal, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Journal{
		filePath: filePath,
		logger:   logger,
		entries:  make(map[string]*Entry),
	}

	data, err := os.ReadFile(filePath)
	switch {
	case os.IsNotExist(err):
		// created on first write
	case err != nil:
		return nil, fmt.Errorf("failed to read journal: %w", err)
	default:
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
		}
		if f.Entries != nil {
			j.entries = f.Entries
		}
	}

	return j, nil
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.filePath
}

// saveLocked writes the journal; the caller holds j.mu.
func (j *Journal) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Entries: j.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := j.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, j.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Begin records a new pending entry and assigns its id
func (j *Journal) Begin(e Entry) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := j.entries[e.ID]; exists {
		return nil, fmt.Errorf("entry '%s' already exists", e.ID)
	}
	now := time.Now().UTC()
	e.State = StatePending
	e.Created = now
	e.LastUpdated = now

	entry := e
	j.entries[e.ID] = &entry
	if err := j.saveLocked(); err != nil {
		return nil, err
	}
	cp := entry
	return &cp, nil
}

func (j *Journal) update(id string, fn func(e *Entry)) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, exists := j.entries[id]
	if !exists {
		return fmt.Errorf("entry '%s' not found", id)
	}
	fn(e)
	e.LastUpdated = time.Now().UTC()
	return j.saveLocked()
}

// Observe appends a settlement transition to the entry named by its run id.
// Write failures are logged since settlement cannot stop for them.
func (j *Journal) Observe(t settlement.Transition) {
	err := j.update(t.RunID, func(e *Entry) {
		e.Transitions = append(e.Transitions, t)
		if t.TxID != "" && !contains(e.Legs, t.TxID) {
			e.Legs = append(e.Legs, t.TxID)
		}
		switch t.To {
		case settlement.StateFailed:
			e.State = StateFailed
			e.Error = t.Reason
		case settlement.StateLeg2Confirmed:
			e.State = StateCompleted
		default:
			if e.State == StatePending && t.To != settlement.StateBuilt {
				e.State = StateSettling
			}
		}
	})
	if err != nil {
		j.logger.Error("failed to journal settlement transition", "run", t.RunID, "to", t.To, "error", err)
	}
}

// Complete marks the entry executed with its venue trade id
func (j *Journal) Complete(id, tradeID string) error {
	return j.update(id, func(e *Entry) {
		e.State = StateCompleted
		e.TradeID = tradeID
		if tradeID != "" && !contains(e.Legs, tradeID) {
			e.Legs = append(e.Legs, tradeID)
		}
	})
}

// Fail marks the entry failed
func (j *Journal) Fail(id string, cause error) error {
	return j.update(id, func(e *Entry) {
		e.State = StateFailed
		if cause != nil {
			e.Error = cause.Error()
		}
	})
}

// Get returns a copy of the entry
func (j *Journal) Get(id string) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	e, exists := j.entries[id]
	if !exists {
		return nil, fmt.Errorf("entry '%s' not found", id)
	}
	cp := *e
	cp.Legs = append([]string(nil), e.Legs...)
	cp.Transitions = append([]settlement.Transition(nil), e.Transitions...)
	return &cp, nil
}

// List returns all entries, newest first
func (j *Journal) List() []*Entry {
	j.mu.RLock()
	ids := make([]string, 0, len(j.entries))
	for id := range j.entries {
		ids = append(ids, id)
	}
	j.mu.RUnlock()

	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		if e, err := j.Get(id); err == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Created.Equal(out[b].Created) {
			return out[a].ID < out[b].ID
		}
		return out[a].Created.After(out[b].Created)
	})
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ settlement.Observer = (*Journal)(nil)
