// Package engine wires parsing, categorization, deduplication and exclusion
// filtering into the scan and maintenance operations the CLI exposes.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/dedup"
	"github.com/Veraticus/spice-sms/internal/exclusion"
	"github.com/Veraticus/spice-sms/internal/merchant"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
	"github.com/Veraticus/spice-sms/internal/sms"
)

// Config holds scan bounds and the policies of the collaborators.
type Config struct {
	Dedup       dedup.Config
	StoreRetry  common.RetryOptions
	Lookback    time.Duration
	MaxMessages int
	YieldEvery  int
	Incremental bool
}

// DefaultConfig returns a 180 day lookback capped at 5000 messages, yielding every 50.
func DefaultConfig() Config {
	return Config{
		Lookback:    180 * 24 * time.Hour,
		MaxMessages: 5000,
		YieldEvery:  50,
		Dedup:       dedup.DefaultConfig(),
		StoreRetry:  common.DefaultStoreRetry,
	}
}

// ProgressFunc receives (processed, total, status) on the scanning goroutine. It must not block.
type ProgressFunc func(processed, total int, status string)

// Engine is the entry point for scans and the operations around them.
type Engine struct {
	source     service.MessageSource
	store      service.Storage
	parser     *sms.Parser
	merchants  *merchant.Service
	dedup      *dedup.Engine
	exclusions *exclusion.Filter
	now        func() time.Time
	newRunID   func() string
	cfg        Config
	// guard serializes Scan and CleanupDuplicates.
	guard sync.Mutex
}

// New creates an engine with the default configuration.
func New(source service.MessageSource, store service.Storage) *Engine {
	return NewWithConfig(source, store, DefaultConfig())
}

// NewWithConfig creates an engine. Non-positive bounds fall back to the defaults.
func NewWithConfig(source service.MessageSource, store service.Storage, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.YieldEvery <= 0 {
		cfg.YieldEvery = def.YieldEvery
	}
	if cfg.StoreRetry.MaxAttempts <= 0 {
		cfg.StoreRetry = def.StoreRetry
	}

	return &Engine{
		source:     source,
		store:      store,
		parser:     sms.NewParser(nil),
		merchants:  merchant.NewService(store, store, store, nil),
		dedup:      dedup.NewEngine(store, cfg.Dedup),
		exclusions: exclusion.NewFilter(store, store),
		now:        time.Now,
		newRunID:   uuid.NewString,
		cfg:        cfg,
	}
}

// SetClock overrides the engine clock.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Merchants exposes the merchant service for category changes.
func (e *Engine) Merchants() *merchant.Service {
	return e.merchants
}

// Exclusions exposes the exclusion filter.
func (e *Engine) Exclusions() *exclusion.Filter {
	return e.exclusions
}

// CleanupDuplicates runs the batch exact-key pass. It refuses to run during a scan.
func (e *Engine) CleanupDuplicates(ctx context.Context) (int, error) {
	if !e.guard.TryLock() {
		return 0, common.ErrScanInProgress
	}
	defer e.guard.Unlock()

	return e.dedup.Cleanup(ctx)
}

// FilterByExclusions drops transactions whose merchant is excluded.
func (e *Engine) FilterByExclusions(ctx context.Context, txns []model.Transaction) []model.Transaction {
	return exclusion.Apply(ctx, e.exclusions, txns)
}

// SeparateByInclusion returns (all, included, excluded).
func (e *Engine) SeparateByInclusion(ctx context.Context, txns []model.Transaction) (all, included, excluded []model.Transaction) {
	return exclusion.Separate(ctx, e.exclusions, txns)
}

// UpdateMerchantExclusion sets the primary exclusion flag and reports whether a merchant was updated.
func (e *Engine) UpdateMerchantExclusion(ctx context.Context, name string, excluded bool) bool {
	return e.exclusions.UpdateExclusion(ctx, name, excluded)
}
