// Package dedup detects duplicate transactions at insert time and in batch.
//
// The two policies differ on purpose. Insert-time checks use a tolerance window
// (amount and time) to catch the same purchase reported twice with slightly
// different figures. Batch cleanup groups by the exact DedupKey.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
)

// Config holds the tolerance window and the day boundary location.
type Config struct {
	Location        *time.Location
	AmountTolerance decimal.Decimal
	TimeWindow      time.Duration
}

// DefaultConfig returns ±1.00 and ±10 minutes in the local zone.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.NewFromInt(1),
		TimeWindow:      10 * time.Minute,
		Location:        time.Local,
	}
}

// Outcome is the result of an insert-time check.
type Outcome struct {
	Match     *model.Transaction
	Duplicate bool
}

// Engine applies both duplicate policies against a transaction store.
type Engine struct {
	store service.TransactionStore
	cfg   Config
}

// NewEngine creates an engine. Zero config fields take their defaults.
func NewEngine(store service.TransactionStore, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.AmountTolerance.IsNegative() || cfg.AmountTolerance.IsZero() {
		cfg.AmountTolerance = def.AmountTolerance
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = def.TimeWindow
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	return &Engine{store: store, cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Check looks for a stored transaction of the same merchant and bank inside the
// amount and time window. Rows sharing the candidate's message id are ignored.
func (e *Engine) Check(ctx context.Context, c *model.Candidate) (Outcome, error) {
	q := service.SimilarQuery{
		Merchant:  c.MerchantNormalized,
		Bank:      c.BankName,
		MinAmount: c.Amount.Sub(e.cfg.AmountTolerance),
		MaxAmount: c.Amount.Add(e.cfg.AmountTolerance),
		From:      c.Timestamp.Add(-e.cfg.TimeWindow),
		To:        c.Timestamp.Add(e.cfg.TimeWindow),
	}
	if q.MinAmount.IsNegative() {
		q.MinAmount = decimal.Zero
	}

	similar, err := e.store.FindSimilarTransactions(ctx, q)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to find similar transactions: %w", err)
	}

	for i := range similar {
		if similar[i].MessageID == c.MessageID {
			continue
		}
		match := similar[i]
		return Outcome{Duplicate: true, Match: &match}, nil
	}
	return Outcome{}, nil
}

// Group buckets transactions by exact DedupKey.
func Group(txns []model.Transaction, loc *time.Location) map[model.DedupKey][]model.Transaction {
	groups := make(map[model.DedupKey][]model.Transaction)
	for _, t := range txns {
		key := t.DedupKey(loc)
		groups[key] = append(groups[key], t)
	}
	return groups
}

// Survivor picks the record to keep: highest confidence, then latest CreatedAt, then highest id.
func Survivor(group []model.Transaction) model.Transaction {
	best := group[0]
	for _, t := range group[1:] {
		if better(t, best) {
			best = t
		}
	}
	return best
}

func better(a, b model.Transaction) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Cleanup deletes all but one member of every exact-key group and returns how many were removed.
// A failed delete is logged and skipped.
func (e *Engine) Cleanup(ctx context.Context) (int, error) {
	txns, err := e.store.GetAllTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions: %w", err)
	}

	groups := Group(txns, e.cfg.Location)

	keys := make([]model.DedupKey, 0, len(groups))
	for k, g := range groups {
		if len(g) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		group := groups[key]
		keep := Survivor(group)
		for _, t := range group {
			if t.ID == keep.ID {
				continue
			}
			if err := e.store.DeleteTransaction(ctx, t.ID); err != nil {
				common.LogWarn("failed to delete duplicate transaction", common.Fields{
					"id":    t.ID,
					"key":   key.String(),
					"error": err.Error(),
				})
				continue
			}
			removed++
			common.LogDebug("removed duplicate transaction", common.Fields{
				"id":      t.ID,
				"kept_id": keep.ID,
				"key":     key.String(),
			})
		}
	}

	if removed > 0 {
		common.LogInfo("duplicate cleanup finished", common.Fields{"removed": removed, "groups": len(keys)})
	}
	return removed, nil
}
