package exclusion

import (
	"context"
	"errors"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/merchant"
	"github.com/Veraticus/spice-sms/internal/service"
)

// Subject is anything tied to a merchant: transactions, candidates, report rows.
type Subject interface {
	Merchant() string
	RawMerchant() string
}

// Filter answers exclusion questions against the combined sources.
type Filter struct {
	sources *OrSource
	writer  service.MerchantStore
}

// NewFilter builds a filter over the primary merchant flag and both legacy preference shapes.
func NewFilter(merchants service.MerchantStore, prefs service.PreferenceStore) *Filter {
	return NewFilterWithSources(merchants,
		NewPrimarySource(merchants),
		NewLegacyFlatSource(prefs),
		NewLegacyBlobSource(prefs),
	)
}

// NewFilterWithSources builds a filter over arbitrary sources. writer receives UpdateExclusion calls.
func NewFilterWithSources(writer service.MerchantStore, sources ...Source) *Filter {
	return &Filter{
		sources: NewOrSource(FailOpen, sources...),
		writer:  writer,
	}
}

// Resolve reads every source once and returns the excluded set.
func (f *Filter) Resolve(ctx context.Context) Set {
	return f.sources.Set(ctx)
}

// IsExcluded reports whether merchant is excluded by any source.
func (f *Filter) IsExcluded(ctx context.Context, name string) bool {
	return f.Resolve(ctx).Contains(name)
}

// UpdateExclusion sets the primary flag. It returns false when no merchant record matched
// or the write failed.
func (f *Filter) UpdateExclusion(ctx context.Context, name string, excluded bool) bool {
	normalized := merchant.Normalize(name)
	if normalized == "" {
		return false
	}

	err := f.writer.UpdateMerchantExclusion(ctx, normalized, excluded)
	switch {
	case err == nil:
		common.LogInfo("merchant exclusion updated", common.Fields{"merchant": normalized, "excluded": excluded})
		return true
	case errors.Is(err, common.ErrNotFound):
		common.LogDebug("no merchant to update exclusion for", common.Fields{"merchant": normalized})
		return false
	default:
		common.LogError(err, "failed to update merchant exclusion", common.Fields{"merchant": normalized})
		return false
	}
}

// Dump returns the current state of every source for debugging.
func (f *Filter) Dump(ctx context.Context) []SourceResult {
	return f.sources.Read(ctx)
}

// Apply drops excluded items. The input slice is not modified.
func Apply[T Subject](ctx context.Context, f *Filter, items []T) []T {
	return Keep(f.Resolve(ctx), items)
}

// Separate splits items into all, included and excluded.
func Separate[T Subject](ctx context.Context, f *Filter, items []T) (all, included, excluded []T) {
	included, excluded = Split(f.Resolve(ctx), items)
	return items, included, excluded
}

// Keep returns the items whose merchant is not in set.
func Keep[T Subject](set Set, items []T) []T {
	included, _ := Split(set, items)
	return included
}

// Split partitions items by set membership, preserving order.
func Split[T Subject](set Set, items []T) (included, excluded []T) {
	included = make([]T, 0, len(items))
	for _, item := range items {
		if set.Contains(item.Merchant(), item.RawMerchant()) {
			excluded = append(excluded, item)
			continue
		}
		included = append(included, item)
	}
	return included, excluded
}
