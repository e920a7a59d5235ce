// Package exclusion decides which merchants are hidden from aggregate views.
//
// Several independent sources can mark a merchant excluded. They are combined
// with a logical OR: exclusion in any source excludes the merchant, and there
// is no way to force-include from another source.
package exclusion

import (
	"context"
	"sort"
	"strings"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/merchant"
)

// Source reports the merchants it considers excluded.
type Source interface {
	Name() string
	ExcludedMerchants(ctx context.Context) ([]string, error)
}

// Policy decides what a failed source read contributes.
type Policy int

const (
	// FailOpen treats a failed read as "no exclusions" so nothing is hidden by accident.
	FailOpen Policy = iota
)

// SourceResult is the outcome of reading one source.
type SourceResult struct {
	Err       error
	Name      string
	Merchants []string
}

// OK reports whether the read succeeded.
func (r SourceResult) OK() bool {
	return r.Err == nil
}

// OrSource reads every source and unions their exclusions.
type OrSource struct {
	sources []Source
	policy  Policy
}

// NewOrSource combines sources under policy.
func NewOrSource(policy Policy, sources ...Source) *OrSource {
	return &OrSource{sources: sources, policy: policy}
}

// Read returns one result per source, in order. Failed reads contribute no merchants.
func (o *OrSource) Read(ctx context.Context) []SourceResult {
	results := make([]SourceResult, 0, len(o.sources))
	for _, src := range o.sources {
		names, err := src.ExcludedMerchants(ctx)
		result := SourceResult{Name: src.Name()}
		if err != nil {
			result.Err = err
			o.onError(src, err)
		} else {
			result.Merchants = sortedUnique(names)
		}
		results = append(results, result)
	}
	return results
}

// Set resolves the union of all sources.
func (o *OrSource) Set(ctx context.Context) Set {
	set := NewSet()
	for _, r := range o.Read(ctx) {
		for _, name := range r.Merchants {
			set.Add(name)
		}
	}
	return set
}

func (o *OrSource) onError(src Source, err error) {
	switch o.policy {
	case FailOpen:
		common.LogWarn("exclusion source unreadable, contributing no exclusions", common.Fields{
			"source": src.Name(),
			"error":  err.Error(),
		})
	}
}

// Set is a resolved collection of excluded merchant keys.
type Set struct {
	keys map[string]struct{}
}

// NewSet returns an empty set.
func NewSet(names ...string) Set {
	s := Set{keys: make(map[string]struct{})}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add records name under both its trimmed uppercase and normalized forms.
func (s Set) Add(name string) {
	for _, k := range matchKeys(name) {
		s.keys[k] = struct{}{}
	}
}

// Contains reports whether any of the given merchant strings is excluded.
func (s Set) Contains(names ...string) bool {
	for _, n := range names {
		for _, k := range matchKeys(n) {
			if _, ok := s.keys[k]; ok {
				return true
			}
		}
	}
	return false
}

// Len returns the number of distinct keys.
func (s Set) Len() int {
	return len(s.keys)
}

func matchKeys(name string) []string {
	upper := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	if upper == "" {
		return nil
	}
	normalized := merchant.Normalize(name)
	if normalized == "" || normalized == upper {
		return []string{upper}
	}
	return []string{upper, normalized}
}

func sortedUnique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
