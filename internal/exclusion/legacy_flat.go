package exclusion

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-sms/internal/service"
)

// FlatKeyPrefix marks a legacy preference key that carries one merchant's exclusion flag.
const FlatKeyPrefix = "exclude_merchant_"

// LegacyFlatSource reads "exclude_merchant_<NAME>" = truthy preference entries.
type LegacyFlatSource struct {
	store service.PreferenceStore
}

// NewLegacyFlatSource wraps a preference store.
func NewLegacyFlatSource(store service.PreferenceStore) *LegacyFlatSource {
	return &LegacyFlatSource{store: store}
}

// Name implements Source.
func (l *LegacyFlatSource) Name() string {
	return "legacy_flat"
}

// ExcludedMerchants implements Source.
func (l *LegacyFlatSource) ExcludedMerchants(ctx context.Context) ([]string, error) {
	prefs, err := l.store.GetPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	return ParseFlat(prefs), nil
}

// ParseFlat extracts excluded merchants from a flat preference map.
func ParseFlat(prefs map[string]string) []string {
	var names []string
	for key, value := range prefs {
		if !strings.HasPrefix(key, FlatKeyPrefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(key, FlatKeyPrefix))
		if name == "" || !truthy(value) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func truthy(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "yes", "y", "on":
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
