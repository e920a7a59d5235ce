package exclusion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/service"
)

// BlobKey is the preference key of the older nested inclusion-state blob.
const BlobKey = "group_inclusion_states"

// LegacyBlobSource reads the nested JSON blob. Values are either a bare
// "included" bool or an object with "included" and/or "excluded".
type LegacyBlobSource struct {
	store service.PreferenceStore
}

// NewLegacyBlobSource wraps a preference store.
func NewLegacyBlobSource(store service.PreferenceStore) *LegacyBlobSource {
	return &LegacyBlobSource{store: store}
}

// Name implements Source.
func (l *LegacyBlobSource) Name() string {
	return "legacy_blob"
}

// ExcludedMerchants implements Source. A missing blob contributes nothing.
func (l *LegacyBlobSource) ExcludedMerchants(ctx context.Context) ([]string, error) {
	blob, err := l.store.GetPreference(ctx, BlobKey)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", BlobKey, err)
	}
	return ParseBlob(blob)
}

type inclusionState struct {
	Included *bool `json:"included"`
	Excluded *bool `json:"excluded"`
}

// ParseBlob extracts excluded merchants from the nested blob.
func ParseBlob(blob string) ([]string, error) {
	if strings.TrimSpace(blob) == "" {
		return nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", BlobKey, err)
	}

	var names []string
	for name, value := range raw {
		excluded, err := decodeState(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode state for %q: %w", name, err)
		}
		if excluded {
			names = append(names, name)
		}
	}
	return names, nil
}

func decodeState(value json.RawMessage) (bool, error) {
	if strings.TrimSpace(string(value)) == "null" {
		return false, nil
	}

	var included bool
	if err := json.Unmarshal(value, &included); err == nil {
		return !included, nil
	}

	var state inclusionState
	if err := json.Unmarshal(value, &state); err != nil {
		return false, err
	}
	if state.Excluded != nil && *state.Excluded {
		return true, nil
	}
	if state.Included != nil && !*state.Included {
		return true, nil
	}
	return false, nil
}
