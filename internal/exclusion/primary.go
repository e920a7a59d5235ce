package exclusion

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-sms/internal/service"
)

// PrimarySource reads the per-merchant flag from the merchant store.
type PrimarySource struct {
	store service.MerchantStore
}

// NewPrimarySource wraps a merchant store.
func NewPrimarySource(store service.MerchantStore) *PrimarySource {
	return &PrimarySource{store: store}
}

// Name implements Source.
func (p *PrimarySource) Name() string {
	return "merchant_flags"
}

// ExcludedMerchants implements Source.
func (p *PrimarySource) ExcludedMerchants(ctx context.Context) ([]string, error) {
	merchants, err := p.store.ListExcludedMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list excluded merchants: %w", err)
	}
	names := make([]string, 0, len(merchants))
	for _, m := range merchants {
		names = append(names, m.NormalizedName)
	}
	return names, nil
}
