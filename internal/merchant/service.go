package merchant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-sms/internal/common"
	"github.com/Veraticus/spice-sms/internal/model"
	"github.com/Veraticus/spice-sms/internal/service"
)

// Scope selects how far a category change reaches.
type Scope int

const (
	// ScopeMappingOnly updates the merchant record; only future transactions see the new category.
	ScopeMappingOnly Scope = iota
	// ScopeRetroactive also rewrites every stored transaction of the merchant.
	ScopeRetroactive
)

// String returns a human-readable scope name.
func (s Scope) String() string {
	switch s {
	case ScopeMappingOnly:
		return "mapping-only"
	case ScopeRetroactive:
		return "retroactive"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ChangeResult reports what a category change touched.
type ChangeResult struct {
	Merchant             *model.Merchant
	Category             *model.Category
	TransactionsModified int64
}

// Service owns merchant records: lookup-or-create and category reassignment.
type Service struct {
	merchants    service.MerchantStore
	categories   service.CategoryStore
	transactions service.TransactionStore
	categorizer  *Categorizer
	now          func() time.Time
}

// NewService wires the stores. A nil categorizer uses DefaultCategoryRules.
func NewService(merchants service.MerchantStore, categories service.CategoryStore, transactions service.TransactionStore, categorizer *Categorizer) *Service {
	if categorizer == nil {
		categorizer = NewCategorizer(DefaultCategoryRules())
	}
	return &Service{
		merchants:    merchants,
		categories:   categories,
		transactions: transactions,
		categorizer:  categorizer,
		now:          time.Now,
	}
}

// Categorizer exposes the keyword categorizer in use.
func (s *Service) Categorizer() *Categorizer {
	return s.categorizer
}

// Ensure returns the merchant record for raw, creating it with the categorizer's category.
func (s *Service) Ensure(ctx context.Context, raw string) (*model.Merchant, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil, fmt.Errorf("merchant name is empty after normalization: %q", raw)
	}

	existing, err := s.merchants.GetMerchant(ctx, normalized)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up merchant %s: %w", normalized, err)
	}

	categoryName := s.categorizer.Categorize(normalized)
	category, err := s.resolveCategory(ctx, categoryName)
	if err != nil {
		return nil, err
	}

	record := &model.Merchant{
		NormalizedName: normalized,
		DisplayName:    DisplayName(raw),
		CategoryID:     category.ID,
		CreatedAt:      s.now(),
	}
	if err := s.merchants.InsertMerchant(ctx, record); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return s.merchants.GetMerchant(ctx, normalized)
		}
		return nil, fmt.Errorf("failed to insert merchant %s: %w", normalized, err)
	}

	common.LogDebug("created merchant", common.Fields{
		"merchant": normalized,
		"category": category.Name,
	})
	return record, nil
}

// ChangeCategory reassigns a merchant and marks it user-defined.
func (s *Service) ChangeCategory(ctx context.Context, merchantName, categoryName string, scope Scope) (*ChangeResult, error) {
	normalized := Normalize(merchantName)
	record, err := s.merchants.GetMerchant(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant %s: %w", normalized, err)
	}

	category, err := s.categories.GetCategoryByName(ctx, categoryName)
	if err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", categoryName, err)
	}

	if err := s.merchants.UpdateMerchantCategory(ctx, normalized, category.ID, true); err != nil {
		return nil, fmt.Errorf("failed to update merchant category: %w", err)
	}
	record.CategoryID = category.ID
	record.UserDefined = true

	result := &ChangeResult{Merchant: record, Category: category}
	if scope == ScopeRetroactive {
		n, err := s.transactions.UpdateTransactionCategoryForMerchant(ctx, normalized, category.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to recategorize transactions for %s: %w", normalized, err)
		}
		result.TransactionsModified = n
	}

	common.LogInfo("merchant category changed", common.Fields{
		"merchant":     normalized,
		"category":     category.Name,
		"scope":        scope.String(),
		"transactions": result.TransactionsModified,
	})
	return result, nil
}

// resolveCategory looks up name and falls back to Other on any miss.
func (s *Service) resolveCategory(ctx context.Context, name string) (*model.Category, error) {
	category, err := s.categories.GetCategoryByName(ctx, name)
	if err == nil {
		return category, nil
	}
	if name != model.CategoryOther {
		common.LogDebug("category lookup missed, using Other", common.Fields{"category": name, "error": err.Error()})
	}
	other, otherErr := s.categories.GetCategoryByName(ctx, model.CategoryOther)
	if otherErr != nil {
		return nil, fmt.Errorf("failed to resolve fallback category: %w", otherErr)
	}
	return other, nil
}
