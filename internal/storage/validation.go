// Package storage provides the SQLite persistence layer for transactions, merchants and preferences.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-sms/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidMerchant    = errors.New("invalid merchant")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before insert.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.MessageID) == "" {
		return fmt.Errorf("%w: missing message ID", ErrInvalidTransaction)
	}
	if txn.TransactionDate.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.MerchantNormalized) == "" {
		return fmt.Errorf("%w: missing merchant", ErrInvalidTransaction)
	}
	if txn.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidTransaction, txn.Amount)
	}
	if txn.Confidence < 0 || txn.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

// validateMerchant validates a merchant record before insert.
func validateMerchant(merchant *model.Merchant) error {
	if merchant == nil {
		return fmt.Errorf("%w: merchant", ErrNilParameter)
	}
	if strings.TrimSpace(merchant.NormalizedName) == "" {
		return fmt.Errorf("%w: missing normalized name", ErrInvalidMerchant)
	}
	if merchant.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidMerchant)
	}
	return nil
}
