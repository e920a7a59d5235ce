// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an accepted candidate that has been persisted.
type Transaction struct {
	TransactionDate    time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Amount             decimal.Decimal
	MessageID          string // External message id, unique per transaction
	MerchantRaw        string // Merchant text as extracted from the message
	MerchantNormalized string // Join key for merchants, exclusions and dedup
	BankName           string
	RawBody            string
	ID                 int64
	CategoryID         int64
	Confidence         float64
	IsDebit            bool
}

// Merchant returns the normalized merchant name.
func (t Transaction) Merchant() string {
	return t.MerchantNormalized
}

// RawMerchant returns the merchant text as it appeared in the message.
func (t Transaction) RawMerchant() string {
	return t.MerchantRaw
}

// DedupKey returns the exact-match grouping key for batch cleanup.
func (t Transaction) DedupKey(loc *time.Location) DedupKey {
	return NewDedupKey(t.MerchantNormalized, t.Amount, t.TransactionDate, t.BankName, loc)
}

// DedupKey is the composite used to group exact duplicates.
type DedupKey struct {
	Merchant string
	Amount   string
	Day      string
	Bank     string
}

// NewDedupKey builds a key with the amount at two decimal places and the date at day precision.
func NewDedupKey(merchant string, amount decimal.Decimal, date time.Time, bank string, loc *time.Location) DedupKey {
	if loc == nil {
		loc = time.Local
	}
	return DedupKey{
		Merchant: merchant,
		Amount:   amount.StringFixed(2),
		Day:      date.In(loc).Format("2006-01-02"),
		Bank:     bank,
	}
}

func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Merchant, k.Amount, k.Day, k.Bank)
}
