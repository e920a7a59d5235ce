package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownMerchant is the sentinel returned when no merchant could be extracted.
const UnknownMerchant = "Unknown Merchant"

// Candidate is a parsed transaction that has not been committed yet.
type Candidate struct {
	Timestamp          time.Time
	Amount             decimal.Decimal
	MerchantRaw        string
	MerchantNormalized string
	BankName           string
	MessageID          string
	RawBody            string
	Confidence         float64
	IsDebit            bool
	DirectionUncertain bool
}

// Merchant returns the normalized merchant name.
func (c Candidate) Merchant() string {
	return c.MerchantNormalized
}

// RawMerchant returns the merchant text as it appeared in the message.
func (c Candidate) RawMerchant() string {
	return c.MerchantRaw
}

// ToTransaction converts the candidate into a storable transaction.
func (c Candidate) ToTransaction(categoryID int64) Transaction {
	return Transaction{
		MessageID:          c.MessageID,
		Amount:             c.Amount,
		MerchantRaw:        c.MerchantRaw,
		MerchantNormalized: c.MerchantNormalized,
		BankName:           c.BankName,
		TransactionDate:    c.Timestamp,
		RawBody:            c.RawBody,
		Confidence:         c.Confidence,
		IsDebit:            c.IsDebit,
		CategoryID:         categoryID,
	}
}
