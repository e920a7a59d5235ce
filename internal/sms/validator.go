// Package sms turns raw bank and payment notifications into transaction candidates.
package sms

import (
	"strings"

	"github.com/Veraticus/spice-sms/internal/model"
)

// Rejection reasons. Each rejected message carries exactly one.
const (
	ReasonUnknownSender    = "unknown sender"
	ReasonMissingReference = "missing transaction reference"
	ReasonNoKeywords       = "no transaction keywords"
	ReasonPromotional      = "promotional message"
	ReasonOTP              = "otp or verification message"
	ReasonEMIReminder      = "emi reminder"
	ReasonNoAmount         = "no valid amount"
	ReasonParseFailed      = "failed transaction parsing"
)

// Verdict is the outcome of validating one message.
type Verdict struct {
	Reason   string
	Accepted bool
}

type check struct {
	pass   func(model.RawMessage) bool
	reason string
}

// Validator decides whether a message describes a completed money movement.
type Validator struct {
	extractor *Extractor
	checks    []check
}

// NewValidator builds a validator. The extractor supplies the amount cascade for the final check.
func NewValidator(extractor *Extractor) *Validator {
	if extractor == nil {
		extractor = NewDefaultExtractor()
	}
	v := &Validator{extractor: extractor}
	v.checks = []check{
		{reason: ReasonUnknownSender, pass: func(m model.RawMessage) bool { return IsKnownSender(m.Sender) }},
		{reason: ReasonMissingReference, pass: func(m model.RawMessage) bool { return referenceCues.Matches(m.Body) }},
		{reason: ReasonNoKeywords, pass: func(m model.RawMessage) bool { return hasTransactionKeyword(m.Body) }},
		{reason: ReasonPromotional, pass: func(m model.RawMessage) bool { return !promotionalCues.Matches(m.Body) }},
		{reason: ReasonOTP, pass: func(m model.RawMessage) bool { return !otpCues.Matches(m.Body) }},
		{reason: ReasonEMIReminder, pass: func(m model.RawMessage) bool { return !emiReminderCues.Matches(m.Body) }},
		{reason: ReasonNoAmount, pass: func(m model.RawMessage) bool {
			_, ok := v.extractor.ExtractAmount(m.Body)
			return ok
		}},
	}
	return v
}

// Validate runs every check in order and stops at the first failure.
func (v *Validator) Validate(msg model.RawMessage) Verdict {
	for _, c := range v.checks {
		if !c.pass(msg) {
			return Verdict{Reason: c.reason}
		}
	}
	return Verdict{Accepted: true}
}

// IsTransaction reports whether msg passes every check.
func (v *Validator) IsTransaction(msg model.RawMessage) bool {
	return v.Validate(msg).Accepted
}

// IsKnownSender reports whether sender looks like a bank or payment provider.
func IsKnownSender(sender string) bool {
	upper := strings.ToUpper(sender)
	if upper == "" {
		return false
	}
	for _, s := range knownSenders {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}

func hasTransactionKeyword(body string) bool {
	return debitKeywords.Matches(body) || creditKeywords.Matches(body) || channelKeywords.Matches(body)
}
