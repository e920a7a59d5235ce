package sms

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-sms/internal/model"
)

// minAmount is the smallest figure accepted as a transaction amount.
var minAmount = decimal.NewFromInt(1)

// maxMerchantWords bounds how much of a capture is kept as the merchant name.
const maxMerchantWords = 6

var capitalizedRun = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&']*(?:\s+[A-Z][A-Za-z0-9&']*)*`)

// Extractor pulls amount, merchant and bank out of a validated message.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	amountRules   []compiledRule
	merchantRules []compiledRule
}

// NewExtractor compiles the given cascades.
func NewExtractor(amountRules, merchantRules []Rule) (*Extractor, error) {
	amounts, err := compileRules(amountRules)
	if err != nil {
		return nil, err
	}
	merchants, err := compileRules(merchantRules)
	if err != nil {
		return nil, err
	}
	return &Extractor{amountRules: amounts, merchantRules: merchants}, nil
}

// NewDefaultExtractor builds an extractor from the built-in cascades.
func NewDefaultExtractor() *Extractor {
	e, err := NewExtractor(DefaultAmountRules(), DefaultMerchantRules())
	if err != nil {
		panic(err)
	}
	return e
}

// ExtractAmount returns the first value of at least 1 found by the cascade, rounded to 2 dp.
func (e *Extractor) ExtractAmount(body string) (decimal.Decimal, bool) {
	value, _, ok := e.matchAmount(body)
	return value, ok
}

// AmountRule reports which rule produced the amount, or "" if none did.
func (e *Extractor) AmountRule(body string) string {
	_, name, _ := e.matchAmount(body)
	return name
}

func (e *Extractor) matchAmount(body string) (decimal.Decimal, string, bool) {
	for _, r := range e.amountRules {
		for _, m := range r.re.FindAllStringSubmatch(body, -1) {
			value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
			if err != nil {
				continue
			}
			if value.GreaterThanOrEqual(minAmount) {
				return value.Round(2), r.Name, true
			}
		}
	}
	return decimal.Zero, "", false
}

// ExtractMerchant returns the raw merchant text, or model.UnknownMerchant.
func (e *Extractor) ExtractMerchant(body string) string {
	for _, r := range e.merchantRules {
		for _, m := range r.re.FindAllStringSubmatch(body, -1) {
			if name := cleanMerchant(m[1]); name != "" {
				return name
			}
		}
	}

	upper := strings.ToUpper(body)
	for _, known := range knownMerchants {
		if strings.Contains(upper, known) {
			return known
		}
	}

	for _, run := range capitalizedRun.FindAllString(body, -1) {
		if name := trimStopTokens(run); name != "" {
			return name
		}
	}

	return model.UnknownMerchant
}

// ExtractBank maps a sender id onto a bank display name.
func ExtractBank(sender string) string {
	code := senderCode(sender)
	if name, ok := bankCodes[code]; ok {
		return name
	}
	for _, f := range bankFragments {
		if strings.Contains(code, f.Fragment) {
			return f.Name
		}
	}
	return sender
}

// senderCode uppercases a sender and strips operator prefixes ("VM-HDFCBK") and suffixes ("HDFCBK-S").
func senderCode(sender string) string {
	code := strings.ToUpper(strings.TrimSpace(sender))
	parts := strings.Split(code, "-")
	if len(parts) < 2 {
		return code
	}
	best := parts[0]
	for _, p := range parts[1:] {
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

// cleanMerchant cuts a capture at the first terminator word and rejects generic captures.
func cleanMerchant(capture string) string {
	words := strings.Fields(capture)
	if len(words) == 0 {
		return ""
	}
	if merchantStopWords[strings.ToLower(words[0])] {
		return ""
	}

	kept := make([]string, 0, maxMerchantWords)
	for _, w := range words {
		if merchantTerminators[strings.ToLower(w)] || len(kept) == maxMerchantWords {
			break
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return ""
	}

	name := strings.Join(kept, " ")
	if !containsLetter(name) {
		return ""
	}
	return name
}

func trimStopTokens(run string) string {
	words := strings.Fields(run)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if capitalizedStopWords[strings.ToUpper(w)] || len(w) < 2 || isMaskedNumber(w) {
			if len(kept) > 0 {
				break
			}
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxMerchantWords {
			break
		}
	}
	return strings.Join(kept, " ")
}

// isMaskedNumber matches masked account and card numbers such as "XX9876".
func isMaskedNumber(w string) bool {
	digits := strings.TrimLeft(w, "Xx*")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
