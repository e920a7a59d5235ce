package sms

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one entry in an ordered extraction cascade. The first capture group holds the value.
type Rule struct {
	Name          string
	Regex         string
	CaseSensitive bool
}

// compiledRule holds a compiled regex with its rule metadata.
type compiledRule struct {
	re *regexp.Regexp
	Rule
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		expr := r.Regex
		if !r.CaseSensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", r.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("rule %s has no capture group", r.Name)
		}
		compiled = append(compiled, compiledRule{Rule: r, re: re})
	}
	return compiled, nil
}

// number matches an Indian- or western-grouped figure with an optional 1-2 digit fraction.
const number = `(\d[\d,]*(?:\.\d{1,2})?)`

// DefaultAmountRules returns the amount cascade in priority order.
func DefaultAmountRules() []Rule {
	return []Rule{
		{Name: "currency-prefixed", Regex: `\b(?:rs\.?|inr)\s*` + number},
		{Name: "currency-suffixed", Regex: number + `\s*(?:rupees|inr|rs)\b`},
		{Name: "slash-suffixed", Regex: number + `\s*/-`},
		{Name: "symbol-prefixed", Regex: `[₹$€£]\s*` + number},
		{Name: "amount-labeled", Regex: `\b(?:amount|amt)\s*(?:of\s*)?[:\-]?\s*(?:rs\.?|inr|₹)?\s*` + number},
		{Name: "action-adjacent", Regex: `\b(?:debited|credited|spent|paid|received|withdrawn|sent|deposited|transferred)\s+(?:by\s+|for\s+|of\s+|with\s+)?(?:rs\.?|inr|₹)?\s*` + number},
		{Name: "generic-near-qualifier", Regex: `(\d[\d,]*\.\d{2})\s+(?:has\s+been\s+|is\s+|was\s+)?(?:debited|credited|spent|paid|withdrawn|received)\b`},
	}
}

// merchantText captures a run that starts with a letter and stops at sentence punctuation.
const merchantText = `([A-Za-z][^.,;:\n]*)`

// DefaultMerchantRules returns the merchant cascade in priority order.
func DefaultMerchantRules() []Rule {
	return []Rule{
		{Name: "at", Regex: `\bat\s+` + merchantText},
		{Name: "to", Regex: `\bto\s+` + merchantText},
		{Name: "for", Regex: `\bfor\s+` + merchantText},
		// purchase-at and spent-at are shadowed by at; kept so the cascade stays complete.
		{Name: "purchase-at", Regex: `\bpurchase\s+at\s+` + merchantText},
		{Name: "spent-at", Regex: `\bspent\s+(?:\S+\s+){0,3}at\s+` + merchantText},
		{Name: "upi-path", Regex: `\bUPI/(?:P2[AM]/)?(?:\d+/)?([A-Za-z][^/.,;:\n]*)`},
		{Name: "star-code", Regex: `\b([A-Za-z][A-Za-z0-9]+\*[A-Za-z0-9]{2,})`},
		{Name: "dash-code", Regex: `\b([A-Z][A-Z0-9]{2,}-[A-Z0-9]{2,})\b`, CaseSensitive: true},
	}
}
