package sms

import "regexp"

// Scores are kept in hundredths so the sum is exact.
const (
	baseScore              = 50
	strictCurrencyBonus    = 20
	explicitDirectionBonus = 20
	balanceBonus           = 10
	maxScore               = 100
)

var strictCurrency = regexp.MustCompile(`(?i)(?:\b(?:rs\.?|inr)|₹)\s*\d[\d,]*(?:\.\d{1,2})?`)

// Score estimates how likely the parse of body is correct, in [0.5, 1.0].
func Score(body string) float64 {
	score := baseScore
	if strictCurrency.MatchString(body) {
		score += strictCurrencyBonus
	}
	if explicitDirectionCues.Matches(body) {
		score += explicitDirectionBonus
	}
	if balanceCues.Matches(body) {
		score += balanceBonus
	}
	if score > maxScore {
		score = maxScore
	}
	return float64(score) / 100
}
