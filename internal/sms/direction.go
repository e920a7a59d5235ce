package sms

// Direction is the money-flow direction of a message.
type Direction struct {
	IsDebit   bool
	Uncertain bool
}

// ClassifyDirection checks credit language first so a message with both kinds reads as a credit.
// With neither it defaults to debit and marks the result uncertain.
func ClassifyDirection(body string) Direction {
	if creditKeywords.Matches(body) {
		return Direction{IsDebit: false}
	}
	if debitKeywords.Matches(body) {
		return Direction{IsDebit: true}
	}
	return Direction{IsDebit: true, Uncertain: true}
}
