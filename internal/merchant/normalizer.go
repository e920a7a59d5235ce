// Package merchant canonicalizes merchant strings and maps them onto categories.
package merchant

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cutset ends the meaningful part of a merchant string: "SWIGGY*ORDER", "PAYTM@UPI", "AMZN-MKTP".
const cutset = "*#@-_"

// Normalize returns the join key used for categorization, exclusion and dedup.
// Casers hold state, so one is built per call.
func Normalize(raw string) string {
	upper := cases.Upper(language.Und).String(raw)
	if i := strings.IndexAny(upper, cutset); i >= 0 {
		upper = upper[:i]
	}
	return strings.Join(strings.Fields(upper), " ")
}

// DisplayName renders a normalized name in title case for the merchant table.
func DisplayName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(name))
}
