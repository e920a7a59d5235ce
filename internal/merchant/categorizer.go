package merchant

import (
	"strings"

	"github.com/Veraticus/spice-sms/internal/model"
)

// CategoryRule maps any of its keywords onto a category name.
type CategoryRule struct {
	Category string
	Keywords []string
}

// DefaultCategoryRules is checked top to bottom. Food precedes Transportation so
// "UBER EATS" lands in Food before "UBER" can match.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Category: model.CategoryFood, Keywords: []string{
			"SWIGGY", "ZOMATO", "UBER EATS", "DOMINOS", "PIZZA", "MCDONALD", "KFC", "STARBUCKS",
			"BURGER", "CAFE", "RESTAURANT", "EATSURE", "FAASOS", "BARBEQUE",
		}},
		{Category: model.CategoryTransport, Keywords: []string{
			"UBER", "OLA", "RAPIDO", "IRCTC", "METRO", "PETROL", "FUEL", "INDIAN OIL", "HPCL", "BPCL",
			"FASTAG", "REDBUS", "YULU", "BLUSMART",
		}},
		{Category: model.CategoryGroceries, Keywords: []string{
			"BIGBASKET", "BLINKIT", "ZEPTO", "GROFERS", "DMART", "JIOMART", "SUPERMARKET", "GROCERY",
			"MORE RETAIL", "SPENCER", "NATURES BASKET", "INSTAMART",
		}},
		{Category: model.CategoryHealthcare, Keywords: []string{
			"HOSPITAL", "PHARMACY", "APOLLO", "MEDPLUS", "PHARMEASY", "NETMEDS", "1MG", "CLINIC",
			"DIAGNOSTIC", "MEDICAL",
		}},
		{Category: model.CategoryEntertainment, Keywords: []string{
			"NETFLIX", "SPOTIFY", "HOTSTAR", "PRIME VIDEO", "BOOKMYSHOW", "PVR", "INOX", "YOUTUBE",
			"ZEE5", "SONYLIV",
		}},
		{Category: model.CategoryShopping, Keywords: []string{
			"AMAZON", "FLIPKART", "MYNTRA", "AJIO", "MEESHO", "NYKAA", "TATA CLIQ", "SNAPDEAL",
			"CROMA", "DECATHLON",
		}},
		{Category: model.CategoryUtilities, Keywords: []string{
			"AIRTEL", "JIO", "VODAFONE", "BSNL", "BESCOM", "ELECTRICITY", "TATA POWER", "BROADBAND",
			"ACT FIBERNET", "RECHARGE", "BILLDESK",
		}},
	}
}

// Categorizer assigns a category name by first keyword match.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer uppercases rule keywords once so matching is a plain substring test.
func NewCategorizer(rules []CategoryRule) *Categorizer {
	normalized := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			keywords = append(keywords, strings.ToUpper(k))
		}
		normalized = append(normalized, CategoryRule{Category: r.Category, Keywords: keywords})
	}
	return &Categorizer{rules: normalized}
}

// Categorize returns the category for a merchant, or model.CategoryOther.
func (c *Categorizer) Categorize(merchant string) string {
	key := Normalize(merchant)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(key, k) {
				return r.Category
			}
		}
	}
	return model.CategoryOther
}
