package sms

import (
	"regexp"
	"strings"
)

// KeywordSet matches whole words/phrases and raw fragments case-insensitively.
type KeywordSet struct {
	words     *regexp.Regexp
	fragments []string
}

// NewKeywordSet builds a set. Words must match on word boundaries; fragments match anywhere.
func NewKeywordSet(words []string, fragments ...string) *KeywordSet {
	ks := &KeywordSet{}
	if len(words) > 0 {
		quoted := make([]string, 0, len(words))
		for _, w := range words {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
		}
		ks.words = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
	}
	for _, f := range fragments {
		ks.fragments = append(ks.fragments, strings.ToLower(f))
	}
	return ks
}

// Matches reports whether text contains any keyword of the set.
func (ks *KeywordSet) Matches(text string) bool {
	if ks.words != nil && ks.words.MatchString(text) {
		return true
	}
	if len(ks.fragments) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, f := range ks.fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Keyword tables. Order inside a table is irrelevant; membership is all that matters.
var (
	// referenceCues anchor a message to a concrete transaction or instrument.
	referenceCues = NewKeywordSet([]string{
		"ref", "ref no", "refno", "txn", "txnid", "txn id", "reference", "utr", "rrn", "transaction",
		"a/c", "ac", "acct", "account", "card",
	})

	debitKeywords = NewKeywordSet([]string{
		"debited", "debit", "spent", "withdrawn", "withdrawal", "paid", "sent", "purchase", "purchased",
		"deducted", "transferred", "charged",
	})

	creditKeywords = NewKeywordSet([]string{
		"credited", "received", "deposited", "refund", "refunded", "cashback", "salary", "reversed",
		"reversal", "money received", "amount added", "added to your",
	})

	// channelKeywords count as transaction language for validation only.
	channelKeywords = NewKeywordSet([]string{"upi", "imps", "neft", "rtgs", "atm", "pos"})

	promotionalCues = NewKeywordSet([]string{
		"offer", "offers", "apply", "apply now", "pre-approved", "preapproved", "click", "t&c", "t & c",
		"limited period", "congratulations", "voucher", "upgrade now", "discount",
		"get", "up to", "upto", "cashback of", "shop now", "this weekend", "hurry", "earn", "win",
	}, "http", "www.")

	otpCues = NewKeywordSet([]string{
		"otp", "one time password", "verification", "verification code", "do not share", "don't share",
		"valid for",
	})

	emiReminderCues = NewKeywordSet([]string{
		"emi reminder", "will be deducted", "e-mandate", "emandate", "emi due",
	})

	// explicitDirectionCues award the confidence bonus for an unambiguous posting verb.
	explicitDirectionCues = NewKeywordSet([]string{"debited", "credited"})

	balanceCues = NewKeywordSet([]string{"balance", "bal", "avl bal", "avbl bal"})
)

// knownSenders are substrings of registered bank/payment-provider sender codes.
var knownSenders = []string{
	"HDFC", "ICICI", "SBI", "AXIS", "KOTAK", "KKBK", "PNB", "BOB", "BARODA", "CANBNK", "CANARA",
	"UNION", "UBOI", "IDFC", "YESBNK", "YESBANK", "INDUS", "IDBI", "FEDBNK", "FEDERAL", "RBL",
	"SCBANK", "CITI", "HSBC", "AUBANK", "BANDHN", "BANDHAN", "PAYTM", "PHONPE", "PHONEPE", "GPAY",
	"AMZPAY", "MOBIKW", "FRCHRG", "CRED", "AIRBNK", "JIOPAY",
}

// bankCodes maps exact sender codes to display names.
var bankCodes = map[string]string{
	"HDFCBK": "HDFC Bank",
	"HDFCBN": "HDFC Bank",
	"ICICIB": "ICICI Bank",
	"ICICIT": "ICICI Bank",
	"SBIINB": "State Bank of India",
	"SBIPSG": "State Bank of India",
	"SBMSMS": "State Bank of India",
	"ATMSBI": "State Bank of India",
	"CBSSBI": "State Bank of India",
	"AXISBK": "Axis Bank",
	"KOTAKB": "Kotak Mahindra Bank",
	"KKBKNK": "Kotak Mahindra Bank",
	"PNBSMS": "Punjab National Bank",
	"BOBTXN": "Bank of Baroda",
	"CANBNK": "Canara Bank",
	"UNIONB": "Union Bank of India",
	"IDFCFB": "IDFC FIRST Bank",
	"YESBNK": "Yes Bank",
	"INDUSB": "IndusInd Bank",
	"IDBIBK": "IDBI Bank",
	"FEDBNK": "Federal Bank",
	"RBLBNK": "RBL Bank",
	"SCBANK": "Standard Chartered",
	"CITIBK": "Citibank",
	"HSBCIN": "HSBC",
	"AUBANK": "AU Small Finance Bank",
	"PAYTMB": "Paytm Payments Bank",
	"PHONPE": "PhonePe",
	"GPAYIN": "Google Pay",
	"AMZPAY": "Amazon Pay",
}

// bankFragment maps a sender substring to a display name; checked in order.
type bankFragment struct {
	Fragment string
	Name     string
}

var bankFragments = []bankFragment{
	{Fragment: "HDFC", Name: "HDFC Bank"},
	{Fragment: "ICICI", Name: "ICICI Bank"},
	{Fragment: "SBI", Name: "State Bank of India"},
	{Fragment: "AXIS", Name: "Axis Bank"},
	{Fragment: "KOTAK", Name: "Kotak Mahindra Bank"},
	{Fragment: "KKBK", Name: "Kotak Mahindra Bank"},
	{Fragment: "PNB", Name: "Punjab National Bank"},
	{Fragment: "BARODA", Name: "Bank of Baroda"},
	{Fragment: "BOB", Name: "Bank of Baroda"},
	{Fragment: "CANARA", Name: "Canara Bank"},
	{Fragment: "UNION", Name: "Union Bank of India"},
	{Fragment: "IDFC", Name: "IDFC FIRST Bank"},
	{Fragment: "YES", Name: "Yes Bank"},
	{Fragment: "INDUS", Name: "IndusInd Bank"},
	{Fragment: "IDBI", Name: "IDBI Bank"},
	{Fragment: "FEDERAL", Name: "Federal Bank"},
	{Fragment: "CITI", Name: "Citibank"},
	{Fragment: "HSBC", Name: "HSBC"},
	{Fragment: "PAYTM", Name: "Paytm"},
	{Fragment: "PHONEPE", Name: "PhonePe"},
	{Fragment: "GPAY", Name: "Google Pay"},
}

// knownMerchants is the dictionary fallback for merchant extraction, matched as substrings.
var knownMerchants = []string{
	"SWIGGY", "ZOMATO", "UBER", "OLA", "RAPIDO", "AMAZON", "FLIPKART", "MYNTRA", "AJIO", "NYKAA",
	"NETFLIX", "SPOTIFY", "HOTSTAR", "BOOKMYSHOW", "BIGBASKET", "BLINKIT", "ZEPTO", "DMART",
	"JIOMART", "APOLLO", "PHARMEASY", "NETMEDS", "IRCTC", "MAKEMYTRIP", "REDBUS", "AIRTEL", "JIO",
	"DOMINOS", "STARBUCKS",
}

// capitalizedStopWords never start or form a merchant in the capitalized-run fallback.
var capitalizedStopWords = map[string]bool{
	"DEAR": true, "YOUR": true, "YOU": true, "RS": true, "INR": true, "ALERT": true, "TXN": true,
	"REF": true, "AVL": true, "AVBL": true, "BAL": true, "BALANCE": true, "UPI": true, "CARD": true,
	"INFO": true, "CUSTOMER": true, "SIR": true, "MADAM": true, "THANK": true, "THANKS": true,
	"HI": true, "HELLO": true, "ACCT": true, "ACCOUNT": true, "CREDITED": true, "DEBITED": true,
	"ON": true, "FOR": true, "FROM": true, "TO": true, "AT": true, "THE": true, "IS": true,
	"HAS": true, "BEEN": true, "NOT": true, "CALL": true, "SMS": true, "CREDIT": true, "DEBIT": true,
	"BANK": true, "DATE": true, "AMOUNT": true, "AMT": true, "TOTAL": true, "NO": true,
	"JAN": true, "FEB": true, "MAR": true, "APR": true, "MAY": true, "JUN": true, "JUL": true,
	"AUG": true, "SEP": true, "OCT": true, "NOV": true, "DEC": true,
}

// merchantStopWords reject a rule capture whose first word is generic.
var merchantStopWords = map[string]bool{
	"your": true, "you": true, "a/c": true, "ac": true, "acct": true, "account": true, "card": true,
	"the": true, "rs": true, "rs.": true, "inr": true, "bank": true, "a": true, "an": true,
	"beneficiary": true, "mobile": true, "linked": true, "self": true,
}

// merchantTerminators end a merchant capture.
var merchantTerminators = map[string]bool{
	"on": true, "for": true, "via": true, "ref": true, "ref.": true, "refno": true, "upi": true,
	"using": true, "dated": true, "at": true, "avl": true, "avbl": true, "bal": true, "txn": true,
	"from": true, "with": true, "by": true, "is": true, "has": true, "was": true, "and": true,
	"info": true, "card": true, "a/c": true, "rrn": true, "utr": true, "of": true, "to": true,
}
