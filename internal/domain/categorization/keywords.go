// Package categorization assigns categories to transactions using keyword
// rules, learning from past records and user-correction memory.
package categorization

// Source says where a suggestion came from.
type Source string

const (
	SourceKeywordMatch        Source = "keyword_match"
	SourceLearnedExact        Source = "learned_exact"
	SourceLearnedMerchant     Source = "learned_merchant"
	SourceLearnedBaseMerchant Source = "learned_base_merchant"
	SourceLearnedSimilar      Source = "learned_similar"
	SourceUserCorrection      Source = "user_correction"
	SourceDefault             Source = "default"
)

// DefaultCategoryKey is the catch-all category for unconfident suggestions.
const DefaultCategoryKey = "other"

// Suggestion is the category resolution for one transaction.
type Suggestion struct {
	CategoryKey string
	Confidence  float64
	Source      Source
}

// builtinKeywords are curated per-category merchant and keyword tokens,
// lowercase. Custom keywords merge on top at engine construction.
var builtinKeywords = map[string][]string{
	"food": {
		"restaurant", "cafe", "coffee", "starbucks", "mcdonalds", "burger",
		"pizza", "sushi", "bakery", "deli", "diner", "bar and grill",
		"doordash", "uber eats", "grubhub", "deliveroo", "just eat",
	},
	"groceries": {
		"grocery", "supermarket", "supermercado", "whole foods", "trader joes",
		"walmart", "costco", "aldi", "lidl", "kroger", "safeway", "tesco",
		"carrefour", "mercadona", "market",
	},
	"transport": {
		"uber", "lyft", "taxi", "cabify", "metro", "subway station", "transit",
		"bus", "train", "rail", "shell", "chevron", "exxon", "gasolinera",
		"fuel", "gas station", "parking", "toll",
	},
	"home": {
		"rent", "mortgage", "electric", "electricity", "water", "utility",
		"internet", "comcast", "verizon", "ikea", "home depot", "lowes",
		"furniture", "cleaning", "insurance",
	},
	"fun": {
		"netflix", "spotify", "hulu", "disney", "cinema", "movie", "theater",
		"concert", "ticketmaster", "steam", "playstation", "xbox", "nintendo",
		"gym", "fitness",
	},
	"other": {
		"pharmacy", "farmacia", "amazon", "paypal", "transfer", "atm", "fee",
	},
}
