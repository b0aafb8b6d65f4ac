package normalizer

import (
	"regexp"
	"strings"

	"github.com/casaledger/casaledger/pkg/fuzzy"
)

var (
	storeNumberRe = regexp.MustCompile(`#?\d{3,}$`)
	refCodeRe     = regexp.MustCompile(`\b(?:ref|txn|auth|trace)[:# ]*\w+\b`)
	cardSuffixRe  = regexp.MustCompile(`\b(?:card|ending|x{2,})\s*\d{2,4}\b`)
)

// CleanDescription trims and collapses internal whitespace without changing
// case or punctuation. Used for the description stored on the expense.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeMerchant reduces a raw statement description to a canonical
// merchant identity: lowercase, punctuation stripped, store numbers and
// card/reference noise removed. "STARBUCKS #1234" and "Starbucks #5678"
// normalize to the same value.
func NormalizeMerchant(description string) string {
	s := strings.ToLower(description)
	s = refCodeRe.ReplaceAllString(s, " ")
	s = cardSuffixRe.ReplaceAllString(s, " ")
	s = fuzzy.Normalize(s)

	words := strings.Fields(s)
	for len(words) > 1 {
		last := words[len(words)-1]
		if storeNumberRe.MatchString(last) || isNumeric(last) {
			words = words[:len(words)-1]
			continue
		}
		break
	}
	return strings.Join(words, " ")
}

// BaseMerchant is a coarser identity than NormalizeMerchant: the first two
// words of the normalized merchant. It groups location-suffixed variants
// ("starbucks coffee downtown", "starbucks coffee airport") together.
func BaseMerchant(description string) string {
	words := strings.Fields(NormalizeMerchant(description))
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
