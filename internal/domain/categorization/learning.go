package categorization

import (
	"strings"

	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
	"github.com/casaledger/casaledger/pkg/fuzzy"
)

// HistoricalTransaction is a past categorized record used for learning.
type HistoricalTransaction struct {
	Description string
	CategoryKey string
}

// learnFromHistory tries, in order: exact merchant match, base-merchant
// match, exact full-text match, then word-overlap similarity. The first
// hit wins. Returns nil when history teaches nothing.
func learnFromHistory(description string, past []HistoricalTransaction) *Suggestion {
	if len(past) == 0 {
		return nil
	}

	merchant := normalizer.NormalizeMerchant(description)
	if merchant != "" {
		if key, fraction := majorityByKey(past, func(h HistoricalTransaction) string {
			return normalizer.NormalizeMerchant(h.Description)
		}, merchant); key != "" {
			return &Suggestion{
				CategoryKey: key,
				Confidence:  scaleConfidence(fraction, 0.7, 0.95),
				Source:      SourceLearnedMerchant,
			}
		}
	}

	base := normalizer.BaseMerchant(description)
	if base != "" {
		if key, fraction := majorityByKey(past, func(h HistoricalTransaction) string {
			return normalizer.BaseMerchant(h.Description)
		}, base); key != "" {
			return &Suggestion{
				CategoryKey: key,
				Confidence:  scaleConfidence(fraction, 0.65, 0.9),
				Source:      SourceLearnedBaseMerchant,
			}
		}
	}

	normText := fuzzy.Normalize(description)
	for _, h := range past {
		if normText != "" && fuzzy.Normalize(h.Description) == normText {
			return &Suggestion{CategoryKey: h.CategoryKey, Confidence: 1.0, Source: SourceLearnedExact}
		}
	}

	bestSim := 0.0
	bestKey := ""
	for _, h := range past {
		sim := wordOverlap(description, h.Description)
		if sim > bestSim {
			bestSim = sim
			bestKey = h.CategoryKey
		}
	}
	if bestSim > 0.7 && bestKey != "" {
		return &Suggestion{CategoryKey: bestKey, Confidence: bestSim * 0.9, Source: SourceLearnedSimilar}
	}
	return nil
}

// majorityByKey groups history records sharing the given identity and
// returns the majority category with the fraction of records agreeing.
// Requires at least one matching record.
func majorityByKey(past []HistoricalTransaction, identity func(HistoricalTransaction) string, want string) (string, float64) {
	counts := make(map[string]int)
	total := 0
	for _, h := range past {
		if identity(h) != want {
			continue
		}
		counts[h.CategoryKey]++
		total++
	}
	if total == 0 {
		return "", 0
	}

	bestKey := ""
	bestCount := 0
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey = key
			bestCount = count
		}
	}
	return bestKey, float64(bestCount) / float64(total)
}

// scaleConfidence maps a [0,1] agreement fraction into [lo,hi].
func scaleConfidence(fraction, lo, hi float64) float64 {
	return lo + fraction*(hi-lo)
}

// wordOverlap is a Jaccard-like similarity over words longer than two
// characters.
func wordOverlap(a, b string) float64 {
	wordsA := significantWords(a)
	wordsB := significantWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(fuzzy.Normalize(s)) {
		if len(w) > 2 {
			words[w] = true
		}
	}
	return words
}
