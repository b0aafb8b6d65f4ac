// Package fuzzy provides approximate string matching primitives shared by
// category resolution and duplicate detection. Scores are always in [0, 1].
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
)

// Category is a candidate for name resolution. Key is the stable identifier
// ("food", "transport"), Name the display label ("Food & Dining").
type Category struct {
	Key  string
	Name string
}

// CategoryMatch is one resolved candidate with its score.
type CategoryMatch struct {
	Category Category
	Score    float64
	Exact    bool
}

// DefaultCategoryThreshold is the minimum score FindMatchingCategory accepts
// when the caller passes no explicit threshold.
const DefaultCategoryThreshold = 0.6

// LevenshteinDistance computes the classic edit distance between a and b
// using the full dynamic-programming matrix over runes.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}

// SimilarityScore returns 1 - distance/max(len). Two empty strings score 1.0,
// one empty string scores 0. The result is symmetric and bounded to [0, 1].
func SimilarityScore(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0.0
	}

	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// Normalize lowercases, strips everything but letters, digits and spaces,
// collapses runs of whitespace and trims. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FindMatchingCategory resolves input against the candidate set and returns
// the single best match, or nil when nothing reaches the threshold.
//
// Scoring per candidate: exact normalized match wins outright with 1.0;
// substring containment in either direction scores 0.9; otherwise the best
// of SimilarityScore against the display name and against the key.
func FindMatchingCategory(input string, categories []Category, threshold float64) *CategoryMatch {
	if threshold <= 0 {
		threshold = DefaultCategoryThreshold
	}

	normInput := Normalize(input)
	if normInput == "" || len(categories) == 0 {
		return nil
	}

	var best *CategoryMatch
	for _, cat := range categories {
		m := scoreCategory(normInput, cat)
		if m == nil {
			continue
		}
		if m.Exact {
			return m
		}
		if best == nil || m.Score > best.Score {
			best = m
		}
	}

	if best != nil && best.Score >= threshold {
		return best
	}
	return nil
}

// FindAllMatchingCategories returns every candidate meeting the threshold,
// sorted by score descending and truncated to maxResults. Used when the
// caller wants to offer the user a disambiguation list.
func FindAllMatchingCategories(input string, categories []Category, threshold float64, maxResults int) []CategoryMatch {
	if threshold <= 0 {
		threshold = DefaultCategoryThreshold
	}

	normInput := Normalize(input)
	if normInput == "" || len(categories) == 0 {
		return nil
	}

	var matches []CategoryMatch
	for _, cat := range categories {
		m := scoreCategory(normInput, cat)
		if m != nil && m.Score >= threshold {
			matches = append(matches, *m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

func scoreCategory(normInput string, cat Category) *CategoryMatch {
	normName := Normalize(cat.Name)
	normKey := Normalize(cat.Key)
	if normName == "" && normKey == "" {
		return nil
	}

	if normInput == normName || normInput == normKey {
		return &CategoryMatch{Category: cat, Score: 1.0, Exact: true}
	}

	for _, candidate := range []string{normName, normKey} {
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, normInput) || strings.Contains(normInput, candidate) {
			return &CategoryMatch{Category: cat, Score: 0.9}
		}
	}

	score := SimilarityScore(normInput, normName)
	if keyScore := SimilarityScore(normInput, normKey); keyScore > score {
		score = keyScore
	}
	return &CategoryMatch{Category: cat, Score: score}
}

// RankedCandidate is a candidate string ordered by subsequence rank.
type RankedCandidate struct {
	Target string
	Rank   int
}

// RankCandidates orders candidates by subsequence closeness to input using
// lithammer/fuzzysearch. Candidates that are not a fold-insensitive
// subsequence match are omitted. Lower rank means closer.
func RankCandidates(input string, candidates []string) []RankedCandidate {
	ranks := fuzzysearch.RankFindNormalizedFold(input, candidates)
	sort.Sort(ranks)

	out := make([]RankedCandidate, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, RankedCandidate{Target: r.Target, Rank: r.Distance})
	}
	return out
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
