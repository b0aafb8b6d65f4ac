package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/casaledger/casaledger/pkg/fuzzy"
)

// Keyword match scoring. A full-text match is worth a whole confidence
// point; whole-word and substring hits accumulate toward it.
const (
	scoreExact     = 10
	scoreWholeWord = 5
	scoreSubstring = 2
)

// KeywordEngine scores descriptions against per-category keyword lists with
// a single Aho-Corasick pass, so cost is independent of keyword count.
type KeywordEngine struct {
	mu       sync.RWMutex
	matcher  *ahocorasick.Matcher
	keywords []string // normalized, parallel to categories
	byKey    []string // category key for keywords[i]
}

// NewKeywordEngine merges the built-in lists with custom keywords
// (categoryKey -> tokens) and builds the matcher.
func NewKeywordEngine(custom map[string][]string) *KeywordEngine {
	e := &KeywordEngine{}
	e.Rebuild(custom)
	return e
}

// Rebuild reconstructs the matcher, e.g. after the user edits keywords.
func (e *KeywordEngine) Rebuild(custom map[string][]string) {
	merged := make(map[string][]string, len(builtinKeywords))
	for key, words := range builtinKeywords {
		merged[key] = append(merged[key], words...)
	}
	for key, words := range custom {
		merged[key] = append(merged[key], words...)
	}

	var keywords []string
	var byKey []string
	seen := make(map[string]bool)
	for key, words := range merged {
		for _, w := range words {
			norm := fuzzy.Normalize(w)
			if norm == "" || seen[norm+"\x00"+key] {
				continue
			}
			seen[norm+"\x00"+key] = true
			keywords = append(keywords, norm)
			byKey = append(byKey, key)
		}
	}

	matcher := ahocorasick.NewStringMatcher(keywords)

	e.mu.Lock()
	e.matcher = matcher
	e.keywords = keywords
	e.byKey = byKey
	e.mu.Unlock()
}

// Score matches the description against every keyword at once and returns
// the best category with confidence min(score/10, 1). Scoring per matched
// keyword: exact full-text +10, whole-word +5, substring +2.
func (e *KeywordEngine) Score(description string) (string, float64) {
	norm := fuzzy.Normalize(description)
	if norm == "" {
		return "", 0
	}

	e.mu.RLock()
	matcher := e.matcher
	keywords := e.keywords
	byKey := e.byKey
	e.mu.RUnlock()

	if matcher == nil {
		return "", 0
	}

	scores := make(map[string]int)
	for _, idx := range matcher.MatchThreadSafe([]byte(norm)) {
		keyword := keywords[idx]
		switch {
		case norm == keyword:
			scores[byKey[idx]] += scoreExact
		case containsWholeWord(norm, keyword):
			scores[byKey[idx]] += scoreWholeWord
		default:
			scores[byKey[idx]] += scoreSubstring
		}
	}

	bestKey := ""
	bestScore := 0
	for key, score := range scores {
		if score > bestScore || (score == bestScore && key < bestKey) {
			bestKey = key
			bestScore = score
		}
	}
	if bestKey == "" {
		return "", 0
	}

	confidence := float64(bestScore) / 10
	if confidence > 1 {
		confidence = 1
	}
	return bestKey, confidence
}

// containsWholeWord reports whether keyword appears in text bounded by word
// breaks on both sides. Multi-word keywords count when each edge is a break.
func containsWholeWord(text, keyword string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], keyword)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(keyword)
		leftOK := i == 0 || text[i-1] == ' '
		rightOK := end == len(text) || text[end] == ' '
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}
