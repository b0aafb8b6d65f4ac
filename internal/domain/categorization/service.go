package categorization

import (
	"context"
	"log/slog"
	"sync"

	"github.com/casaledger/casaledger/pkg/fuzzy"
)

// Thresholds for suggestion precedence. A learned or corrected result above
// learnedOverride skips keyword matching entirely; keyword results below
// minKeywordConfidence collapse to the default category.
const (
	learnedOverride      = 0.8
	minKeywordConfidence = 0.2
)

// Service resolves categories with the priority: user corrections, then
// learning from history, then keyword matching, then the default category.
type Service struct {
	engine      *KeywordEngine
	corrections *CorrectionStore
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]Suggestion
}

// NewService wires the mapper. corrections may be nil when correction
// memory is disabled.
func NewService(engine *KeywordEngine, corrections *CorrectionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:      engine,
		corrections: corrections,
		logger:      logger,
		cache:       make(map[string]Suggestion),
	}
}

// SuggestCategory resolves one description. The first confident layer wins;
// anything below minKeywordConfidence collapses to the default category
// with confidence 0.
func (s *Service) SuggestCategory(ctx context.Context, description string, past []HistoricalTransaction) Suggestion {
	if s.corrections != nil {
		corrected, err := s.corrections.MajorityFor(ctx, description)
		if err != nil {
			s.logger.Warn("correction lookup failed", slog.String("error", err.Error()))
		} else if corrected != nil && corrected.Confidence > learnedOverride {
			return *corrected
		}
	}

	learned := learnFromHistory(description, past)
	if learned != nil && learned.Confidence > learnedOverride {
		return *learned
	}

	if key, confidence := s.engine.Score(description); confidence >= minKeywordConfidence {
		return Suggestion{CategoryKey: key, Confidence: confidence, Source: SourceKeywordMatch}
	}

	// Keywords were unconvincing; a weak learned result still beats the
	// default bucket.
	if learned != nil {
		return *learned
	}
	return Suggestion{CategoryKey: DefaultCategoryKey, Confidence: 0, Source: SourceDefault}
}

// SuggestBatch resolves many descriptions, memoizing by normalized identity
// so repeated passes over the same parsed set (preview, then commit) don't
// recompute.
func (s *Service) SuggestBatch(ctx context.Context, descriptions []string, past []HistoricalTransaction) []Suggestion {
	out := make([]Suggestion, len(descriptions))
	for i, desc := range descriptions {
		key := fuzzy.Normalize(desc)

		s.mu.Lock()
		cached, ok := s.cache[key]
		s.mu.Unlock()
		if ok {
			out[i] = cached
			continue
		}

		suggestion := s.SuggestCategory(ctx, desc, past)
		s.mu.Lock()
		s.cache[key] = suggestion
		s.mu.Unlock()
		out[i] = suggestion
	}
	return out
}

// InvalidateCache clears memoized suggestions, e.g. after corrections or
// keyword edits change the inputs.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]Suggestion)
	s.mu.Unlock()
}

// ResolveCategoryName maps free-form user text ("groceris") to a known
// category via the shared fuzzy matcher.
func (s *Service) ResolveCategoryName(input string, categories []fuzzy.Category) *fuzzy.CategoryMatch {
	return fuzzy.FindMatchingCategory(input, categories, fuzzy.DefaultCategoryThreshold)
}
