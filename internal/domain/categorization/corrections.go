package categorization

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casaledger/casaledger/internal/docstore"
	"github.com/casaledger/casaledger/internal/domain/import/normalizer"
)

const correctionsCollection = "category_corrections"

// CorrectionStore persists user category corrections keyed by normalized
// merchant. Appends are independent entries, so concurrent import runs can
// read and write without coordination.
type CorrectionStore struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewCorrectionStore(store docstore.Store, logger *slog.Logger) *CorrectionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrectionStore{store: store, logger: logger}
}

// Record appends one correction: the user recategorized a transaction with
// this description to categoryKey.
func (s *CorrectionStore) Record(ctx context.Context, description, categoryKey string) error {
	merchant := normalizer.NormalizeMerchant(description)
	if merchant == "" || categoryKey == "" {
		return fmt.Errorf("correction needs a merchant and a category")
	}

	doc := docstore.Document{
		Collection: correctionsCollection,
		ID:         uuid.NewString(),
		Fields: map[string]any{
			"merchant":     merchant,
			"category_key": categoryKey,
			"corrected_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.store.BatchWrite(ctx, []docstore.WriteOp{{Document: doc}}); err != nil {
		return fmt.Errorf("recording correction for %q: %w", merchant, err)
	}
	s.logger.Debug("recorded category correction",
		slog.String("merchant", merchant),
		slog.String("category", categoryKey))
	return nil
}

// MajorityFor returns the majority corrected category for the description's
// merchant, scaled into [0.7,0.95] by agreement. Nil when the merchant has
// no corrections.
func (s *CorrectionStore) MajorityFor(ctx context.Context, description string) (*Suggestion, error) {
	merchant := normalizer.NormalizeMerchant(description)
	if merchant == "" {
		return nil, nil
	}

	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: correctionsCollection,
		Filters:    []docstore.Filter{{Field: "merchant", Op: docstore.OpEqual, Value: merchant}},
	})
	if err != nil {
		return nil, fmt.Errorf("loading corrections for %q: %w", merchant, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	for _, doc := range docs {
		if key, ok := doc.Fields["category_key"].(string); ok && key != "" {
			counts[key]++
		}
	}

	bestKey := ""
	bestCount := 0
	total := 0
	for key, count := range counts {
		total += count
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey = key
			bestCount = count
		}
	}
	if bestKey == "" {
		return nil, nil
	}

	fraction := float64(bestCount) / float64(total)
	return &Suggestion{
		CategoryKey: bestKey,
		Confidence:  scaleConfidence(fraction, 0.7, 0.95),
		Source:      SourceUserCorrection,
	}, nil
}
