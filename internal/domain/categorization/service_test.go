package categorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casaledger/casaledger/internal/docstore"
	"github.com/casaledger/casaledger/pkg/fuzzy"
)

func newTestService(t *testing.T) (*Service, *CorrectionStore) {
	t.Helper()
	store := docstore.NewMemory(100)
	corrections := NewCorrectionStore(store, nil)
	return NewService(NewKeywordEngine(nil), corrections, nil), corrections
}

func TestSuggestCategory_KeywordFallback(t *testing.T) {
	svc, _ := newTestService(t)

	s := svc.SuggestCategory(context.Background(), "STARBUCKS #1234", nil)
	assert.Equal(t, "food", s.CategoryKey)
	assert.Equal(t, SourceKeywordMatch, s.Source)
	assert.GreaterOrEqual(t, s.Confidence, 0.5)
}

func TestSuggestCategory_LearnedOverridesKeywords(t *testing.T) {
	svc, _ := newTestService(t)

	// The user consistently files Starbucks under "fun"; history wins over
	// the keyword engine's "food".
	past := []HistoricalTransaction{
		{Description: "STARBUCKS #1111", CategoryKey: "fun"},
		{Description: "STARBUCKS #2222", CategoryKey: "fun"},
	}
	s := svc.SuggestCategory(context.Background(), "STARBUCKS #9999", past)
	assert.Equal(t, "fun", s.CategoryKey)
	assert.Equal(t, SourceLearnedMerchant, s.Source)
	assert.Greater(t, s.Confidence, 0.8)
}

func TestSuggestCategory_CorrectionTakesPrecedence(t *testing.T) {
	svc, corrections := newTestService(t)
	ctx := context.Background()

	require.NoError(t, corrections.Record(ctx, "STARBUCKS #1", "home"))
	require.NoError(t, corrections.Record(ctx, "STARBUCKS #2", "home"))

	s := svc.SuggestCategory(ctx, "STARBUCKS #3", nil)
	assert.Equal(t, "home", s.CategoryKey)
	assert.Equal(t, SourceUserCorrection, s.Source)
}

func TestSuggestCategory_UnknownCollapsesToDefault(t *testing.T) {
	svc, _ := newTestService(t)

	s := svc.SuggestCategory(context.Background(), "ZZQX WIDGETS LLC", nil)
	assert.Equal(t, DefaultCategoryKey, s.CategoryKey)
	assert.Equal(t, 0.0, s.Confidence)
	assert.Equal(t, SourceDefault, s.Source)
}

func TestSuggestCategory_WeakLearnedBeatsDefault(t *testing.T) {
	svc, _ := newTestService(t)

	past := []HistoricalTransaction{
		{Description: "ZZQX WIDGETS LLC STORE", CategoryKey: "home"},
	}
	s := svc.SuggestCategory(context.Background(), "ZZQX WIDGETS LLC OUTLET", past)
	assert.Equal(t, "home", s.CategoryKey)
	assert.NotEqual(t, SourceDefault, s.Source)
}

func TestSuggestBatch_CachesByIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := svc.SuggestBatch(ctx, []string{"STARBUCKS #1234", "starbucks  #1234"}, nil)
	require.Len(t, first, 2)
	// Same normalized identity resolves identically via the cache.
	assert.Equal(t, first[0], first[1])

	svc.InvalidateCache()
	second := svc.SuggestBatch(ctx, []string{"STARBUCKS #1234"}, nil)
	assert.Equal(t, first[0].CategoryKey, second[0].CategoryKey)
}

func TestResolveCategoryName(t *testing.T) {
	svc, _ := newTestService(t)

	categories := []fuzzy.Category{
		{Key: "food", Name: "Groceries"},
		{Key: "transport", Name: "Transport"},
	}
	m := svc.ResolveCategoryName("groceris", categories)
	require.NotNil(t, m)
	assert.Equal(t, "food", m.Category.Key)
	assert.Greater(t, m.Score, 0.8)
}

func TestCorrectionStore_MajorityFor(t *testing.T) {
	store := docstore.NewMemory(100)
	corrections := NewCorrectionStore(store, nil)
	ctx := context.Background()

	require.NoError(t, corrections.Record(ctx, "SHELL OIL 1111", "transport"))
	require.NoError(t, corrections.Record(ctx, "SHELL OIL 2222", "transport"))
	require.NoError(t, corrections.Record(ctx, "SHELL OIL 3333", "home"))

	s, err := corrections.MajorityFor(ctx, "SHELL OIL 4444")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "transport", s.CategoryKey)
	// 2/3 agreement lands inside the band, below the unanimous top.
	assert.Greater(t, s.Confidence, 0.8)
	assert.Less(t, s.Confidence, 0.95)

	t.Run("unknown merchant returns nil", func(t *testing.T) {
		s, err := corrections.MajorityFor(ctx, "NEVER SEEN BEFORE")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		assert.Error(t, corrections.Record(ctx, "", "food"))
		assert.Error(t, corrections.Record(ctx, "MERCHANT", ""))
	})
}
