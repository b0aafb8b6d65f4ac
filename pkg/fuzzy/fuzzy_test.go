package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"groceris", "groceries", 1},
		{"same", "same", 0},
		{"café", "cafe", 1}, // rune-wise, not byte-wise
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSimilarityScore_Bounds(t *testing.T) {
	inputs := []string{"", "a", "starbucks", "STARBUCKS #1234", "groceries", "漢字"}

	for _, a := range inputs {
		assert.Equal(t, 1.0, SimilarityScore(a, a), "identity for %q", a)
		for _, b := range inputs {
			s := SimilarityScore(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			assert.Equal(t, s, SimilarityScore(b, a), "symmetry for %q/%q", a, b)
		}
	}

	assert.Equal(t, 1.0, SimilarityScore("", ""))
	assert.Equal(t, 0.0, SimilarityScore("", "anything"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  STARBUCKS   #1234  ", "starbucks 1234"},
		{"Uber*Eats!!", "ubereats"},
		{"Food & Dining", "food dining"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		got := Normalize(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, Normalize(got), "idempotent for %q", tt.in)
	}
}

func TestFindMatchingCategory(t *testing.T) {
	categories := []Category{
		{Key: "food", Name: "Groceries"},
		{Key: "transport", Name: "Transport"},
		{Key: "fun", Name: "Entertainment"},
	}

	t.Run("exact name returns 1.0", func(t *testing.T) {
		m := FindMatchingCategory("groceries", categories, 0.6)
		require.NotNil(t, m)
		assert.Equal(t, "food", m.Category.Key)
		assert.Equal(t, 1.0, m.Score)
		assert.True(t, m.Exact)
	})

	t.Run("exact key returns 1.0", func(t *testing.T) {
		m := FindMatchingCategory("transport", categories, 0.6)
		require.NotNil(t, m)
		assert.Equal(t, "transport", m.Category.Key)
		assert.True(t, m.Exact)
	})

	t.Run("typo scores above 0.8", func(t *testing.T) {
		m := FindMatchingCategory("groceris", categories, 0.6)
		require.NotNil(t, m)
		assert.Equal(t, "food", m.Category.Key)
		assert.False(t, m.Exact)
		assert.Greater(t, m.Score, 0.8)
	})

	t.Run("substring containment scores 0.9", func(t *testing.T) {
		m := FindMatchingCategory("entertain", categories, 0.6)
		require.NotNil(t, m)
		assert.Equal(t, "fun", m.Category.Key)
		assert.Equal(t, 0.9, m.Score)
	})

	t.Run("no match below threshold", func(t *testing.T) {
		assert.Nil(t, FindMatchingCategory("zzzzzz", categories, 0.6))
	})

	t.Run("empty input and empty set", func(t *testing.T) {
		assert.Nil(t, FindMatchingCategory("", categories, 0.6))
		assert.Nil(t, FindMatchingCategory("   !!", categories, 0.6))
		assert.Nil(t, FindMatchingCategory("food", nil, 0.6))
	})
}

func TestFindAllMatchingCategories(t *testing.T) {
	categories := []Category{
		{Key: "food", Name: "Food"},
		{Key: "food_out", Name: "Food Out"},
		{Key: "transport", Name: "Transport"},
	}

	matches := FindAllMatchingCategories("food", categories, 0.6, 10)
	require.Len(t, matches, 2)
	// Sorted descending by score; exact first.
	assert.Equal(t, "food", matches[0].Category.Key)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	t.Run("truncates to maxResults", func(t *testing.T) {
		got := FindAllMatchingCategories("food", categories, 0.6, 1)
		assert.Len(t, got, 1)
	})
}

func TestRankCandidates(t *testing.T) {
	ranked := RankCandidates("strbcks", []string{"starbucks", "netflix"})
	require.Len(t, ranked, 1)
	assert.Equal(t, "starbucks", ranked[0].Target)
}
