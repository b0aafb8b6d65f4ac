package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCategories() map[string]string {
	return map[string]string{
		"food":      "Food & Dining",
		"groceries": "Groceries",
		"transport": "Transport",
		"fun":       "Entertainment",
	}
}

func TestSearchIndex_Search(t *testing.T) {
	si, err := NewSearchIndex(testCategories(), nil)
	require.NoError(t, err)
	defer si.Close()

	count, err := si.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	t.Run("category name", func(t *testing.T) {
		results, err := si.Search("groceries", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "groceries", results[0].Key)
	})

	t.Run("keyword surfaces its category", func(t *testing.T) {
		results, err := si.Search("supermarket", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "groceries", results[0].Key)
	})

	t.Run("typo via fuzziness", func(t *testing.T) {
		results, err := si.Search("groseries", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		keys := make([]string, len(results))
		for i, r := range results {
			keys[i] = r.Key
		}
		assert.Contains(t, keys, "groceries")
	})

	t.Run("empty input", func(t *testing.T) {
		results, err := si.Search("  ", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("limit respected", func(t *testing.T) {
		results, err := si.Search("station", 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 1)
	})
}

func TestSearchIndex_CustomKeywords(t *testing.T) {
	si, err := NewSearchIndex(testCategories(), map[string][]string{
		"fun": {"boardgames"},
	})
	require.NoError(t, err)
	defer si.Close()

	results, err := si.Search("boardgames", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "fun", results[0].Key)
}
