package docstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetAndBatchWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(10)

	err := store.BatchWrite(ctx, []WriteOp{
		{Document: Document{Collection: "expenses", ID: "e1", Fields: map[string]any{"amount": 5.50}}},
		{Document: Document{Collection: "expenses", ID: "e2", Fields: map[string]any{"amount": 12.00}}},
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "expenses", "e1")
	require.NoError(t, err)
	assert.Equal(t, 5.50, doc.Fields["amount"])

	_, err = store.Get(ctx, "expenses", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_BatchSizeLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)

	ops := make([]WriteOp, 3)
	for i := range ops {
		ops[i] = WriteOp{Document: Document{Collection: "c", ID: fmt.Sprintf("d%d", i)}}
	}
	assert.Error(t, store.BatchWrite(ctx, ops))
	assert.Error(t, store.BatchDelete(ctx, "c", []string{"a", "b", "c"}))
}

func TestMemory_Query(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(100)

	require.NoError(t, store.BatchWrite(ctx, []WriteOp{
		{Document: Document{Collection: "expenses", ID: "a", Fields: map[string]any{"date": "2024-01-15", "session": "s1"}}},
		{Document: Document{Collection: "expenses", ID: "b", Fields: map[string]any{"date": "2024-02-20", "session": "s1"}}},
		{Document: Document{Collection: "expenses", ID: "c", Fields: map[string]any{"date": "2024-03-25", "session": "s2"}}},
	}))

	t.Run("equality filter", func(t *testing.T) {
		docs, err := store.Query(ctx, Query{
			Collection: "expenses",
			Filters:    []Filter{{Field: "session", Op: OpEqual, Value: "s1"}},
		})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("range filter with ordering", func(t *testing.T) {
		docs, err := store.Query(ctx, Query{
			Collection: "expenses",
			Filters:    []Filter{{Field: "date", Op: OpGreaterEqual, Value: "2024-02-01"}},
			OrderBy:    "date",
			Descending: true,
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "c", docs[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		docs, err := store.Query(ctx, Query{Collection: "expenses", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("missing field excludes document", func(t *testing.T) {
		docs, err := store.Query(ctx, Query{
			Collection: "expenses",
			Filters:    []Filter{{Field: "nope", Op: OpEqual, Value: "x"}},
		})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMemory_BatchDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(100)

	require.NoError(t, store.BatchWrite(ctx, []WriteOp{
		{Document: Document{Collection: "expenses", ID: "a"}},
		{Document: Document{Collection: "expenses", ID: "b"}},
	}))
	require.NoError(t, store.BatchDelete(ctx, "expenses", []string{"a"}))

	assert.Equal(t, 1, store.Count("expenses"))
	_, err := store.Get(ctx, "expenses", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_FailureHooks(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(100)
	store.FailWriteOnCall = 2

	op := []WriteOp{{Document: Document{Collection: "c", ID: "1"}}}
	require.NoError(t, store.BatchWrite(ctx, op))
	assert.Error(t, store.BatchWrite(ctx, op), "second call fails")
	require.NoError(t, store.BatchWrite(ctx, op), "third call succeeds again")

	store.FailDeleteOnCall = 1
	assert.Error(t, store.BatchDelete(ctx, "c", []string{"1"}))
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	chunks := Chunk(items, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2}, chunks[0])
	assert.Equal(t, []int{5}, chunks[2])

	assert.Nil(t, Chunk([]int{}, 2))
	assert.Len(t, Chunk(items, 10), 1)
	assert.Len(t, Chunk(items, 5), 1)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, compareValues("a", "a"))
	assert.Equal(t, -1, compareValues("a", "b"))
	assert.Equal(t, 1, compareValues(2.0, 1))
	assert.Equal(t, 0, compareValues(int64(5), 5.0))

	now := time.Now()
	assert.Equal(t, -1, compareValues(now, now.Add(time.Hour)))
}
