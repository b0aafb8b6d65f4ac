package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Store for tests and previews. FailWriteOnCall and
// FailDeleteOnCall make the Nth batch call fail, which is how the import
// engine's rollback paths are exercised.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	maxBatchOps int

	writeCalls  int
	deleteCalls int

	// 1-based call indexes that should fail; zero disables.
	FailWriteOnCall  int
	FailDeleteOnCall int
}

func NewMemory(maxBatchOps int) *Memory {
	if maxBatchOps <= 0 {
		maxBatchOps = DefaultMaxBatchOps
	}
	return &Memory{
		collections: make(map[string]map[string]Document),
		maxBatchOps: maxBatchOps,
	}
}

func (m *Memory) MaxBatchOps() int { return m.maxBatchOps }

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	copied := doc
	return &copied, nil
}

func (m *Memory) Query(_ context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, doc := range m.collections[q.Collection] {
		if matchesFilters(doc, q.Filters) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy]) < 0
			if q.Descending {
				return !less
			}
			return less
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) BatchWrite(_ context.Context, ops []WriteOp) error {
	if len(ops) > m.maxBatchOps {
		return fmt.Errorf("batch of %d exceeds limit of %d operations", len(ops), m.maxBatchOps)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++
	if m.FailWriteOnCall > 0 && m.writeCalls == m.FailWriteOnCall {
		return fmt.Errorf("batch write %d: simulated store failure", m.writeCalls)
	}

	// All-or-nothing: validation above, then every op applies.
	for _, op := range ops {
		doc := op.Document
		doc.UpdatedAt = time.Now().UTC()
		coll, ok := m.collections[doc.Collection]
		if !ok {
			coll = make(map[string]Document)
			m.collections[doc.Collection] = coll
		}
		coll[doc.ID] = doc
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, collection string, ids []string) error {
	if len(ids) > m.maxBatchOps {
		return fmt.Errorf("batch of %d exceeds limit of %d operations", len(ids), m.maxBatchOps)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++
	if m.FailDeleteOnCall > 0 && m.deleteCalls == m.FailDeleteOnCall {
		return fmt.Errorf("batch delete %d: simulated store failure", m.deleteCalls)
	}

	for _, id := range ids {
		delete(m.collections[collection], id)
	}
	return nil
}

// Count reports how many documents a collection holds. Test helper.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		fieldValue, ok := doc.Fields[f.Field]
		if !ok {
			return false
		}
		cmp := compareValues(fieldValue, f.Value)
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpGreaterEqual:
			if cmp < 0 {
				return false
			}
		case OpLessEqual:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders the value types documents actually carry: strings,
// numbers, times and decimals.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv)
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
