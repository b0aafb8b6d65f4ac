package expense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casaledger/casaledger/internal/docstore"
)

// ErrSettledEdit rejects updates to a settled expense. Deletes stay allowed
// but come back with a warning.
var ErrSettledEdit = errors.New("expense is settled and cannot be edited")

// SettledDeleteWarning accompanies deletion of a settled expense.
const SettledDeleteWarning = "deleting a settled expense affects settlement history"

// Repository persists expenses in the document store.
type Repository struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewRepository(store docstore.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, logger: logger}
}

// toDocument flattens the expense for storage. The import session id is
// lifted to a top-level field so rollback can query by it.
func toDocument(e Expense) (docstore.Document, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding expense %s: %w", e.ID, err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return docstore.Document{}, fmt.Errorf("encoding expense %s: %w", e.ID, err)
	}
	if e.Import != nil {
		fields["import_session_id"] = e.Import.SessionID
	}
	fields["date"] = e.Date.UTC().Format(time.RFC3339)
	return docstore.Document{Collection: Collection, ID: e.ID, Fields: fields}, nil
}

func fromDocument(doc docstore.Document) (Expense, error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return Expense{}, fmt.Errorf("decoding expense %s: %w", doc.ID, err)
	}
	var e Expense
	if err := json.Unmarshal(raw, &e); err != nil {
		return Expense{}, fmt.Errorf("decoding expense %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	return e, nil
}

// ToWriteOps converts expenses into batch write operations. The engine
// chunks these against the store's per-call limit.
func ToWriteOps(expenses []Expense) ([]docstore.WriteOp, error) {
	ops := make([]docstore.WriteOp, 0, len(expenses))
	for _, e := range expenses {
		doc, err := toDocument(e)
		if err != nil {
			return nil, err
		}
		ops = append(ops, docstore.WriteOp{Document: doc})
	}
	return ops, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Expense, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	e, err := fromDocument(*doc)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Save writes one expense, rejecting edits to settled records.
func (r *Repository) Save(ctx context.Context, e Expense) error {
	existing, err := r.Get(ctx, e.ID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	if existing != nil && existing.Settled() {
		return fmt.Errorf("saving expense %s: %w", e.ID, ErrSettledEdit)
	}

	doc, err := toDocument(e)
	if err != nil {
		return err
	}
	return r.store.BatchWrite(ctx, []docstore.WriteOp{{Document: doc}})
}

// Delete removes one expense. Settled expenses delete fine but the caller
// gets a warning to surface.
func (r *Repository) Delete(ctx context.Context, id string) (warning string, err error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if existing.Settled() {
		warning = SettledDeleteWarning
	}
	if err := r.store.BatchDelete(ctx, Collection, []string{id}); err != nil {
		return "", err
	}
	return warning, nil
}

// Recent returns the couple's expenses dated on or after since, newest
// first. Duplicate detection reads its candidate window through this.
func (r *Repository) Recent(ctx context.Context, coupleID string, since time.Time) ([]Expense, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "couple_id", Op: docstore.OpEqual, Value: coupleID},
			{Field: "date", Op: docstore.OpGreaterEqual, Value: since.UTC().Format(time.RFC3339)},
		},
		OrderBy:    "date",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("loading recent expenses: %w", err)
	}

	expenses := make([]Expense, 0, len(docs))
	for _, doc := range docs {
		e, err := fromDocument(doc)
		if err != nil {
			r.logger.Warn("skipping undecodable expense", slog.String("id", doc.ID))
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// ListByMonth returns the couple's expenses for one calendar month, oldest
// first.
func (r *Repository) ListByMonth(ctx context.Context, coupleID string, year int, month time.Month) ([]Expense, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "couple_id", Op: docstore.OpEqual, Value: coupleID},
			{Field: "date", Op: docstore.OpGreaterEqual, Value: start.Format(time.RFC3339)},
			{Field: "date", Op: docstore.OpLessEqual, Value: end.Add(-time.Second).Format(time.RFC3339)},
		},
		OrderBy: "date",
	})
	if err != nil {
		return nil, fmt.Errorf("listing %d-%02d expenses: %w", year, month, err)
	}

	expenses := make([]Expense, 0, len(docs))
	for _, doc := range docs {
		e, err := fromDocument(doc)
		if err != nil {
			r.logger.Warn("skipping undecodable expense", slog.String("id", doc.ID))
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// SessionExpenseIDs lists every expense committed under an import session.
// Rollback deletes through this.
func (r *Repository) SessionExpenseIDs(ctx context.Context, sessionID string) ([]string, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			{Field: "import_session_id", Op: docstore.OpEqual, Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing session %s expenses: %w", sessionID, err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
