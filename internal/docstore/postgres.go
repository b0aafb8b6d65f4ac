package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the documents schema up to date.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// PgxPool is the pool surface Postgres needs. *pgxpool.Pool satisfies it,
// and so does pgxmock's pool in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Postgres stores documents in a single JSONB table. Batch writes run in one
// transaction, which is what gives the import engine its per-batch atomicity.
type Postgres struct {
	db          PgxPool
	maxBatchOps int
}

func NewPostgres(db PgxPool, maxBatchOps int) *Postgres {
	if maxBatchOps <= 0 {
		maxBatchOps = DefaultMaxBatchOps
	}
	return &Postgres{db: db, maxBatchOps: maxBatchOps}
}

func (p *Postgres) MaxBatchOps() int { return p.maxBatchOps }

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := p.db.QueryRow(ctx,
		`SELECT fields, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw, &updatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", collection, id, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}
	return &Document{Collection: collection, ID: id, Fields: fields, UpdatedAt: updatedAt}, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, fields, updated_at FROM documents WHERE collection = $1`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		clause, arg := filterClause(f, len(args)+1)
		b.WriteString(" AND ")
		b.WriteString(clause)
		args = append(args, arg)
	}

	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY fields->>'%s'", sanitizeField(q.OrderBy))
		if q.Descending {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := p.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id        string
			raw       []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		fields := make(map[string]any)
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, Document{Collection: q.Collection, ID: id, Fields: fields, UpdatedAt: updatedAt})
	}
	return docs, rows.Err()
}

func (p *Postgres) BatchWrite(ctx context.Context, ops []WriteOp) error {
	if len(ops) > p.maxBatchOps {
		return fmt.Errorf("batch of %d exceeds limit of %d operations", len(ops), p.maxBatchOps)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch write: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		raw, err := json.Marshal(op.Document.Fields)
		if err != nil {
			return fmt.Errorf("encoding %s/%s: %w", op.Document.Collection, op.Document.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (collection, id, fields, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (collection, id)
			 DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`,
			op.Document.Collection, op.Document.ID, raw,
		)
		if err != nil {
			return fmt.Errorf("writing %s/%s: %w", op.Document.Collection, op.Document.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) BatchDelete(ctx context.Context, collection string, ids []string) error {
	if len(ids) > p.maxBatchOps {
		return fmt.Errorf("batch of %d exceeds limit of %d operations", len(ids), p.maxBatchOps)
	}
	_, err := p.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`,
		collection, ids,
	)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// filterClause renders one filter. Numeric values compare through a
// ::numeric cast; everything else compares as text (times are stored
// RFC3339, which orders correctly as text).
func filterClause(f Filter, argIdx int) (string, any) {
	field := sanitizeField(f.Field)
	op := "="
	switch f.Op {
	case OpGreaterEqual:
		op = ">="
	case OpLessEqual:
		op = "<="
	}

	if v, ok := toFloat(f.Value); ok {
		return fmt.Sprintf("(fields->>'%s')::numeric %s $%d", field, op, argIdx), v
	}
	if t, ok := f.Value.(time.Time); ok {
		return fmt.Sprintf("fields->>'%s' %s $%d", field, op, argIdx), t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("fields->>'%s' %s $%d", field, op, argIdx), fmt.Sprint(f.Value)
}

func sanitizeField(field string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, field)
}
