package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"puzzle-pals-server/apperrors"
)

// Postgres implements Store on a Postgres pool. Each logical table maps to
// a SQL table of (pk, sk, attrs jsonb); the full item, key attributes
// included, lives in attrs so reads need no schema knowledge.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to Postgres and ensures a SQL table exists for every
// logical table.
func NewPostgres(ctx context.Context, databaseURL string, tables []Table) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}

	for _, t := range tables {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			pk    TEXT NOT NULL,
			sk    TEXT NOT NULL DEFAULT '',
			attrs JSONB NOT NULL,
			PRIMARY KEY (pk, sk)
		)`, sqlName(t.Name))
		if _, err := pool.Exec(ctx, ddl); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return &Postgres{pool: pool}, nil
}

// sqlName converts a logical table name ("pp-user-result") to a SQL
// identifier ("pp_user_result").
func sqlName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func encodeAttrs(item Item) ([]byte, error) {
	return json.Marshal(item)
}

func decodeAttrs(raw []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return item, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Put writes an item unconditionally (upsert).
func (p *Postgres) Put(ctx context.Context, t Table, item Item) error {
	key, err := keyOf(t, item)
	if err != nil {
		return err
	}
	attrs, err := encodeAttrs(item)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`INSERT INTO %s (pk, sk, attrs) VALUES ($1, $2, $3)
		ON CONFLICT (pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs`, sqlName(t.Name))
	_, err = p.pool.Exec(ctx, sql, key.Partition, key.Sort, attrs)
	return err
}

// PutIfAbsent writes an item only when its key is free; ErrConflict
// otherwise.
func (p *Postgres) PutIfAbsent(ctx context.Context, t Table, item Item) error {
	key, err := keyOf(t, item)
	if err != nil {
		return err
	}
	attrs, err := encodeAttrs(item)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`INSERT INTO %s (pk, sk, attrs) VALUES ($1, $2, $3)
		ON CONFLICT (pk, sk) DO NOTHING`, sqlName(t.Name))
	tag, err := p.pool.Exec(ctx, sql, key.Partition, key.Sort, attrs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %v already exists", apperrors.ErrConflict, t.Name, key)
	}
	return nil
}

// Get reads one item; ErrNotFound when absent.
func (p *Postgres) Get(ctx context.Context, t Table, key Key, fields ...string) (Item, error) {
	sql := fmt.Sprintf(`SELECT attrs FROM %s WHERE pk = $1 AND sk = $2`, sqlName(t.Name))
	var raw []byte
	err := p.pool.QueryRow(ctx, sql, key.Partition, key.Sort).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, t.Name, key)
	}
	if err != nil {
		return nil, err
	}
	item, err := decodeAttrs(raw)
	if err != nil {
		return nil, err
	}
	return project(item, fields), nil
}

// BatchGet reads many items; missing keys are absent from the result.
func (p *Postgres) BatchGet(ctx context.Context, t Table, keys []Key, fields ...string) ([]Item, error) {
	out := make([]Item, 0, len(keys))
	for _, key := range keys {
		item, err := p.Get(ctx, t, key, fields...)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Query reads one partition in sort order, or scans on index attributes
// when q.Index is set.
func (p *Postgres) Query(ctx context.Context, t Table, q Query) ([]Item, error) {
	var sb strings.Builder
	var args []any

	arg := func(v string) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Index != nil {
		fmt.Fprintf(&sb, `SELECT attrs FROM %s WHERE attrs->>%s = %s`,
			sqlName(t.Name), arg(q.Index.PartitionKey), arg(q.Partition))
		switch q.Sort {
		case SortEquals:
			fmt.Fprintf(&sb, ` AND attrs->>%s = %s`, arg(q.Index.SortKey), arg(q.SortValue))
		case SortBeginsWith:
			fmt.Fprintf(&sb, ` AND attrs->>%s LIKE %s || '%%'`, arg(q.Index.SortKey), arg(q.SortValue))
		case SortBetween:
			fmt.Fprintf(&sb, ` AND attrs->>%s BETWEEN %s AND %s`,
				arg(q.Index.SortKey), arg(q.SortValue), arg(q.SortUpper))
		}
		fmt.Fprintf(&sb, ` ORDER BY attrs->>%s`, arg(q.Index.SortKey))
	} else {
		fmt.Fprintf(&sb, `SELECT attrs FROM %s WHERE pk = %s`, sqlName(t.Name), arg(q.Partition))
		switch q.Sort {
		case SortEquals:
			fmt.Fprintf(&sb, ` AND sk = %s`, arg(q.SortValue))
		case SortBeginsWith:
			fmt.Fprintf(&sb, ` AND sk LIKE %s || '%%'`, arg(q.SortValue))
		case SortBetween:
			fmt.Fprintf(&sb, ` AND sk BETWEEN %s AND %s`, arg(q.SortValue), arg(q.SortUpper))
		}
		sb.WriteString(` ORDER BY sk`)
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		item, err := decodeAttrs(raw)
		if err != nil {
			return nil, err
		}
		if !matchFilter(item, q.Filter) {
			continue
		}
		items = append(items, project(item, q.Fields))
		if q.Limit > 0 && len(items) == q.Limit {
			break
		}
	}
	return items, rows.Err()
}

// Update merges attributes into an existing item; ErrNotFound when absent.
func (p *Postgres) Update(ctx context.Context, t Table, key Key, set Item) error {
	attrs, err := encodeAttrs(set)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(`UPDATE %s SET attrs = attrs || $3 WHERE pk = $1 AND sk = $2`, sqlName(t.Name))
	tag, err := p.pool.Exec(ctx, sql, key.Partition, key.Sort, attrs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, t.Name, key)
	}
	return nil
}

// TransactWrite runs all ops in one transaction, locking and checking every
// precondition before any write so a failed condition rolls everything back.
func (p *Postgres) TransactWrite(ctx context.Context, ops ...TransactOp) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		key := op.Key
		if op.Kind == TransactPut {
			k, err := keyOf(op.Table, op.Item)
			if err != nil {
				return err
			}
			key = k
		}
		if op.Precondition == PrecondNone {
			continue
		}
		sql := fmt.Sprintf(`SELECT 1 FROM %s WHERE pk = $1 AND sk = $2 FOR UPDATE`, sqlName(op.Table.Name))
		var one int
		err := tx.QueryRow(ctx, sql, key.Partition, key.Sort).Scan(&one)
		exists := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if op.Precondition == PrecondExists && !exists {
			return fmt.Errorf("%w: %s %v does not exist", apperrors.ErrConflict, op.Table.Name, key)
		}
		if op.Precondition == PrecondNotExists && exists {
			return fmt.Errorf("%w: %s %v already exists", apperrors.ErrConflict, op.Table.Name, key)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case TransactPut:
			key, err := keyOf(op.Table, op.Item)
			if err != nil {
				return err
			}
			attrs, err := encodeAttrs(op.Item)
			if err != nil {
				return err
			}
			var sql string
			if op.Precondition == PrecondNotExists {
				// FOR UPDATE locks nothing when the row is absent, so a
				// concurrent transaction can pass the same precheck. A plain
				// insert makes the loser fail on the primary key instead.
				sql = fmt.Sprintf(`INSERT INTO %s (pk, sk, attrs) VALUES ($1, $2, $3)`,
					sqlName(op.Table.Name))
			} else {
				sql = fmt.Sprintf(`INSERT INTO %s (pk, sk, attrs) VALUES ($1, $2, $3)
					ON CONFLICT (pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs`, sqlName(op.Table.Name))
			}
			if _, err := tx.Exec(ctx, sql, key.Partition, key.Sort, attrs); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s %v already exists", apperrors.ErrConflict, op.Table.Name, key)
				}
				return err
			}
		case TransactUpdate:
			attrs, err := encodeAttrs(op.Item)
			if err != nil {
				return err
			}
			sql := fmt.Sprintf(`UPDATE %s SET attrs = attrs || $3 WHERE pk = $1 AND sk = $2`, sqlName(op.Table.Name))
			if _, err := tx.Exec(ctx, sql, op.Key.Partition, op.Key.Sort, attrs); err != nil {
				return err
			}
		case TransactDelete:
			sql := fmt.Sprintf(`DELETE FROM %s WHERE pk = $1 AND sk = $2`, sqlName(op.Table.Name))
			if _, err := tx.Exec(ctx, sql, op.Key.Partition, op.Key.Sort); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
