// Package storage persists transactions in SQL databases. The same
// Repository serves sqlite and postgres; only placeholders and the
// timestamp column encoding differ.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"andamento/internal/core"
	"andamento/internal/sources"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders as $n for postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTimeLayout sorts lexicographically for UTC instants.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d dialect) timeArg(t time.Time) any {
	if d == dialectPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// Repository is a TransactionSource backed by *sql.DB.
type Repository struct {
	db      *sql.DB
	dialect dialect
}

var _ sources.TransactionSource = (*Repository)(nil)

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements sources.TransactionWriter
func (r *Repository) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	const q = `INSERT INTO transactions (id, account_id, occurred_at, type, amount, description, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(q),
		tx.ID, tx.AccountID, r.dialect.timeArg(tx.Date), string(tx.Type),
		tx.Amount.String(), tx.Description, tx.Category)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction stored",
		"component", "storage",
		"dialect", r.dialect.String(),
		"id", tx.ID,
		"account_id", tx.AccountID,
		"type", tx.Type)

	return tx.ID, nil
}

// ListTransactions implements sources.TransactionLister
func (r *Repository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	q := `SELECT id, account_id, occurred_at, type, amount, description, category FROM transactions`
	var args []any
	if accountID != "" {
		q += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	q += ` ORDER BY occurred_at, id`

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			rawAt  any
			typ    string
			amount sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &rawAt, &typ, &amount, &tx.Description, &tx.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := decodeRow(&tx, rawAt, amount); err != nil {
			slog.WarnContext(ctx, "Skipping stored transaction",
				"component", "storage",
				"dialect", r.dialect.String(),
				"id", tx.ID,
				"error", err)
			continue
		}
		tx.Type = core.TransactionType(typ)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Count returns the number of stored transactions for accountID, or all
// accounts when it is empty.
func (r *Repository) Count(ctx context.Context, accountID string) (int, error) {
	q := `SELECT COUNT(*) FROM transactions`
	var args []any
	if accountID != "" {
		q += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(q), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// decodeRow fills the columns that are stored as text and can therefore
// hold values no writer of this package produced.
func decodeRow(tx *core.Transaction, rawAt any, amount sql.NullString) error {
	var when timeValue
	if err := when.Scan(rawAt); err != nil {
		return err
	}
	if !amount.Valid {
		return errors.New("amount is null")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount.String))
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", amount.String, err)
	}
	tx.Date = when.Time
	tx.Amount = d
	return nil
}

// timeValue scans both native timestamps and sqlite TEXT columns.
type timeValue struct {
	time.Time
}

func (t *timeValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timeValue) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
