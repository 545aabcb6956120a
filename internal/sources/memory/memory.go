// Package memory is an in-process transaction source, optionally seeded
// from a CSV file.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"andamento/internal/core"
	"andamento/internal/sources"
)

// SeedFile is read from the data directory by NewFromDir.
const SeedFile = "transactions.csv"

var _ sources.TransactionSource = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
	dirty bool
}

func New(seed ...core.Transaction) *Store {
	s := &Store{}
	for _, tx := range seed {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.items = append(s.items, tx)
	}
	return s
}

// NewFromDir seeds the store from dir/transactions.csv. A missing file
// yields an empty store.
func NewFromDir(ctx context.Context, dir string, loc *time.Location) (*Store, error) {
	path := filepath.Join(dir, SeedFile)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.InfoContext(ctx, "No seed file, starting empty", "component", "storage", "path", path)
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	txs, rowErrs, err := sources.ReadCSV(f, loc)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	for _, re := range rowErrs {
		slog.WarnContext(ctx, "Skipping seed row", "component", "storage", "path", path, "line", re.Line, "error", re.Err)
	}
	slog.InfoContext(ctx, "Seeded memory store", "component", "storage", "path", path, "transaction_count", len(txs))
	return New(txs...), nil
}

// Append stores the transaction and returns its ID.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	s.dirty = true
	return tx.ID, nil
}

// ListTransactions returns a copy of the account's transactions in insertion order.
func (s *Store) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if accountID == "" || tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Len reports the number of stored transactions across accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Dirty reports whether Append was called since the last save.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// SaveToDir writes every transaction to dir/transactions.csv, replacing
// the file atomically.
func (s *Store) SaveToDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, SeedFile+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := sources.WriteCSV(tmp, s.items); err != nil {
		tmp.Close()
		return fmt.Errorf("write transactions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, SeedFile)); err != nil {
		return fmt.Errorf("replace %s: %w", SeedFile, err)
	}
	s.dirty = false
	return nil
}
