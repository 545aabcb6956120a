package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"andamento/internal/core"
)

// TransactionService writes transactions and tells readers about it:
// local caches are invalidated directly, other processes through the
// publisher.
type TransactionService struct {
	writer      TransactionWriter
	publisher   ChangePublisher
	invalidator Invalidator
	loc         *time.Location
}

// NewTransactionService builds the write side. loc is the reporting
// timezone used for receipt dates without a zone; nil means UTC.
func NewTransactionService(writer TransactionWriter, publisher ChangePublisher, invalidator Invalidator, loc *time.Location) *TransactionService {
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionService{
		writer:      writer,
		publisher:   publisher,
		invalidator: invalidator,
		loc:         loc,
	}
}

// Record validates and stores one transaction.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	id, err := s.writer.Append(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	s.notify(ctx, tx.AccountID, 1)
	return id, nil
}

// RecordReceipt stores a scanned receipt as an expense of accountID.
func (s *TransactionService) RecordReceipt(ctx context.Context, accountID string, scan core.ReceiptScan) (string, error) {
	tx, err := scan.ToTransaction(accountID, s.loc)
	if err != nil {
		return "", err
	}
	return s.Record(ctx, tx)
}

// ImportResult summarizes a batch import.
type ImportResult struct {
	Appended   int
	Failed     []error
	ByAccount  map[string]int
	IDs        []string
	Incomplete bool
}

// RecordBatch stores each valid transaction and notifies once per touched
// account. Invalid records are reported in Failed and skipped. A cancelled
// context stops the batch; what was already written is still announced.
func (s *TransactionService) RecordBatch(ctx context.Context, txs []core.Transaction) ImportResult {
	res := ImportResult{ByAccount: map[string]int{}}
	for i, tx := range txs {
		if ctx.Err() != nil {
			res.Incomplete = true
			break
		}
		if err := tx.Validate(); err != nil {
			res.Failed = append(res.Failed, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		id, err := s.writer.Append(ctx, tx)
		if err != nil {
			res.Failed = append(res.Failed, fmt.Errorf("record %d: save transaction: %w", i, err))
			continue
		}
		res.Appended++
		res.ByAccount[tx.AccountID]++
		res.IDs = append(res.IDs, id)
	}

	// announce with a context that survives cancellation of the batch
	notifyCtx := context.WithoutCancel(ctx)
	for account, n := range res.ByAccount {
		s.notify(notifyCtx, account, n)
	}
	return res
}

// Err joins the per-record failures, or returns nil.
func (r ImportResult) Err() error {
	return errors.Join(r.Failed...)
}

func (s *TransactionService) notify(ctx context.Context, accountID string, count int) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, accountID)
	}
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change message", "component", "amqp", "account_id", accountID)
		return
	}
	// the write already succeeded; a lost event only delays other readers
	if err := s.publisher.PublishTransactionsChanged(ctx, accountID, count); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transactions changed message",
			"component", "amqp",
			"account_id", accountID,
			"transaction_count", count,
			"error", err)
	}
}
