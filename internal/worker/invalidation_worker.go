package worker

import (
	"context"
	"errors"
	"log/slog"

	"andamento/internal/amqp"
)

// Consumer delivers TransactionsChanged messages until ctx is done
type Consumer interface {
	ConsumeTransactionsChanged(ctx context.Context, handler func(context.Context, *amqp.TransactionsChangedMessage) error) error
}

// Invalidator drops cached data for an account
type Invalidator interface {
	Invalidate(ctx context.Context, accountID string)
}

// InvalidationWorker keeps the report caches of this process in step with
// writes made by other processes.
type InvalidationWorker struct {
	consumer    Consumer
	invalidator Invalidator
}

func NewInvalidationWorker(consumer Consumer, invalidator Invalidator) *InvalidationWorker {
	return &InvalidationWorker{
		consumer:    consumer,
		invalidator: invalidator,
	}
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *InvalidationWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting invalidation worker", "component", "worker")

	err := w.consumer.ConsumeTransactionsChanged(ctx, w.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.InfoContext(ctx, "Invalidation worker stopped", "component", "worker")
	return nil
}

// Handle invalidates the account named by msg
func (w *InvalidationWorker) Handle(ctx context.Context, msg *amqp.TransactionsChangedMessage) error {
	if msg == nil {
		return nil
	}

	slog.DebugContext(ctx, "Processing transactions changed message",
		"component", "worker",
		"account_id", msg.AccountID,
		"transaction_count", msg.Count,
		"timestamp", msg.Timestamp)

	w.invalidator.Invalidate(ctx, msg.AccountID)
	return nil
}
