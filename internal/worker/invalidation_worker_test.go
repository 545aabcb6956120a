package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"andamento/internal/amqp"
)

type fakeConsumer struct {
	messages []*amqp.TransactionsChangedMessage
	err      error
}

func (f *fakeConsumer) ConsumeTransactionsChanged(ctx context.Context, handler func(context.Context, *amqp.TransactionsChangedMessage) error) error {
	for _, m := range f.messages {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type recordingInvalidator struct {
	mu       sync.Mutex
	accounts []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accountID)
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.accounts...)
}

func TestInvalidationWorker_Run(t *testing.T) {
	consumer := &fakeConsumer{messages: []*amqp.TransactionsChangedMessage{
		amqp.NewTransactionsChangedMessage("acc-1", 2),
		amqp.NewTransactionsChangedMessage("acc-2", 1),
	}}
	inv := &recordingInvalidator{}
	w := NewInvalidationWorker(consumer, inv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}

	got := inv.seen()
	if len(got) != 2 || got[0] != "acc-1" || got[1] != "acc-2" {
		t.Fatalf("invalidated %v, want [acc-1 acc-2]", got)
	}
}

func TestInvalidationWorker_RunCancelledIsClean(t *testing.T) {
	w := NewInvalidationWorker(&fakeConsumer{}, &recordingInvalidator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("expected nil on cancellation, got %v", err)
	}
}

func TestInvalidationWorker_RunPropagatesConsumerError(t *testing.T) {
	boom := errors.New("broker gone")
	w := NewInvalidationWorker(&fakeConsumer{err: boom}, &recordingInvalidator{})

	if err := w.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestInvalidationWorker_HandleNil(t *testing.T) {
	inv := &recordingInvalidator{}
	w := NewInvalidationWorker(&fakeConsumer{}, inv)

	if err := w.Handle(context.Background(), nil); err != nil {
		t.Fatalf("Handle(nil): %v", err)
	}
	if len(inv.seen()) != 0 {
		t.Fatal("nil message must not invalidate")
	}
}
