package services

import (
	"context"

	"andamento/internal/core"
)

// Ports the services depend on. sources and amqp implementations satisfy
// them structurally.
//
//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks -source=interface.go
type (
	TransactionLister interface {
		ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (string, error)
	}

	// ChangePublisher announces writes to other processes.
	ChangePublisher interface {
		PublishTransactionsChanged(ctx context.Context, accountID string, count int) error
	}

	// Invalidator drops cached data derived from an account's transactions.
	Invalidator interface {
		Invalidate(ctx context.Context, accountID string)
	}
)
