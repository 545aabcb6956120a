package sources

import (
	"context"

	"andamento/internal/core"
)

// Ports for transaction persistence adapters.
type (
	// TransactionLister returns the already-materialized transactions of an
	// account. An empty accountID lists every account.
	TransactionLister interface {
		ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	}

	// TransactionWriter appends a validated transaction and returns its ID.
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (id string, err error)
	}

	// TransactionSource is a backend that can both list and append.
	TransactionSource interface {
		TransactionLister
		TransactionWriter
	}
)
