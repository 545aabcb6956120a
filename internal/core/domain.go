package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	TransactionType string

	// Transaction is a single income or expense record. Amount is always an
	// unsigned magnitude; Type alone decides whether it adds or subtracts.
	Transaction struct {
		ID          string
		AccountID   string
		Date        time.Time
		Type        TransactionType
		Amount      decimal.Decimal
		Description string
		Category    string
	}

	// ReceiptScan is the payload returned by the external receipt scanner.
	ReceiptScan struct {
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
)

var (
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("unparseable date")
	ErrLongDescription  = errors.New("description too long (max 200 characters)")
)

// ParseTransactionType accepts the canonical tags case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// Validate reports the first reason the record cannot be aggregated.
// Descriptive fields are not checked here.
func (tx Transaction) Validate() error {
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, string(tx.Type))
	}
	if tx.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// IsValidationError reports whether err comes from rejecting the input
// rather than from storing it.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrZeroDate, ErrInvalidType, ErrInvalidAmount, ErrNegativeAmount, ErrEmptyDescription, ErrInvalidDate, ErrLongDescription} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ToTransaction converts a scanned receipt into an expense for the given
// account. Zone-less dates are read in loc, the reporting timezone.
func (r ReceiptScan) ToTransaction(accountID string, loc *time.Location) (Transaction, error) {
	date, err := ParseDateIn(r.Date, loc)
	if err != nil {
		return Transaction{}, err
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return Transaction{}, err
	}
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		return Transaction{}, ErrEmptyDescription
	}
	if len(desc) > 200 {
		return Transaction{}, ErrLongDescription
	}
	return Transaction{
		AccountID:   accountID,
		Date:        date,
		Type:        Expense,
		Amount:      amount,
		Description: desc,
		Category:    strings.TrimSpace(r.Category),
	}, nil
}
