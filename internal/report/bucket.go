package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"andamento/internal/core"
)

// ErrMalformedTransaction marks records excluded from aggregation.
var ErrMalformedTransaction = errors.New("malformed transaction")

// MalformedTransactionError tells which input record was skipped and why.
type MalformedTransactionError struct {
	Index  int
	ID     string
	Reason error
}

func (e *MalformedTransactionError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s at index %d (id %s): %v", ErrMalformedTransaction, e.Index, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s at index %d: %v", ErrMalformedTransaction, e.Index, e.Reason)
}

func (e *MalformedTransactionError) Is(target error) bool {
	return target == ErrMalformedTransaction
}

func (e *MalformedTransactionError) Unwrap() error {
	return e.Reason
}

type malformedJSON struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// MarshalJSON renders Reason as its message. A decoded error keeps the
// message but not the identity of the original sentinel.
func (e *MalformedTransactionError) MarshalJSON() ([]byte, error) {
	v := malformedJSON{Index: e.Index, ID: e.ID}
	if e.Reason != nil {
		v.Reason = e.Reason.Error()
	}
	return json.Marshal(v)
}

func (e *MalformedTransactionError) UnmarshalJSON(data []byte) error {
	var v malformedJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.Index, e.ID = v.Index, v.ID
	if v.Reason != "" {
		e.Reason = errors.New(v.Reason)
	}
	return nil
}

// DayBucket aggregates every transaction of one civil day.
type DayBucket struct {
	Day     civil.Date
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Key is the display label of the bucket, formatted YYYY-MM-DD.
func (b DayBucket) Key() string {
	return b.Day.String()
}

// Net is income minus expense for the day.
func (b DayBucket) Net() decimal.Decimal {
	return b.Income.Sub(b.Expense)
}

// Bucketize filters txs to the window and groups them by civil day in loc.
//
// The result is sorted by day, holds one bucket per day with at least one
// transaction and never contains empty days. Records that fail validation
// are left out and reported in the second return value; they never abort
// the aggregation. txs is not modified.
func Bucketize(txs []core.Transaction, w Window, loc *time.Location) ([]DayBucket, []*MalformedTransactionError) {
	if loc == nil {
		loc = time.UTC
	}
	var skipped []*MalformedTransactionError
	byDay := make(map[civil.Date]*DayBucket)

	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			skipped = append(skipped, &MalformedTransactionError{Index: i, ID: tx.ID, Reason: err})
			continue
		}
		if !w.Contains(tx.Date) {
			continue
		}
		day := civil.DateOf(tx.Date.In(loc))
		b, ok := byDay[day]
		if !ok {
			b = &DayBucket{Day: day, Income: decimal.Zero, Expense: decimal.Zero}
			byDay[day] = b
		}
		switch tx.Type {
		case core.Income:
			b.Income = b.Income.Add(tx.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(tx.Amount)
		}
	}

	buckets := make([]DayBucket, 0, len(byDay))
	for _, b := range byDay {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Day.Before(buckets[j].Day)
	})
	return buckets, skipped
}

// FillGaps returns a dense copy of buckets with zero-valued days inserted.
//
// For bounded windows the series spans From..To. For ALL it starts at the
// first bucket, so an empty ALL report stays empty. buckets must be sorted,
// as Bucketize returns them.
func FillGaps(buckets []DayBucket, w Window) []DayBucket {
	var first civil.Date
	switch {
	case w.Bounded:
		first = w.From
	case len(buckets) > 0:
		first = buckets[0].Day
	default:
		return []DayBucket{}
	}

	dense := make([]DayBucket, 0, w.To.DaysSince(first)+1)
	next := 0
	for day := first; !day.After(w.To); day = day.AddDays(1) {
		if next < len(buckets) && buckets[next].Day == day {
			dense = append(dense, buckets[next])
			next++
			continue
		}
		dense = append(dense, DayBucket{Day: day, Income: decimal.Zero, Expense: decimal.Zero})
	}
	return dense
}
