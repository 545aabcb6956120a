package report

import "github.com/shopspring/decimal"

// PeriodTotals holds the window-wide income and expense. Net is derived.
type PeriodTotals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Net is income minus expense over the whole period.
func (t PeriodTotals) Net() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// Summarize adds up the buckets. An empty input gives zero totals.
func Summarize(buckets []DayBucket) PeriodTotals {
	totals := PeriodTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, b := range buckets {
		totals.Income = totals.Income.Add(b.Income)
		totals.Expense = totals.Expense.Add(b.Expense)
	}
	return totals
}
