package report

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andamento/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func scenarioTransactions() []core.Transaction {
	return []core.Transaction{
		{Date: utcDay(2024, 1, 1), Type: core.Income, Amount: dec("100")},
		{Date: utcDay(2024, 1, 1), Type: core.Expense, Amount: dec("40")},
		{Date: utcDay(2024, 1, 3), Type: core.Expense, Amount: dec("10")},
	}
}

func fixedEngine(now time.Time, loc *time.Location) *Engine {
	return NewEngine(WithLocation(loc), WithClock(ClockFunc(func() time.Time { return now })))
}

func TestComputeAllScenario(t *testing.T) {
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)

	r, err := e.Compute(scenarioTransactions(), PresetAll)
	require.NoError(t, err)

	require.Len(t, r.Buckets, 2)
	assert.Equal(t, "2024-01-01", r.Buckets[0].Key())
	assert.True(t, r.Buckets[0].Income.Equal(dec("100")))
	assert.True(t, r.Buckets[0].Expense.Equal(dec("40")))
	assert.True(t, r.Buckets[0].Net().Equal(dec("60")))
	assert.Equal(t, "2024-01-03", r.Buckets[1].Key())
	assert.True(t, r.Buckets[1].Income.IsZero())
	assert.True(t, r.Buckets[1].Expense.Equal(dec("10")))

	assert.True(t, r.Totals.Income.Equal(dec("100")))
	assert.True(t, r.Totals.Expense.Equal(dec("50")))
	assert.True(t, r.Totals.Net().Equal(dec("50")))
	assert.Zero(t, r.SkippedCount())
}

func TestCompute7DScenario(t *testing.T) {
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)

	r, err := e.Compute(scenarioTransactions(), Preset7D)
	require.NoError(t, err)

	require.Len(t, r.Buckets, 1)
	assert.Equal(t, "2024-01-03", r.Buckets[0].Key())
	assert.True(t, r.Buckets[0].Income.IsZero())
	assert.True(t, r.Buckets[0].Expense.Equal(dec("10")))
	assert.True(t, r.Totals.Income.IsZero())
	assert.True(t, r.Totals.Expense.Equal(dec("10")))
}

func TestComputeInvalidPreset(t *testing.T) {
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)
	_, err := e.Compute(scenarioTransactions(), Preset("5D"))
	assert.True(t, errors.Is(err, ErrInvalidPreset))
}

func TestComputeEmptyInput(t *testing.T) {
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)
	for _, p := range Presets() {
		r, err := e.Compute(nil, p)
		require.NoError(t, err)
		assert.Empty(t, r.Buckets, "%s buckets", p)
		assert.True(t, r.Totals.Income.IsZero(), "%s income", p)
		assert.True(t, r.Totals.Expense.IsZero(), "%s expense", p)
	}
}

func TestComputeAllOutsideWindow(t *testing.T) {
	e := fixedEngine(utcDay(2024, 6, 1), time.UTC)
	r, err := e.Compute(scenarioTransactions(), Preset7D)
	require.NoError(t, err)
	assert.Empty(t, r.Buckets)
}

func TestBoundaryEndOfDayIncluded(t *testing.T) {
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	w := MustResolve(Preset7D, now, time.UTC)
	txs := []core.Transaction{
		{Date: w.End, Type: core.Income, Amount: dec("5")},
		{Date: w.Start, Type: core.Expense, Amount: dec("3")},
		{Date: w.Start.Add(-time.Nanosecond), Type: core.Expense, Amount: dec("99")},
		{Date: w.End.Add(time.Nanosecond), Type: core.Income, Amount: dec("99")},
	}

	buckets, skipped := Bucketize(txs, w, time.UTC)
	assert.Empty(t, skipped)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-01-03", buckets[0].Key())
	assert.True(t, buckets[0].Expense.Equal(dec("3")))
	assert.Equal(t, "2024-01-10", buckets[1].Key())
	assert.True(t, buckets[1].Income.Equal(dec("5")))
}

func TestBucketizeSumsSameDayDuplicates(t *testing.T) {
	at := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{Date: at, Type: core.Expense, Amount: dec("1.10")},
		{Date: at, Type: core.Expense, Amount: dec("1.10")},
		{Date: at.Add(11 * time.Hour), Type: core.Expense, Amount: dec("0.80")},
	}
	buckets, _ := Bucketize(txs, MustResolve(PresetAll, at, time.UTC), time.UTC)
	require.Len(t, buckets, 1)
	assert.True(t, buckets[0].Expense.Equal(dec("3")))
}

func TestBucketizeSkipsMalformed(t *testing.T) {
	day := utcDay(2024, 1, 2)
	txs := []core.Transaction{
		{ID: "ok", Date: day, Type: core.Income, Amount: dec("10")},
		{ID: "neg", Date: day, Type: core.Expense, Amount: dec("-1")},
		{ID: "nodate", Type: core.Expense, Amount: dec("1")},
		{ID: "type", Date: day, Type: "REFUND", Amount: dec("1")},
	}
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)

	r, err := e.Compute(txs, PresetAll)
	require.NoError(t, err)

	require.Len(t, r.Buckets, 1)
	assert.True(t, r.Totals.Income.Equal(dec("10")))
	assert.True(t, r.Totals.Expense.IsZero())
	require.Equal(t, 3, r.SkippedCount())
	assert.Equal(t, 1, r.Skipped[0].Index)
	assert.Equal(t, "neg", r.Skipped[0].ID)
	assert.ErrorIs(t, r.Skipped[0], ErrMalformedTransaction)
	assert.ErrorIs(t, r.Skipped[0], core.ErrNegativeAmount)
	assert.ErrorIs(t, r.Skipped[1], core.ErrZeroDate)
	assert.ErrorIs(t, r.Skipped[2], core.ErrInvalidType)
}

func TestBucketizeDoesNotMutateInput(t *testing.T) {
	txs := scenarioTransactions()
	txs[0], txs[2] = txs[2], txs[0]
	before := append([]core.Transaction(nil), txs...)

	_, _ = Bucketize(txs, MustResolve(PresetAll, utcDay(2024, 1, 10), time.UTC), time.UTC)
	assert.Equal(t, before, txs)
}

// Timestamps near midnight must land on the same day in the resolver and the
// bucketizer.
func TestNearMidnightUsesReportLocation(t *testing.T) {
	cet := time.FixedZone("CET", 60*60)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, cet)
	txs := []core.Transaction{
		// 2024-01-03 00:30 CET, first minute-ish of the window.
		{Date: time.Date(2024, 1, 2, 23, 30, 0, 0, time.UTC), Type: core.Expense, Amount: dec("7")},
		// 2024-01-02 23:30 CET, the day before the window.
		{Date: time.Date(2024, 1, 2, 22, 30, 0, 0, time.UTC), Type: core.Expense, Amount: dec("100")},
		// 2024-01-10 23:59 CET, last minute of the window.
		{Date: time.Date(2024, 1, 10, 22, 59, 0, 0, time.UTC), Type: core.Income, Amount: dec("2")},
	}
	r, err := fixedEngine(now, cet).Compute(txs, Preset7D)
	require.NoError(t, err)

	require.Len(t, r.Buckets, 2)
	assert.Equal(t, "2024-01-03", r.Buckets[0].Key())
	assert.True(t, r.Buckets[0].Expense.Equal(dec("7")))
	assert.Equal(t, "2024-01-10", r.Buckets[1].Key())
	assert.True(t, r.Buckets[1].Income.Equal(dec("2")))

	utc, err := fixedEngine(now, time.UTC).Compute(txs, PresetAll)
	require.NoError(t, err)
	require.Len(t, utc.Buckets, 2)
	assert.Equal(t, "2024-01-02", utc.Buckets[0].Key())
	assert.True(t, utc.Buckets[0].Expense.Equal(dec("107")))
}

func randomTransactions(r *rand.Rand, n int, base time.Time) []core.Transaction {
	txs := make([]core.Transaction, n)
	for i := range txs {
		typ := core.Income
		if r.Intn(2) == 0 {
			typ = core.Expense
		}
		offset := time.Duration(r.Int63n(int64(400 * 24 * time.Hour)))
		txs[i] = core.Transaction{
			Date:   base.Add(-offset),
			Type:   typ,
			Amount: decimal.New(r.Int63n(100000), -2),
		}
	}
	return txs
}

func TestReportProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	now := time.Date(2024, 5, 20, 18, 45, 0, 0, time.UTC)
	locs := []*time.Location{time.UTC, time.FixedZone("PST", -8*60*60), time.FixedZone("IST", 5*60*60+30*60)}

	for round := 0; round < 25; round++ {
		txs := randomTransactions(rng, rng.Intn(300), now)
		loc := locs[round%len(locs)]
		e := fixedEngine(now, loc)

		all, err := e.Compute(txs, PresetAll)
		require.NoError(t, err)
		allDays := map[string]bool{}
		for _, b := range all.Buckets {
			allDays[b.Key()] = true
		}

		for _, p := range Presets() {
			r, err := e.Compute(txs, p)
			require.NoError(t, err)

			for i := 1; i < len(r.Buckets); i++ {
				require.True(t, r.Buckets[i-1].Day.Before(r.Buckets[i].Day), "%s not strictly ascending", p)
			}

			income, expense := decimal.Zero, decimal.Zero
			for _, b := range r.Buckets {
				income = income.Add(b.Income)
				expense = expense.Add(b.Expense)
				require.True(t, allDays[b.Key()], "%s day %s missing from ALL", p, b.Key())
			}
			require.True(t, income.Equal(r.Totals.Income), "%s income", p)
			require.True(t, expense.Equal(r.Totals.Expense), "%s expense", p)

			var want decimal.Decimal
			for _, tx := range txs {
				if r.Window.Contains(tx.Date) {
					want = want.Add(tx.Amount)
				}
			}
			require.True(t, want.Equal(r.Totals.Income.Add(r.Totals.Expense)), "%s filtered total", p)
		}
	}
}

func TestBucketOrderIndependentOfInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := utcDay(2024, 3, 1)
	txs := randomTransactions(rng, 200, now)
	e := fixedEngine(now, time.UTC)

	first, err := e.Compute(txs, Preset6M)
	require.NoError(t, err)

	shuffled := append([]core.Transaction(nil), txs...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second, err := e.Compute(shuffled, Preset6M)
	require.NoError(t, err)

	require.Equal(t, len(first.Buckets), len(second.Buckets))
	for i := range first.Buckets {
		assert.Equal(t, first.Buckets[i].Day, second.Buckets[i].Day)
		assert.True(t, first.Buckets[i].Income.Equal(second.Buckets[i].Income))
		assert.True(t, first.Buckets[i].Expense.Equal(second.Buckets[i].Expense))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	totals := Summarize(nil)
	assert.True(t, totals.Income.IsZero())
	assert.True(t, totals.Expense.IsZero())
	assert.True(t, totals.Net().IsZero())
}

func TestFillGaps(t *testing.T) {
	now := utcDay(2024, 1, 10)

	w := MustResolve(Preset7D, now, time.UTC)
	buckets, _ := Bucketize(scenarioTransactions(), w, time.UTC)
	dense := FillGaps(buckets, w)
	require.Len(t, dense, 8)
	assert.Equal(t, "2024-01-03", dense[0].Key())
	assert.True(t, dense[0].Expense.Equal(dec("10")))
	assert.Equal(t, "2024-01-10", dense[7].Key())
	for _, b := range dense[1:] {
		assert.True(t, b.Income.IsZero() && b.Expense.IsZero(), "%s should be empty", b.Key())
	}

	all := MustResolve(PresetAll, now, time.UTC)
	buckets, _ = Bucketize(scenarioTransactions(), all, time.UTC)
	dense = FillGaps(buckets, all)
	require.Len(t, dense, 10)
	assert.Equal(t, "2024-01-01", dense[0].Key())
	assert.Equal(t, "2024-01-02", dense[1].Key())
	assert.True(t, Summarize(dense).Expense.Equal(dec("50")))

	assert.Empty(t, FillGaps(nil, all))
	assert.Len(t, FillGaps(nil, w), 8)
}

func TestReportSurvivesJSON(t *testing.T) {
	txs := append(scenarioTransactions(), core.Transaction{ID: "bad", Date: utcDay(2024, 1, 2), Type: core.Expense, Amount: dec("-3")})
	e := fixedEngine(utcDay(2024, 1, 10), time.UTC)

	r, err := e.Compute(txs, Preset1M)
	require.NoError(t, err)

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))

	assert.Equal(t, r.Preset, back.Preset)
	assert.True(t, r.Window.Start.Equal(back.Window.Start))
	assert.True(t, r.Window.End.Equal(back.Window.End))
	assert.Equal(t, r.Window.From, back.Window.From)
	require.Len(t, back.Buckets, len(r.Buckets))
	for i := range r.Buckets {
		assert.Equal(t, r.Buckets[i].Day, back.Buckets[i].Day)
		assert.True(t, r.Buckets[i].Income.Equal(back.Buckets[i].Income))
		assert.True(t, r.Buckets[i].Expense.Equal(back.Buckets[i].Expense))
	}
	assert.True(t, r.Totals.Net().Equal(back.Totals.Net()))
	require.Len(t, back.Skipped, 1)
	assert.Equal(t, "bad", back.Skipped[0].ID)
	assert.Equal(t, r.Skipped[0].Reason.Error(), back.Skipped[0].Reason.Error())
	assert.ErrorIs(t, back.Skipped[0], ErrMalformedTransaction)
}
