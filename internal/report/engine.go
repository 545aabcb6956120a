// Package report turns a bounded set of transactions into a per-day trend
// series and period totals for a trailing window.
//
// Every computation is a pure function of the transactions, the preset and
// the reference instant. The engine holds no mutable state and is safe for
// concurrent use.
package report

import (
	"time"

	"andamento/internal/core"
)

// Clock supplies the reference instant for Compute.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the process clock.
var SystemClock Clock = ClockFunc(time.Now)

// Report is the outcome of one computation.
type Report struct {
	Preset  Preset
	Window  Window
	Buckets []DayBucket
	Totals  PeriodTotals
	Skipped []*MalformedTransactionError
}

// SkippedCount is the number of malformed records left out.
func (r Report) SkippedCount() int {
	return len(r.Skipped)
}

// Engine computes reports in a single, fixed timezone.
type Engine struct {
	loc   *time.Location
	clock Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the timezone used for both window bounds and day keys.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock replaces the system clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// NewEngine returns an engine working in UTC on the system clock unless
// told otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{loc: time.UTC, clock: SystemClock}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the report timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now is the engine clock's current instant.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Compute builds the report for preset p relative to the engine clock.
func (e *Engine) Compute(txs []core.Transaction, p Preset) (Report, error) {
	return e.ComputeAt(txs, p, e.clock.Now())
}

// ComputeAt builds the report for preset p relative to now.
func (e *Engine) ComputeAt(txs []core.Transaction, p Preset, now time.Time) (Report, error) {
	w, err := Resolve(p, now, e.loc)
	if err != nil {
		return Report{}, err
	}
	buckets, skipped := Bucketize(txs, w, e.loc)
	return Report{
		Preset:  p,
		Window:  w,
		Buckets: buckets,
		Totals:  Summarize(buckets),
		Skipped: skipped,
	}, nil
}
