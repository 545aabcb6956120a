package report

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Window is an inclusive instant range resolved from a Preset.
//
// From and To are the civil days of Start and End in the report location.
// From is meaningful only when Bounded is true.
type Window struct {
	Preset  Preset
	Start   time.Time
	End     time.Time
	From    civil.Date
	To      civil.Date
	Bounded bool
}

// Resolve turns a preset into a concrete window relative to now.
//
// Bounded presets start at midnight of the day d days before now and end at
// the last instant of now's day. ALL starts at the zero time. All day math
// happens in loc; nil means UTC.
func Resolve(p Preset, now time.Time, loc *time.Location) (Window, error) {
	if !p.Valid() {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidPreset, string(p))
	}
	if loc == nil {
		loc = time.UTC
	}
	today := civil.DateOf(now.In(loc))
	w := Window{
		Preset: p,
		End:    endOfDay(today, loc),
		To:     today,
	}
	if days, ok := p.Days(); ok {
		w.From = today.AddDays(-days)
		w.Start = w.From.In(loc)
		w.Bounded = true
	}
	return w, nil
}

// MustResolve is Resolve for presets known at compile time. It panics on an
// invalid preset.
func MustResolve(p Preset, now time.Time, loc *time.Location) Window {
	w, err := Resolve(p, now, loc)
	if err != nil {
		panic(err)
	}
	return w
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// endOfDay is the last representable instant before the next local midnight.
func endOfDay(d civil.Date, loc *time.Location) time.Time {
	return d.AddDays(1).In(loc).Add(-time.Nanosecond)
}
