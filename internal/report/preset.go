package report

import (
	"errors"
	"fmt"
	"strings"
)

// Preset names a trailing report window.
type Preset string

const (
	Preset7D  Preset = "7D"
	Preset1M  Preset = "1M"
	Preset3M  Preset = "3M"
	Preset6M  Preset = "6M"
	PresetAll Preset = "ALL"
)

// ErrInvalidPreset is returned for keys outside the closed preset set.
var ErrInvalidPreset = errors.New("invalid preset")

// presetDays holds the lookback of bounded presets; ALL has no entry.
var presetDays = map[Preset]int{
	Preset7D: 7,
	Preset1M: 30,
	Preset3M: 90,
	Preset6M: 180,
}

// Presets returns every preset from the shortest lookback to ALL.
func Presets() []Preset {
	return []Preset{Preset7D, Preset1M, Preset3M, Preset6M, PresetAll}
}

// ParsePreset maps a user supplied key to a Preset, ignoring case and spaces.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPreset, s)
	}
	return p, nil
}

// Valid reports whether p belongs to the closed preset set.
func (p Preset) Valid() bool {
	if p == PresetAll {
		return true
	}
	_, ok := presetDays[p]
	return ok
}

// Days returns the lookback in days. ok is false for ALL and for invalid presets.
func (p Preset) Days() (days int, ok bool) {
	days, ok = presetDays[p]
	return days, ok
}

func (p Preset) String() string {
	return string(p)
}
