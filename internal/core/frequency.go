package core

import (
	"errors"
	"strings"
)

const (
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	SemiAnnual Frequency = "semi-annual"
	Yearly     Frequency = "yearly"
)

// Frequency is the cadence at which a stated amount recurs.
type Frequency string

var ErrInvalidFrequency = errors.New("invalid frequency")

// Frequencies lists the accepted values in display order.
var Frequencies = []Frequency{Monthly, Quarterly, SemiAnnual, Yearly}

// ParseFrequency accepts the persisted literal values only.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.TrimSpace(s))
	if !f.Valid() {
		return "", ErrInvalidFrequency
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Quarterly, SemiAnnual, Yearly:
		return true
	}
	return false
}

// Divisor is the number of months one payment covers.
// Unknown values fall back to 1 so reporting never fails on bad rows.
func (f Frequency) Divisor() int64 {
	switch f {
	case Quarterly:
		return 3
	case SemiAnnual:
		return 6
	case Yearly:
		return 12
	}
	return 1
}

// Occurrences is how many payments fall in one year.
func (f Frequency) Occurrences() int {
	switch f {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case SemiAnnual:
		return 2
	case Yearly:
		return 1
	}
	return 0
}

// Label returns the Danish display name.
func (f Frequency) Label() string {
	switch f {
	case Monthly:
		return "Månedlig"
	case Quarterly:
		return "Kvartalsvis"
	case SemiAnnual:
		return "Halvårlig"
	case Yearly:
		return "Årlig"
	}
	return string(f)
}
