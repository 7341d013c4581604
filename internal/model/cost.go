package model

import "github.com/rotisserie/eris"

// CostUnit says what a cost amount is charged per.
type CostUnit string

const (
	PerPerson CostUnit = "person"
	PerFamily CostUnit = "family"
	PerFree   CostUnit = "free"
)

// Cost is the admission price of an event.
type Cost struct {
	Amount float64  `json:"amount"`
	Per    CostUnit `json:"per"`
}

// Free is the canonical no-charge cost.
func Free() Cost { return Cost{Amount: 0, Per: PerFree} }

// IsFree reports whether the event has no charge. per=free and amount=0 mean
// the same thing.
func (c Cost) IsFree() bool {
	return c.Per == PerFree || c.Amount == 0
}

// Effective returns the amount cost predicates and sorts compare against.
func (c Cost) Effective() float64 {
	if c.IsFree() {
		return 0
	}
	return c.Amount
}

// Validate checks the unit and sign of the cost.
func (c Cost) Validate() error {
	switch c.Per {
	case PerPerson, PerFamily, PerFree:
	default:
		return eris.Errorf("model: unknown cost unit %q", c.Per)
	}
	if c.Amount < 0 {
		return eris.Errorf("model: negative cost %v", c.Amount)
	}
	return nil
}

// MaxAge is the "no upper bound" age.
const MaxAge = 99

// AgeRange is an inclusive age window in years.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// AllAges is the unconstrained age range.
func AllAges() AgeRange { return AgeRange{Min: 0, Max: MaxAge} }

// Normalize clamps both bounds into [0, 99] and orders them.
func (a AgeRange) Normalize() AgeRange {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > MaxAge {
			return MaxAge
		}
		return v
	}
	lo, hi := clamp(a.Min), clamp(a.Max)
	if lo > hi {
		lo, hi = hi, lo
	}
	return AgeRange{Min: lo, Max: hi}
}

// Overlaps reports whether the two inclusive ranges share an age.
func (a AgeRange) Overlaps(b AgeRange) bool {
	return a.Min <= b.Max && a.Max >= b.Min
}

// Validate checks 0 <= min <= max <= 99.
func (a AgeRange) Validate() error {
	if a.Min < 0 || a.Max > MaxAge || a.Min > a.Max {
		return eris.Errorf("model: invalid age range %d-%d", a.Min, a.Max)
	}
	return nil
}
