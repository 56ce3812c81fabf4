package analytics

import (
	"github.com/shopspring/decimal"
)

// Accumulator folds per-station tuples into one all-stations tuple.
// It is a value: Add returns the next state and never mutates the receiver.
//
// Reduction rules:
//   - min/max: extreme of the valid inputs, 0 when none were valid
//   - average: plain sum of the station averages (not divided by station count)
//   - unique count: sum of the non-nil counts when counting is enabled, 0 when
//     nothing contributed; nil when counting is disabled
type Accumulator struct {
	withUniqueListeners bool

	min    decimal.NullDecimal
	max    decimal.NullDecimal
	sum    decimal.Decimal
	unique int64
}

// NewAccumulator returns an empty fold for one bucket.
func NewAccumulator(withUniqueListeners bool) Accumulator {
	return Accumulator{
		withUniqueListeners: withUniqueListeners,
		sum:                 decimal.Zero,
	}
}

// Add folds one station tuple into the accumulator.
func (a Accumulator) Add(t StatTuple) Accumulator {
	if t.Min.Valid && (!a.min.Valid || t.Min.Decimal.LessThan(a.min.Decimal)) {
		a.min = t.Min
	}
	if t.Max.Valid && (!a.max.Valid || t.Max.Decimal.GreaterThan(a.max.Decimal)) {
		a.max = t.Max
	}
	a.sum = a.sum.Add(t.Average)
	if a.withUniqueListeners && t.UniqueCount != nil {
		a.unique += *t.UniqueCount
	}
	return a
}

// Result returns the all-stations tuple.
func (a Accumulator) Result() StatTuple {
	out := StatTuple{
		Min:     zeroIfInvalid(a.min),
		Max:     zeroIfInvalid(a.max),
		Average: a.sum,
	}
	if a.withUniqueListeners {
		out.UniqueCount = Count(a.unique)
	}
	return out
}

// Merge reduces a set of station tuples in one call.
func Merge(tuples []StatTuple, withUniqueListeners bool) StatTuple {
	acc := NewAccumulator(withUniqueListeners)
	for _, t := range tuples {
		acc = acc.Add(t)
	}
	return acc.Result()
}

func zeroIfInvalid(d decimal.NullDecimal) decimal.NullDecimal {
	if d.Valid {
		return d
	}
	return decimal.NewNullDecimal(decimal.Zero)
}
