package income

import "github.com/shopspring/decimal"

// Summary is a point-in-time view of the aggregate.
// Mean is only meaningful when HasData is true.
type Summary struct {
	Mean    decimal.Decimal
	Sum     decimal.Decimal
	Count   int64
	HasData bool
}

// Aggregator keeps a running sum and count of folded income values.
// It has a single owner and is not safe for concurrent use.
type Aggregator struct {
	sum   decimal.Decimal
	count int64
}

// NewAggregator creates an empty Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{sum: decimal.Zero}
}

// Restore seeds the aggregate from a previous run
func (a *Aggregator) Restore(sum decimal.Decimal, count int64) {
	if count < 0 {
		count = 0
	}
	a.sum = sum
	a.count = count
}

// Fold adds a present value to the aggregate. Absent values are ignored.
func (a *Aggregator) Fold(v decimal.NullDecimal) bool {
	if !v.Valid {
		return false
	}
	a.sum = a.sum.Add(v.Decimal)
	a.count++
	return true
}

// Count is the number of folded values
func (a *Aggregator) Count() int64 { return a.count }

// Sum is the running total of folded values
func (a *Aggregator) Sum() decimal.Decimal { return a.sum }

// Summary returns mean and count, signalling no data when nothing was folded
func (a *Aggregator) Summary() Summary {
	if a.count == 0 {
		return Summary{Sum: a.sum}
	}
	return Summary{
		Mean:    a.sum.Div(decimal.NewFromInt(a.count)),
		Sum:     a.sum,
		Count:   a.count,
		HasData: true,
	}
}
