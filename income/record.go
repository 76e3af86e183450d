package income

import "github.com/shopspring/decimal"

// gweiPerETH converts API gwei amounts to ETH
var gweiPerETH = decimal.New(1, 9)

// Record is one validator's income per window, in ETH.
// An absent amount means the validator had no income data for that window.
type Record struct {
	Index      int64
	Income1d   decimal.NullDecimal
	Income7d   decimal.NullDecimal
	Income31d  decimal.NullDecimal
	Income365d decimal.NullDecimal
}

// Income returns the amount for the given window
func (r Record) Income(d Duration) decimal.NullDecimal {
	switch d {
	case Day1:
		return r.Income1d
	case Days7:
		return r.Income7d
	case Days31:
		return r.Income31d
	case Days365:
		return r.Income365d
	}
	return decimal.NullDecimal{}
}

// FromGwei converts an optional gwei amount to ETH
func FromGwei(gwei decimal.NullDecimal) decimal.NullDecimal {
	if !gwei.Valid {
		return gwei
	}
	return decimal.NewNullDecimal(gwei.Decimal.Div(gweiPerETH))
}

// Sample is a single folded (validator, amount) pair kept for the raw dump
type Sample struct {
	Index  int64           `json:"index"`
	Income decimal.Decimal `json:"income"`
}
