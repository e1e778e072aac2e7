package core

import "github.com/shopspring/decimal"

// Totals is an expected/paid/pending triple. Pending may be negative on overpayment.
type Totals struct {
	Expected decimal.Decimal
	Paid     decimal.Decimal
	Pending  decimal.Decimal
}

// NewTotals derives pending from expected and paid.
func NewTotals(expected, paid decimal.Decimal) Totals {
	return Totals{Expected: expected, Paid: paid, Pending: expected.Sub(paid)}
}

// Add returns the element-wise sum of two totals.
func (t Totals) Add(o Totals) Totals {
	return NewTotals(t.Expected.Add(o.Expected), t.Paid.Add(o.Paid))
}
