// Package core provides the domain types shared by the ledger, the store and the archive.
//
// This file contains amount parsing helpers. Amounts are decimal values so that
// fee totals and pending balances never accumulate float rounding drift.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a decimal amount. Both dot (12.34) and comma (12,34)
// separators are accepted; thousands separators are not.
//
// Examples:
//
//	ParseAmount("2000")    -> 2000
//	ParseAmount("12,50")   -> 12.5
//	ParseAmount("-300.25") -> -300.25
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// SumAmounts adds the amounts of the given line items.
func SumAmounts(items []Structure) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
