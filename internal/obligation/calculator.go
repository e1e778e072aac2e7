// Package obligation computes what a member is expected to pay (or be paid)
// for a session under a group's billing policy. Results are recomputed on
// every call and never stored.
package obligation

import (
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/session"
)

// Result is the expected obligation of one member for one session.
type Result struct {
	MonthsActive   int
	AmountPerMonth decimal.Decimal
	Expected       decimal.Decimal
}

type Calculator struct {
	calendar session.Calendar
}

func NewCalculator(cal session.Calendar) *Calculator {
	return &Calculator{calendar: cal}
}

// ComputeExpected returns months active, the resolved monthly amount and
// their product for the member in the session starting in sessionYear.
func (c *Calculator) ComputeExpected(group core.Group, member core.Member, sessionYear int, st core.StructureType) Result {
	amount := ResolveAmount(group, member, st)
	months := c.MonthsActive(member.JoiningDate, sessionYear)
	return Result{
		MonthsActive:   months,
		AmountPerMonth: amount,
		Expected:       amount.Mul(decimal.NewFromInt(int64(months))),
	}
}

// MonthsActive counts the session months whose first day lies within
// [max(joiningDate, sessionStart), sessionEnd]. The joining date is
// normalized to the first of its month so the joining month is billed.
func (c *Calculator) MonthsActive(joiningDate *time.Time, sessionYear int) int {
	s := c.calendar.Session(sessionYear)
	effectiveStart := s.Start
	if joiningDate != nil && !joiningDate.IsZero() {
		j := joiningDate.UTC()
		joinMonth := time.Date(j.Year(), j.Month(), 1, 0, 0, 0, 0, time.UTC)
		if joinMonth.After(effectiveStart) {
			effectiveStart = joinMonth
		}
	}

	count := 0
	for _, m := range s.Months {
		first := m.FirstDay()
		if !first.Before(effectiveStart) && !first.After(s.End) {
			count++
		}
	}
	return count
}

// ResolveAmount applies the billing-resolution rule for the structure type:
// Group mode uses the group line items if any, else the flat group amount;
// Member mode uses the member line items if any, else the member override.
// A group whose type excludes the structure type resolves to zero.
func ResolveAmount(group core.Group, member core.Member, st core.StructureType) decimal.Decimal {
	if !group.Type.Includes(st) {
		return decimal.Zero
	}
	switch group.ModeFor(st) {
	case core.ModeGroup:
		if items := group.ComponentsFor(st); len(items) > 0 {
			return core.SumAmounts(items)
		}
		return group.DefaultFor(st)
	case core.ModeMember:
		if items := member.ComponentsFor(st); len(items) > 0 {
			return core.SumAmounts(items)
		}
		if custom := member.CustomFor(st); custom.Valid {
			return custom.Decimal
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}
