// Package session turns a session-start year into the ordered months of an
// academic (or fiscal) session and its absolute date range.
package session

import (
	"fmt"
	"time"
)

// DefaultStartMonth is April: a session runs April(year) through March(year+1).
const DefaultStartMonth = time.April

// Month is one calendar month of a session.
type Month struct {
	Year  int
	Month time.Month
}

// FirstDay returns the first instant of the month in UTC.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Session is a resolved twelve-month window.
type Session struct {
	Year   int
	Months []Month
	Start  time.Time
	End    time.Time
}

// Calendar resolves sessions for a configurable start month.
type Calendar struct {
	StartMonth time.Month
}

// New returns a calendar whose sessions begin in startMonth.
func New(startMonth time.Month) (Calendar, error) {
	if startMonth < time.January || startMonth > time.December {
		return Calendar{}, fmt.Errorf("invalid session start month %d", startMonth)
	}
	return Calendar{StartMonth: startMonth}, nil
}

// Default returns the April–March calendar.
func Default() Calendar {
	return Calendar{StartMonth: DefaultStartMonth}
}

func (c Calendar) startMonth() time.Month {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return DefaultStartMonth
	}
	return c.StartMonth
}

// Session returns the months and date range of the session starting in year.
// End is the last instant of the final month.
func (c Calendar) Session(year int) Session {
	start := time.Date(year, c.startMonth(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]Month, 0, 12)
	for i := 0; i < 12; i++ {
		d := start.AddDate(0, i, 0)
		months = append(months, Month{Year: d.Year(), Month: d.Month()})
	}
	return Session{
		Year:   year,
		Months: months,
		Start:  start,
		End:    start.AddDate(1, 0, 0).Add(-time.Millisecond),
	}
}

// MonthNumbers returns the 1-12 month numbers of a session in order,
// e.g. [4 5 6 7 8 9 10 11 12 1 2 3] for an April start.
func (c Calendar) MonthNumbers() []int {
	out := make([]int, 12)
	for i := range out {
		out[i] = (int(c.startMonth())-1+i)%12 + 1
	}
	return out
}

// YearOf returns the session-start year of the session containing t.
func (c Calendar) YearOf(t time.Time) int {
	t = t.UTC()
	if t.Month() < c.startMonth() {
		return t.Year() - 1
	}
	return t.Year()
}

// Contains reports whether the calendar month (zero-based month0, year)
// falls within the session starting in sessionYear.
func (c Calendar) Contains(sessionYear, year, month0 int) bool {
	if month0 < 0 || month0 > 11 {
		return false
	}
	return c.YearOf(time.Date(year, time.Month(month0+1), 1, 0, 0, 0, 0, time.UTC)) == sessionYear
}
