package evaluation

import (
	"time"

	"github.com/trezcool/recqa/core"
)

// Period selects the evaluations an aggregate is computed over.
type Period string

const (
	PeriodCurrentMonth  Period = "current_month"
	PeriodPreviousMonth Period = "previous_month"
	PeriodLast3Months   Period = "last_3_months"
	PeriodLast6Months   Period = "last_6_months"
	PeriodAll           Period = "all"
)

var Periods = []Period{PeriodCurrentMonth, PeriodPreviousMonth, PeriodLast3Months, PeriodLast6Months, PeriodAll}

// ParsePeriod maps a query value to a Period. An empty value means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	s = core.CleanString(s, true /* lower */)
	if s == "" {
		return PeriodAll, nil
	}
	for _, p := range Periods {
		if Period(s) == p {
			return p, nil
		}
	}
	return "", ErrInvalidPeriod
}

func (p Period) IsValid() bool {
	_, err := ParsePeriod(string(p))
	return err == nil
}

// Window returns the bounds of the period relative to now, in now's location.
// Calendar periods are half-open [from, to); rolling periods are closed [from, to].
// PeriodAll returns zero times.
func (p Period) Window(now time.Time) (from, to time.Time) {
	monthStart := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	}

	switch p {
	case PeriodCurrentMonth:
		from = monthStart(now.Year(), now.Month())
		return from, from.AddDate(0, 1, 0)
	case PeriodPreviousMonth:
		y, m := now.Year(), now.Month()-1
		if m < time.January {
			m = time.December
			y--
		}
		return monthStart(y, m), monthStart(now.Year(), now.Month())
	case PeriodLast3Months:
		return now.AddDate(0, -3, 0), now
	case PeriodLast6Months:
		return now.AddDate(0, -6, 0), now
	}
	return time.Time{}, time.Time{}
}

// Includes reports whether ts falls inside the period's window.
func (p Period) Includes(ts, now time.Time) bool {
	from, to := p.Window(now)
	switch p {
	case PeriodCurrentMonth, PeriodPreviousMonth:
		return !ts.Before(from) && ts.Before(to)
	case PeriodLast3Months, PeriodLast6Months:
		return !ts.Before(from) && !ts.After(to)
	case PeriodAll:
		return true
	}
	return false
}

// FilterByPeriod returns the evaluations created inside the period, in input order.
func FilterByPeriod(evals []Evaluation, period Period, now time.Time) []Evaluation {
	filtered := make([]Evaluation, 0, len(evals))
	for _, ev := range evals {
		if period.Includes(ev.CreatedAt, now) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}
