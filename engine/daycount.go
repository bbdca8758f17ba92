/*
daycount.go - Calendar conventions and repayment period boundaries

PURPOSE:
  Encapsulates how time turns into interest: day-count conventions translate
  date spans into rate fractions, and the PeriodGenerator collaborator turns
  loan terms into (from, due) period boundaries.

CONVENTIONS:
  DaysInMonth ACTUAL:  a January period spans 31 days, February 28/29
  DaysInMonth DAYS_30: every month counts as 30 days
  DaysInYear  ACTUAL / DAYS_360 / DAYS_365: denominator for daily rates

PARTIAL PERIODS:
  When interest accrues for only part of a period (disbursement mid-period,
  payoff mid-period), the full periodic rate is scaled by
  days-elapsed / days-in-period under the configured convention.
*/
package engine

import "time"

// =============================================================================
// DAY-COUNT CONVENTIONS
// =============================================================================

type DaysInMonthType string

const (
	DaysInMonthActual DaysInMonthType = "ACTUAL"
	DaysInMonth30     DaysInMonthType = "DAYS_30"
)

type DaysInYearType string

const (
	DaysInYearActual DaysInYearType = "ACTUAL"
	DaysInYear360    DaysInYearType = "DAYS_360"
	DaysInYear365    DaysInYearType = "DAYS_365"
)

// RepaymentUnit is the unit of the repayment frequency.
type RepaymentUnit string

const (
	RepayMonthly RepaymentUnit = "MONTHS"
	RepayWeekly  RepaymentUnit = "WEEKS"
	RepayDaily   RepaymentUnit = "DAYS"
)

// PeriodsPerYear returns how many repayment periods of the given unit and
// interval fit in a year. The nominal annual rate is divided by this to get
// the full-period rate.
func PeriodsPerYear(unit RepaymentUnit, every int) int {
	if every <= 0 {
		every = 1
	}
	switch unit {
	case RepayWeekly:
		return 52 / every
	case RepayDaily:
		return 365 / every
	default:
		return 12 / every
	}
}

// DaysBetween counts whole days from a to b at day granularity.
func DaysBetween(a, b time.Time) int {
	a = atMidnight(a)
	b = atMidnight(b)
	return int(b.Sub(a).Hours() / 24)
}

func atMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// periodDays returns the day count of [from, due) under the days-in-month
// convention.
func periodDays(from, due time.Time, dim DaysInMonthType) int {
	if dim == DaysInMonth30 {
		// 30 days per whole month plus the day remainder.
		months := 0
		cursor := from
		for {
			next := cursor.AddDate(0, 1, 0)
			if next.After(due) {
				break
			}
			months++
			cursor = next
		}
		return months*30 + DaysBetween(cursor, due)
	}
	return DaysBetween(from, due)
}

// =============================================================================
// REPAYMENT PERIODS
// =============================================================================

// RepaymentPeriod is one period boundary pair produced by a PeriodGenerator.
// Interest for the period accrues over [From, Due).
type RepaymentPeriod struct {
	From time.Time
	Due  time.Time
}

// Holiday is an opaque business-calendar entry passed through to the period
// generator. The engine itself never interprets holidays.
type Holiday struct {
	Date time.Time
	Name string
}

// PeriodGenerator supplies period boundaries for a schedule. It is an
// injected collaborator: implementations may consult business calendars,
// holiday tables or custom seasonal schedules.
type PeriodGenerator interface {
	GenerateRepaymentPeriods(mc MathContext, terms LoanTerms, holidays []Holiday) ([]RepaymentPeriod, error)
}

// CalendarPeriodGenerator is the default generator: contiguous periods of
// the configured frequency starting at the terms' first period start, with
// due dates pushed off any supplied holiday.
type CalendarPeriodGenerator struct{}

func (CalendarPeriodGenerator) GenerateRepaymentPeriods(_ MathContext, terms LoanTerms, holidays []Holiday) ([]RepaymentPeriod, error) {
	if terms.NumberOfRepayments <= 0 {
		return nil, &TermsError{Field: "numberOfRepayments", Reason: "must be positive"}
	}
	periods := make([]RepaymentPeriod, 0, terms.NumberOfRepayments)
	from := atMidnight(terms.FirstPeriodStart)
	for i := 0; i < terms.NumberOfRepayments; i++ {
		due := advance(from, terms.RepaymentUnit, terms.RepayEvery)
		adjusted := adjustForHolidays(due, holidays)
		periods = append(periods, RepaymentPeriod{From: from, Due: adjusted})
		from = due
	}
	return periods, nil
}

func advance(t time.Time, unit RepaymentUnit, every int) time.Time {
	if every <= 0 {
		every = 1
	}
	switch unit {
	case RepayWeekly:
		return t.AddDate(0, 0, 7*every)
	case RepayDaily:
		return t.AddDate(0, 0, every)
	default:
		return t.AddDate(0, every, 0)
	}
}

func adjustForHolidays(due time.Time, holidays []Holiday) time.Time {
	for bumped := true; bumped; {
		bumped = false
		for _, h := range holidays {
			if atMidnight(h.Date).Equal(atMidnight(due)) {
				due = due.AddDate(0, 0, 1)
				bumped = true
			}
		}
	}
	return due
}
