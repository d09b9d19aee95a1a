// services/rental/internal/utils/dates.go
package utils

import "time"

// DateOnly returns midnight UTC of t's calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// PeriodKey formats the billing period containing t, e.g. "2024-03".
func PeriodKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParsePeriod accepts "2006-01" or "2006-01-02" and returns the month start.
func ParsePeriod(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return MonthStart(t), nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayInMonth returns the given day of the month, clamped to the month's last day.
func DayInMonth(year int, month time.Month, day int) time.Time {
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isLastDayOfMonth(t time.Time) bool {
	return t.Day() == DaysInMonth(t.Year(), t.Month())
}

// WholeMonthsBetween counts complete calendar months from 'from' to 'to'.
// A partial trailing month is not counted, except that landing on the last
// day of a shorter month completes it (Jan 31 -> Feb 29 is one month).
func WholeMonthsBetween(from, to time.Time) int {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return -WholeMonthsBetween(to, from)
	}

	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() && !isLastDayOfMonth(to) {
		months--
	}
	return months
}

// DaysBetween counts calendar days from 'from' to 'to', ignoring time of day.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}
