package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWholeMonthsBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"two full months", date(2024, 1, 1), date(2024, 3, 1), 2},
		{"partial month", date(2024, 1, 15), date(2024, 2, 14), 0},
		{"exact month", date(2024, 1, 15), date(2024, 2, 15), 1},
		{"end of short month", date(2024, 1, 31), date(2024, 2, 29), 1},
		{"across year", date(2023, 11, 1), date(2024, 2, 1), 3},
		{"same day", date(2024, 5, 5), date(2024, 5, 5), 0},
		{"reversed", date(2024, 3, 1), date(2024, 1, 1), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WholeMonthsBetween(tt.from, tt.to))
		})
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	to := time.Date(2024, 1, 9, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 8, DaysBetween(from, to))
	assert.Equal(t, -8, DaysBetween(to, from))
}

func TestDayInMonthClamps(t *testing.T) {
	assert.Equal(t, date(2024, 2, 29), DayInMonth(2024, time.February, 31))
	assert.Equal(t, date(2023, 2, 28), DayInMonth(2023, time.February, 30))
	assert.Equal(t, date(2024, 4, 15), DayInMonth(2024, time.April, 15))
	assert.Equal(t, date(2024, 4, 1), DayInMonth(2024, time.April, 0))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), p)

	p, err = ParsePeriod("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), p)
	assert.Equal(t, "2024-03", PeriodKey(p))

	_, err = ParsePeriod("March 2024")
	assert.Error(t, err)
}

func TestMonthStartAndDateOnly(t *testing.T) {
	ts := time.Date(2024, 7, 19, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, date(2024, 7, 1), MonthStart(ts))
	assert.Equal(t, date(2024, 7, 19), DateOnly(ts))
	assert.Equal(t, 31, DaysInMonth(2024, time.July))
}
