package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestComputeBooking(t *testing.T) {
	q := ComputeBooking(dec("500000"), day(2024, 1, 1), day(2024, 3, 1), dec("0.10"))

	assert.Equal(t, 2, q.Months)
	assertDecimal(t, "1000000", q.Subtotal)
	assertDecimal(t, "100000", q.ServiceFee)
	assertDecimal(t, "1100000", q.TotalAmount)
	assertDecimal(t, "0.1", q.CommissionRate)
}

func TestComputeBookingShortStayBillsOneMonth(t *testing.T) {
	q := ComputeBooking(dec("750.50"), day(2024, 1, 1), day(2024, 1, 10), dec("0.125"))

	assert.Equal(t, 1, q.Months)
	assertDecimal(t, "750.50", q.Subtotal)
	// 93.8125 rounds half away from zero
	assertDecimal(t, "93.81", q.ServiceFee)
	assertDecimal(t, "844.31", q.TotalAmount)
}

func TestComputeBookingIsDeterministic(t *testing.T) {
	a := ComputeBooking(dec("1234.56"), day(2024, 1, 31), day(2024, 6, 30), dec("0.1"))
	b := ComputeBooking(dec("1234.56"), day(2024, 1, 31), day(2024, 6, 30), dec("0.1"))
	assert.Equal(t, a.Months, b.Months)
	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
	assert.Equal(t, 5, a.Months)
}

func TestQuoteApply(t *testing.T) {
	q := ComputeBooking(dec("500000"), day(2024, 1, 1), day(2024, 3, 1), dec("0.10"))
	b := &Booking{}
	q.Apply(b)

	assert.Equal(t, 2, b.Months)
	assertDecimal(t, "1100000", b.TotalAmount)
	assertDecimal(t, "100000", b.ServiceFee)
}

func TestCanCancel(t *testing.T) {
	today := day(2024, 2, 1)

	open := &Booking{Status: BookingPending, CheckIn: day(2024, 2, 9)}
	assert.True(t, CanCancel(open, today, 7), "8 days out")

	edge := &Booking{Status: BookingConfirmed, CheckIn: day(2024, 2, 8)}
	assert.False(t, CanCancel(edge, today, 7), "exactly 7 days out")

	cancelled := &Booking{Status: BookingCancelled, CheckIn: day(2024, 3, 1)}
	assert.False(t, CanCancel(cancelled, today, 7))

	completed := &Booking{Status: BookingCompleted, CheckIn: day(2024, 3, 1)}
	assert.False(t, CanCancel(completed, today, 7))
}

func TestCanReview(t *testing.T) {
	assert.True(t, CanReview(&Booking{Status: BookingCompleted}, false))
	assert.False(t, CanReview(&Booking{Status: BookingCompleted}, true))
	assert.False(t, CanReview(&Booking{Status: BookingConfirmed}, false))
}
