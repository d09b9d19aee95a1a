// services/rental/internal/core/pricing.go
package core

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/backstage/services/rental/internal/utils"
)

// BookingQuote is the price breakdown for a stay.
type BookingQuote struct {
	Months         int             `json:"months"`
	MonthlyRent    decimal.Decimal `json:"monthly_rent"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	ServiceFee     decimal.Decimal `json:"service_fee"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// BookingMonths is the billable month count: whole calendar months between
// the dates, never less than one.
func BookingMonths(checkIn, checkOut time.Time) int {
	if months := utils.WholeMonthsBetween(checkIn, checkOut); months > 1 {
		return months
	}
	return 1
}

// ComputeBooking prices a stay. It is pure; the same inputs always give the
// same quote.
func ComputeBooking(monthlyRent decimal.Decimal, checkIn, checkOut time.Time, commissionRate decimal.Decimal) BookingQuote {
	months := BookingMonths(checkIn, checkOut)
	subtotal := monthlyRent.Mul(decimal.NewFromInt(int64(months))).Round(2)
	fee := subtotal.Mul(commissionRate).Round(2)

	return BookingQuote{
		Months:         months,
		MonthlyRent:    monthlyRent,
		Subtotal:       subtotal,
		CommissionRate: commissionRate,
		ServiceFee:     fee,
		TotalAmount:    subtotal.Add(fee),
	}
}

// Apply copies the quote's figures onto a booking.
func (q BookingQuote) Apply(b *Booking) {
	b.Months = q.Months
	b.MonthlyRent = q.MonthlyRent
	b.Subtotal = q.Subtotal
	b.CommissionRate = q.CommissionRate
	b.ServiceFee = q.ServiceFee
	b.TotalAmount = q.TotalAmount
}

// CanCancel reports whether the booking may still be cancelled on 'today'.
// Cancellation needs strictly more than windowDays before check-in.
func CanCancel(b *Booking, today time.Time, windowDays int) bool {
	if b.Status != BookingPending && b.Status != BookingConfirmed {
		return false
	}
	return utils.DaysBetween(today, b.CheckIn) > windowDays
}

// CanReview reports whether a review may be left for the booking.
func CanReview(b *Booking, alreadyReviewed bool) bool {
	return b.Status == BookingCompleted && !alreadyReviewed
}
