package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusFor(t *testing.T) {
	due := dec("500000")
	assert.Equal(t, PaymentPending, PaymentStatusFor(due, decimal.Zero))
	assert.Equal(t, PaymentPartial, PaymentStatusFor(due, dec("300000")))
	assert.Equal(t, PaymentPaid, PaymentStatusFor(due, dec("500000")))
	assert.Equal(t, PaymentPaid, PaymentStatusFor(due, dec("650000")))
}

func TestApplyPaymentIsIncremental(t *testing.T) {
	p := &RentPayment{AmountDue: dec("500000"), Status: PaymentPending}

	require.NoError(t, ApplyPayment(p, dec("300000"), nil, "mpesa", "TX1", day(2024, 1, 3)))
	assert.Equal(t, PaymentPartial, p.Status)
	assertDecimal(t, "300000", p.AmountPaid)
	assertDecimal(t, "200000", p.Outstanding())

	require.NoError(t, ApplyPayment(p, dec("200000"), nil, "cash", "", day(2024, 1, 4)))
	assert.Equal(t, PaymentPaid, p.Status)
	assertDecimal(t, "500000", p.AmountPaid)
	assert.Equal(t, "cash", p.PaymentMethod)
	assert.True(t, p.IsSettled())
	assertDecimal(t, "0", p.Outstanding())
}

func TestApplyPaymentValidation(t *testing.T) {
	p := &RentPayment{AmountDue: dec("100"), Status: PaymentPending}

	var be BusinessError
	err := ApplyPayment(p, decimal.Zero, nil, "", "", day(2024, 1, 1))
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "PAYMENT_001", be.Code)

	negative := dec("-5")
	err = ApplyPayment(p, dec("10"), &negative, "", "", day(2024, 1, 1))
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "PAYMENT_002", be.Code)
	assertDecimal(t, "0", p.AmountPaid)
}

func TestApplyPaymentWithLateFee(t *testing.T) {
	p := &RentPayment{AmountDue: dec("1000"), Status: PaymentPending}
	fee := dec("50")

	require.NoError(t, ApplyPayment(p, dec("1000"), &fee, "bank", "", day(2024, 1, 20)))
	assert.True(t, p.IsLate)
	assert.Equal(t, PaymentPaid, p.Status)
	assertDecimal(t, "50", p.Outstanding())
}

func TestWaiveIsTerminal(t *testing.T) {
	p := &RentPayment{AmountDue: dec("1000"), AmountPaid: dec("200"), Status: PaymentPartial, Notes: "first note"}

	Waive(p, " hardship ")
	assert.Equal(t, PaymentWaived, p.Status)
	assert.Equal(t, "first note\nWaived: hardship", p.Notes)
	assertDecimal(t, "0", p.Outstanding())
	assert.True(t, p.IsSettled())
	assert.False(t, p.IsOverdue(day(2030, 1, 1)))

	assert.ErrorIs(t, ApplyPayment(p, dec("800"), nil, "", "", day(2024, 2, 1)), ErrPaymentWaived)
	assert.ErrorIs(t, SetLateFee(p, dec("10")), ErrPaymentWaived)
	assert.False(t, MarkLate(p, day(2030, 1, 1), 0))
}

func TestWaiveWithoutReason(t *testing.T) {
	p := &RentPayment{Status: PaymentPending}
	Waive(p, "")
	assert.Equal(t, "Waived", p.Notes)
}

func TestMarkLate(t *testing.T) {
	p := &RentPayment{AmountDue: dec("1000"), Status: PaymentPending, DueDate: day(2024, 1, 5)}

	assert.False(t, MarkLate(p, day(2024, 1, 10), 5), "grace period ends on the 10th")
	assert.Equal(t, PaymentPending, p.Status)

	assert.True(t, MarkLate(p, day(2024, 1, 11), 5))
	assert.Equal(t, PaymentLate, p.Status)
	assert.True(t, p.IsLate)

	assert.False(t, MarkLate(p, day(2024, 1, 12), 5), "already late")

	paid := &RentPayment{AmountDue: dec("1000"), AmountPaid: dec("1000"), Status: PaymentPaid, DueDate: day(2024, 1, 5)}
	assert.False(t, MarkLate(paid, day(2024, 3, 1), 0))
}

func TestLatePaymentStaysPayable(t *testing.T) {
	p := &RentPayment{AmountDue: dec("1000"), Status: PaymentLate, IsLate: true, DueDate: day(2024, 1, 5)}

	require.NoError(t, ApplyPayment(p, dec("1000"), nil, "cash", "", day(2024, 1, 20)))
	assert.Equal(t, PaymentPaid, p.Status)
	assert.True(t, p.IsLate)
}

func TestIsOverdue(t *testing.T) {
	p := &RentPayment{AmountDue: dec("1000"), AmountPaid: dec("400"), Status: PaymentPartial, DueDate: day(2024, 1, 5)}
	assert.False(t, p.IsOverdue(day(2024, 1, 5)))
	assert.True(t, p.IsOverdue(day(2024, 1, 6)))
}

func TestSetLateFeeRejectsNegative(t *testing.T) {
	p := &RentPayment{Status: PaymentPending}
	var be BusinessError
	require.True(t, errors.As(SetLateFee(p, dec("-1")), &be))
	assert.Equal(t, "PAYMENT_002", be.Code)
	assert.False(t, p.IsLate)
}
