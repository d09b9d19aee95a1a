// services/rental/internal/core/payment.go
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatusFor derives the collection status of a non-waived period.
func PaymentStatusFor(amountDue, amountPaid decimal.Decimal) PaymentStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return PaymentPaid
	case amountPaid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// IsSettled reports whether nothing more is collectible on the period.
func (p *RentPayment) IsSettled() bool {
	return p.Status == PaymentPaid || p.Status == PaymentWaived
}

// Outstanding is the unpaid rent plus any late fee, never negative.
func (p *RentPayment) Outstanding() decimal.Decimal {
	if p.Status == PaymentWaived {
		return decimal.Zero
	}
	owed := p.AmountDue.Add(p.LateFee).Sub(p.AmountPaid)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// IsOverdue reports whether the period is past due without full payment.
func (p *RentPayment) IsOverdue(today time.Time) bool {
	if p.Status == PaymentWaived {
		return false
	}
	return p.DueDate.Before(today) && p.AmountPaid.LessThan(p.AmountDue)
}

// ApplyPayment adds an incremental amount to the period.
func ApplyPayment(p *RentPayment, amount decimal.Decimal, lateFee *decimal.Decimal, method, transactionID string, paidAt time.Time) error {
	if p.Status == PaymentWaived {
		return ErrPaymentWaived
	}
	if !amount.IsPositive() {
		return validationError("PAYMENT_001", "amount paid must be greater than zero")
	}
	if lateFee != nil {
		if lateFee.IsNegative() {
			return validationError("PAYMENT_002", "late fee must not be negative")
		}
		p.LateFee = *lateFee
		if lateFee.IsPositive() {
			p.IsLate = true
		}
	}

	p.AmountPaid = p.AmountPaid.Add(amount)
	p.Status = PaymentStatusFor(p.AmountDue, p.AmountPaid)
	p.PaymentMethod = method
	p.TransactionID = transactionID
	p.PaymentDate = &paidAt
	return nil
}

// Waive marks the period uncollectible. There is no way back.
func Waive(p *RentPayment, reason string) {
	note := "Waived"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	p.Notes = appendNote(p.Notes, note)
	p.Status = PaymentWaived
}

// SetLateFee replaces the period's late fee without touching its status.
func SetLateFee(p *RentPayment, fee decimal.Decimal) error {
	if p.Status == PaymentWaived {
		return ErrPaymentWaived
	}
	if fee.IsNegative() {
		return validationError("PAYMENT_002", "late fee must not be negative")
	}
	p.LateFee = fee
	p.IsLate = true
	return nil
}

// MarkLate flags a pending or partial period whose grace period has lapsed.
func MarkLate(p *RentPayment, asOf time.Time, graceDays int) bool {
	if p.Status != PaymentPending && p.Status != PaymentPartial {
		return false
	}
	if !p.DueDate.AddDate(0, 0, graceDays).Before(asOf) {
		return false
	}
	p.Status = PaymentLate
	p.IsLate = true
	return true
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
