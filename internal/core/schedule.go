// services/rental/internal/core/schedule.go
package core

import (
	"example.com/backstage/services/rental/internal/utils"
)

// BuildPaymentSchedule lays out one period per month from the lease start
// month through the month holding the lease's last day (the day before the
// end date). Periods listed in 'existing' are skipped, so running it again
// only fills gaps.
func BuildPaymentSchedule(tenant *Tenant, lease *LeaseAgreement, existing map[string]bool) []*RentPayment {
	start := utils.DateOnly(lease.StartDate)
	lastDay := utils.DateOnly(lease.EndDate).AddDate(0, 0, -1)
	if lastDay.Before(start) {
		return nil
	}

	var payments []*RentPayment
	for month := utils.MonthStart(start); !month.After(lastDay); month = month.AddDate(0, 1, 0) {
		key := utils.PeriodKey(month)
		if existing[key] {
			continue
		}

		due := utils.DayInMonth(month.Year(), month.Month(), lease.RentDueDay)
		if due.Before(start) {
			due = start
		}

		payments = append(payments, &RentPayment{
			TenantID:     tenant.ID,
			PropertyID:   tenant.PropertyID,
			LandlordID:   tenant.LandlordID,
			PeriodKey:    key,
			PaymentMonth: month,
			DueDate:      due,
			AmountDue:    lease.MonthlyRent,
			Status:       PaymentPending,
		})
	}
	return payments
}
