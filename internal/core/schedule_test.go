package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduleFixture(start, end string, dueDay int) (*Tenant, *LeaseAgreement) {
	tenant := &Tenant{ID: uuid.New(), PropertyID: uuid.New(), LandlordID: uuid.New()}
	lease := &LeaseAgreement{
		TenantID:    tenant.ID,
		StartDate:   mustDay(start),
		EndDate:     mustDay(end),
		MonthlyRent: dec("500000"),
		RentDueDay:  dueDay,
	}
	return tenant, lease
}

func mustDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func periodKeys(payments []*RentPayment) []string {
	keys := make([]string, 0, len(payments))
	for _, p := range payments {
		keys = append(keys, p.PeriodKey)
	}
	return keys
}

func TestBuildPaymentSchedule(t *testing.T) {
	tenant, lease := scheduleFixture("2024-01-15", "2024-04-15", 1)

	payments := BuildPaymentSchedule(tenant, lease, nil)
	require.Len(t, payments, 4)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03", "2024-04"}, periodKeys(payments))

	// The first due date never precedes the lease start.
	assert.Equal(t, mustDay("2024-01-15"), payments[0].DueDate)
	assert.Equal(t, mustDay("2024-02-01"), payments[1].DueDate)

	for _, p := range payments {
		assert.Equal(t, PaymentPending, p.Status)
		assert.Equal(t, tenant.ID, p.TenantID)
		assert.Equal(t, tenant.LandlordID, p.LandlordID)
		assertDecimal(t, "500000", p.AmountDue)
	}
}

func TestBuildPaymentScheduleEndsBeforeEndDate(t *testing.T) {
	tenant, lease := scheduleFixture("2024-01-01", "2024-04-01", 5)

	payments := BuildPaymentSchedule(tenant, lease, nil)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, periodKeys(payments))
	assert.Equal(t, mustDay("2024-01-05"), payments[0].DueDate)
}

func TestBuildPaymentScheduleClampsDueDay(t *testing.T) {
	tenant, lease := scheduleFixture("2024-01-01", "2024-05-01", 31)

	payments := BuildPaymentSchedule(tenant, lease, nil)
	require.Len(t, payments, 4)
	assert.Equal(t, mustDay("2024-02-29"), payments[1].DueDate)
	assert.Equal(t, mustDay("2024-04-30"), payments[3].DueDate)
}

func TestBuildPaymentScheduleSkipsExisting(t *testing.T) {
	tenant, lease := scheduleFixture("2024-01-01", "2024-04-01", 1)

	payments := BuildPaymentSchedule(tenant, lease, map[string]bool{"2024-02": true})
	assert.Equal(t, []string{"2024-01", "2024-03"}, periodKeys(payments))

	all := map[string]bool{"2024-01": true, "2024-02": true, "2024-03": true}
	assert.Empty(t, BuildPaymentSchedule(tenant, lease, all))
}
