// services/rental/internal/core/tenancy.go
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"example.com/backstage/services/rental/internal/metrics"
	"example.com/backstage/services/rental/internal/utils"
)

// TenancySettings are the defaults applied when a landlord omits lease terms.
type TenancySettings struct {
	DefaultRentDueDay      int
	DefaultGracePeriodDays int
	StatsCacheTTL          time.Duration
	DefaultCountryCode     string
}

// CreateTenantInput describes a new occupant and the terms of their lease.
// Exactly one of UserID or TenantName identifies the occupant.
type CreateTenantInput struct {
	PropertyID         uuid.UUID
	UserID             *uuid.UUID
	TenantName         string
	TenantPhone        string
	TenantEmail        string
	LeaseStartDate     time.Time
	LeaseEndDate       time.Time
	MonthlyRent        decimal.Decimal
	SecurityDeposit    *decimal.Decimal
	RentDueDay         *int
	LateFeeAmount      *decimal.Decimal
	LateFeeGracePeriod *int
	AgreementType      string
	MoveInDate         *time.Time
}

// CreateTenantResult is what CreateTenant produced. Schedule generation is
// best effort; when it fails the tenant and lease still exist.
type CreateTenantResult struct {
	Tenant            *Tenant         `json:"tenant"`
	Lease             *LeaseAgreement `json:"lease"`
	Payments          []*RentPayment  `json:"payments"`
	ScheduleGenerated bool            `json:"schedule_generated"`
	ScheduleError     string          `json:"schedule_error,omitempty"`
}

// RecordPaymentInput is an incremental payment against one billing period.
type RecordPaymentInput struct {
	TenantID      uuid.UUID
	PaymentMonth  string
	AmountPaid    decimal.Decimal
	LateFee       *decimal.Decimal
	PaymentMethod string
	TransactionID string
	PaymentDate   *time.Time
	Notes         string
}

// EndTenancyInput carries the move-out record.
type EndTenancyInput struct {
	MoveOutDate *time.Time
	Notes       string
	Photos      []string
}

// TenantFilter narrows tenant listings. LandlordID defaults to the actor.
type TenantFilter struct {
	LandlordID *uuid.UUID
	Status     TenantStatus
}

// TenantDetails is a tenant with its identity, leases and schedule.
type TenantDetails struct {
	Tenant   *Tenant           `json:"tenant"`
	Identity TenantIdentity    `json:"identity"`
	Leases   []*LeaseAgreement `json:"leases"`
	Payments []*RentPayment    `json:"payments"`
}

// LandlordStats summarises a landlord's portfolio for the current month.
type LandlordStats struct {
	LandlordID         uuid.UUID       `json:"landlord_id"`
	PeriodKey          string          `json:"period_key"`
	TotalTenants       int             `json:"total_tenants"`
	ActiveTenants      int             `json:"active_tenants"`
	EndedTenants       int             `json:"ended_tenants"`
	LateTenants        int             `json:"late_tenants"`
	OverduePayments    int             `json:"overdue_payments"`
	ExpectedThisMonth  decimal.Decimal `json:"expected_this_month"`
	CollectedThisMonth decimal.Decimal `json:"collected_this_month"`
	Outstanding        decimal.Decimal `json:"outstanding"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// --- Tenancy Service Implementation ---

type TenancyService struct {
	store    Repository
	events   *EventDispatcher
	cache    Cache
	logger   *logrus.Logger
	settings TenancySettings
	now      func() time.Time
}

func NewTenancyService(store Repository, events *EventDispatcher, cache Cache, logger *logrus.Logger, settings TenancySettings, now func() time.Time) *TenancyService {
	if settings.DefaultRentDueDay < 1 || settings.DefaultRentDueDay > 31 {
		settings.DefaultRentDueDay = 1
	}
	return &TenancyService{
		store:    store,
		events:   events,
		cache:    cache,
		logger:   logger,
		settings: settings,
		now:      now,
	}
}

func (s *TenancyService) today() time.Time {
	return utils.DateOnly(s.now())
}

func (s *TenancyService) validateCreate(in *CreateTenantInput) error {
	if in.PropertyID == uuid.Nil {
		return validationError("TENANT_001", "property_id is required")
	}

	hasUser := in.UserID != nil && *in.UserID != uuid.Nil
	hasName := strings.TrimSpace(in.TenantName) != ""
	if hasUser == hasName {
		return validationError("TENANT_002", "provide either user_id or tenant_name")
	}
	if !hasUser {
		in.UserID = nil
	}

	if in.LeaseStartDate.IsZero() || in.LeaseEndDate.IsZero() {
		return validationError("TENANT_003", "lease start and end dates are required")
	}
	in.LeaseStartDate = utils.DateOnly(in.LeaseStartDate)
	in.LeaseEndDate = utils.DateOnly(in.LeaseEndDate)
	if !in.LeaseEndDate.After(in.LeaseStartDate) {
		return validationError("TENANT_003", "lease end date must be after start date")
	}

	if !in.MonthlyRent.IsPositive() {
		return validationError("TENANT_004", "monthly rent must be greater than zero")
	}
	if in.SecurityDeposit != nil && in.SecurityDeposit.IsNegative() {
		return validationError("TENANT_004", "security deposit must not be negative")
	}
	if in.LateFeeAmount != nil && in.LateFeeAmount.IsNegative() {
		return validationError("TENANT_004", "late fee must not be negative")
	}

	if in.RentDueDay != nil && (*in.RentDueDay < 1 || *in.RentDueDay > 31) {
		return validationError("TENANT_005", "rent due day must be between 1 and 31")
	}
	if in.LateFeeGracePeriod != nil && *in.LateFeeGracePeriod < 0 {
		return validationError("TENANT_005", "late fee grace period must not be negative")
	}
	return nil
}

// CreateTenant registers an occupant with a draft lease, then lays out the
// rent schedule.
func (s *TenancyService) CreateTenant(ctx context.Context, actor *Session, in CreateTenantInput) (*CreateTenantResult, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if err := s.validateCreate(&in); err != nil {
		return nil, err
	}

	property, err := s.store.GetProperty(ctx, in.PropertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	if !actor.owns(property.HostID) {
		return nil, ErrForbidden
	}

	if in.UserID != nil {
		if _, err := s.store.GetUser(ctx, *in.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	deposit := decimal.Zero
	if in.SecurityDeposit != nil {
		deposit = *in.SecurityDeposit
	}
	lateFee := decimal.Zero
	if in.LateFeeAmount != nil {
		lateFee = *in.LateFeeAmount
	}
	dueDay := s.settings.DefaultRentDueDay
	if in.RentDueDay != nil {
		dueDay = *in.RentDueDay
	}
	grace := s.settings.DefaultGracePeriodDays
	if in.LateFeeGracePeriod != nil {
		grace = *in.LateFeeGracePeriod
	}
	agreementType := strings.TrimSpace(in.AgreementType)
	if agreementType == "" {
		agreementType = "fixed_term"
	}
	moveIn := in.LeaseStartDate
	if in.MoveInDate != nil {
		moveIn = utils.DateOnly(*in.MoveInDate)
	}

	tenant := &Tenant{
		PropertyID:      property.ID,
		LandlordID:      property.HostID,
		UserID:          in.UserID,
		LeaseStartDate:  in.LeaseStartDate,
		LeaseEndDate:    in.LeaseEndDate,
		MonthlyRent:     in.MonthlyRent,
		SecurityDeposit: deposit,
		Status:          TenantActive,
		MoveInDate:      &moveIn,
	}
	if in.UserID == nil {
		tenant.TenantName = strings.TrimSpace(in.TenantName)
		tenant.TenantPhone = strings.TrimSpace(in.TenantPhone)
		tenant.TenantEmail = strings.TrimSpace(in.TenantEmail)
	}

	lease := &LeaseAgreement{
		PropertyID:         property.ID,
		LandlordID:         property.HostID,
		Version:            1,
		AgreementType:      agreementType,
		StartDate:          in.LeaseStartDate,
		EndDate:            in.LeaseEndDate,
		MonthlyRent:        in.MonthlyRent,
		SecurityDeposit:    deposit,
		RentDueDay:         dueDay,
		LateFeeAmount:      lateFee,
		LateFeeGracePeriod: grace,
		Status:             LeaseDraft,
	}

	var event *OutboxEvent
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreateTenant(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		lease.TenantID = tenant.ID
		if err := tx.CreateLease(ctx, lease); err != nil {
			return fmt.Errorf("failed to create lease: %w", err)
		}

		event, err = s.events.Record(ctx, tx, TopicTenantCreated, tenant.ID, map[string]interface{}{
			"tenant_id":   tenant.ID,
			"property_id": tenant.PropertyID,
			"landlord_id": tenant.LandlordID,
			"lease_id":    lease.ID,
			"kind":        tenant.Identity().Kind,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	metrics.TenanciesChanged.WithLabelValues("created").Inc()

	result := &CreateTenantResult{Tenant: tenant, Lease: lease}
	payments, err := s.GeneratePaymentSchedule(ctx, actor, tenant.ID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"error":     err,
		}).Warn("Payment schedule generation failed, tenant created without schedule")
		result.ScheduleError = err.Error()
	} else {
		result.Payments = payments
		result.ScheduleGenerated = true
	}

	s.invalidateStats(ctx, tenant.LandlordID)

	s.logger.WithFields(logrus.Fields{
		"tenant_id":   tenant.ID,
		"property_id": tenant.PropertyID,
		"landlord_id": tenant.LandlordID,
		"periods":     len(result.Payments),
	}).Info("Tenant created")

	return result, nil
}

// GeneratePaymentSchedule fills in missing billing periods from the tenant's
// latest lease. It is safe to run repeatedly.
func (s *TenancyService) GeneratePaymentSchedule(ctx context.Context, actor *Session, tenantID uuid.UUID) ([]*RentPayment, error) {
	tenant, err := s.ownedTenant(ctx, s.store, actor, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status == TenantEnded {
		return nil, ErrTenantEnded
	}

	lease, err := s.store.GetLatestLeaseForTenant(ctx, tenant.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaseNotFound
		}
		return nil, err
	}

	existingRows, err := s.store.ListPaymentsByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	existing := make(map[string]bool, len(existingRows))
	for _, p := range existingRows {
		existing[p.PeriodKey] = true
	}

	payments := BuildPaymentSchedule(tenant, lease, existing)
	if len(payments) == 0 {
		return payments, nil
	}

	var event *OutboxEvent
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreatePayments(ctx, payments); err != nil {
			return fmt.Errorf("failed to create payment schedule: %w", err)
		}
		event, err = s.events.Record(ctx, tx, TopicScheduleGenerated, tenant.ID, map[string]interface{}{
			"tenant_id": tenant.ID,
			"lease_id":  lease.ID,
			"periods":   len(payments),
			"first":     payments[0].PeriodKey,
			"last":      payments[len(payments)-1].PeriodKey,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	s.invalidateStats(ctx, tenant.LandlordID)

	return payments, nil
}

// SignLease records one party's signature. Landlords also record the tenant
// signature for occupants without an account.
func (s *TenancyService) SignLease(ctx context.Context, actor *Session, leaseID uuid.UUID, party SigningParty) (*LeaseAgreement, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}

	var (
		lease *LeaseAgreement
		event *OutboxEvent
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		l, err := tx.GetLease(ctx, leaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeaseNotFound
			}
			return err
		}
		tenant, err := tx.GetTenant(ctx, l.TenantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return err
		}

		if err := authorizeSignature(actor, l, tenant, party); err != nil {
			return err
		}
		if tenant.Status == TenantEnded {
			return ErrTenantEnded
		}
		if err := ApplySignature(l, party, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateLease(ctx, l); err != nil {
			return fmt.Errorf("failed to update lease: %w", err)
		}

		event, err = s.events.Record(ctx, tx, TopicLeaseSigned, l.ID, map[string]interface{}{
			"lease_id":  l.ID,
			"tenant_id": l.TenantID,
			"party":     party,
			"status":    l.Status,
		})
		lease = l
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"lease_id": lease.ID,
		"party":    party,
		"status":   lease.Status,
	}).Info("Lease signed")

	return lease, nil
}

func authorizeSignature(actor *Session, lease *LeaseAgreement, tenant *Tenant, party SigningParty) error {
	switch party {
	case PartyLandlord:
		if actor.UserID != lease.LandlordID {
			return ErrForbidden
		}
	case PartyTenant:
		if tenant.UserID != nil {
			if actor.UserID != *tenant.UserID {
				return ErrForbidden
			}
		} else if actor.UserID != lease.LandlordID {
			return ErrForbidden
		}
	default:
		return validationError("LEASE_002", "invalid signing party %q", party)
	}
	return nil
}

// RecordPayment applies an incremental payment to a billing period.
func (s *TenancyService) RecordPayment(ctx context.Context, actor *Session, in RecordPaymentInput) (*RentPayment, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	period, err := utils.ParsePeriod(strings.TrimSpace(in.PaymentMonth))
	if err != nil {
		return nil, validationError("PAYMENT_003", "invalid payment month %q", in.PaymentMonth)
	}
	periodKey := utils.PeriodKey(period)
	transactionID := strings.TrimSpace(in.TransactionID)

	paidAt := s.now()
	if in.PaymentDate != nil {
		paidAt = *in.PaymentDate
	}

	var (
		payment *RentPayment
		event   *OutboxEvent
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := s.ownedTenant(ctx, tx, actor, in.TenantID); err != nil {
			return err
		}

		p, err := tx.GetPaymentByPeriod(ctx, in.TenantID, periodKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		if transactionID != "" {
			if _, err := tx.GetReceiptByTransactionID(ctx, transactionID); err == nil {
				return ErrDuplicateTransaction
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := ApplyPayment(p, in.AmountPaid, in.LateFee, in.PaymentMethod, transactionID, paidAt); err != nil {
			return err
		}
		if note := strings.TrimSpace(in.Notes); note != "" {
			p.Notes = appendNote(p.Notes, note)
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		receipt := &PaymentReceipt{
			RentPaymentID: p.ID,
			TenantID:      p.TenantID,
			Amount:        in.AmountPaid,
			PaymentMethod: in.PaymentMethod,
			PaidAt:        paidAt,
		}
		if transactionID != "" {
			receipt.TransactionID = &transactionID
		}
		if actor.UserID != uuid.Nil {
			recordedBy := actor.UserID
			receipt.RecordedBy = &recordedBy
		}
		if err := tx.CreateReceipt(ctx, receipt); err != nil {
			// A concurrent replay can insert the same transaction id after
			// the lookup above.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTransaction
			}
			return fmt.Errorf("failed to create receipt: %w", err)
		}

		event, err = s.events.Record(ctx, tx, TopicPaymentRecorded, p.ID, map[string]interface{}{
			"payment_id":     p.ID,
			"tenant_id":      p.TenantID,
			"period":         p.PeriodKey,
			"amount":         in.AmountPaid,
			"amount_paid":    p.AmountPaid,
			"status":         p.Status,
			"payment_method": p.PaymentMethod,
			"transaction_id": transactionID,
		})
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	s.invalidateStats(ctx, payment.LandlordID)
	metrics.PaymentsRecorded.WithLabelValues(payment.PaymentMethod, string(payment.Status)).Inc()

	s.logger.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"tenant_id":   payment.TenantID,
		"period":      payment.PeriodKey,
		"amount":      in.AmountPaid.String(),
		"amount_paid": payment.AmountPaid.String(),
		"status":      payment.Status,
	}).Info("Rent payment recorded")

	return payment, nil
}

// WaivePayment marks a period uncollectible. Waiving an already waived
// period changes nothing.
func (s *TenancyService) WaivePayment(ctx context.Context, actor *Session, paymentID uuid.UUID, reason string) (*RentPayment, error) {
	var event *OutboxEvent
	payment, err := s.mutatePayment(ctx, actor, paymentID, func(ctx context.Context, tx Repository, p *RentPayment) (bool, error) {
		if p.Status == PaymentWaived {
			return false, nil
		}
		Waive(p, reason)
		var err error
		event, err = s.events.Record(ctx, tx, TopicPaymentWaived, p.ID, map[string]interface{}{
			"payment_id": p.ID,
			"tenant_id":  p.TenantID,
			"period":     p.PeriodKey,
			"reason":     reason,
		})
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.events.Dispatch(ctx, event)
		metrics.PaymentsWaived.Inc()
		s.logger.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"tenant_id":  payment.TenantID,
			"period":     payment.PeriodKey,
		}).Info("Rent payment waived")
	}
	return payment, nil
}

// AddLateFee sets the late fee on a period and flags it late.
func (s *TenancyService) AddLateFee(ctx context.Context, actor *Session, paymentID uuid.UUID, fee decimal.Decimal) (*RentPayment, error) {
	var event *OutboxEvent
	payment, err := s.mutatePayment(ctx, actor, paymentID, func(ctx context.Context, tx Repository, p *RentPayment) (bool, error) {
		if err := SetLateFee(p, fee); err != nil {
			return false, err
		}
		var err error
		event, err = s.events.Record(ctx, tx, TopicPaymentLateFee, p.ID, map[string]interface{}{
			"payment_id": p.ID,
			"tenant_id":  p.TenantID,
			"period":     p.PeriodKey,
			"late_fee":   fee,
		})
		return true, err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"late_fee":   fee.String(),
	}).Info("Late fee added")

	return payment, nil
}

// mutatePayment loads an owned payment inside a transaction and saves it
// when fn reports a change.
func (s *TenancyService) mutatePayment(ctx context.Context, actor *Session, paymentID uuid.UUID, fn func(context.Context, Repository, *RentPayment) (bool, error)) (*RentPayment, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}

	var payment *RentPayment
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if !actor.owns(p.LandlordID) {
			return ErrForbidden
		}

		changed, err := fn(ctx, tx, p)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, payment.LandlordID)
	return payment, nil
}

// EndTenancy closes the tenancy and terminates its active leases. Billing
// periods are left as they are.
func (s *TenancyService) EndTenancy(ctx context.Context, actor *Session, tenantID uuid.UUID, in EndTenancyInput) (*Tenant, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}

	moveOut := s.today()
	if in.MoveOutDate != nil {
		moveOut = utils.DateOnly(*in.MoveOutDate)
	}

	var (
		tenant *Tenant
		event  *OutboxEvent
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		t, err := s.ownedTenant(ctx, tx, actor, tenantID)
		if err != nil {
			return err
		}
		if t.Status == TenantEnded {
			return ErrTenantEnded
		}

		t.Status = TenantEnded
		t.MoveOutDate = &moveOut
		t.MoveOutNotes = strings.TrimSpace(in.Notes)
		if len(in.Photos) > 0 {
			photos, err := json.Marshal(in.Photos)
			if err != nil {
				return fmt.Errorf("failed to encode move-out photos: %w", err)
			}
			t.MoveOutPhotos = datatypes.JSON(photos)
		}
		if err := tx.UpdateTenant(ctx, t); err != nil {
			return fmt.Errorf("failed to update tenant: %w", err)
		}

		terminated, err := tx.TerminateActiveLeases(ctx, t.ID, moveOut)
		if err != nil {
			return fmt.Errorf("failed to terminate leases: %w", err)
		}

		event, err = s.events.Record(ctx, tx, TopicTenancyEnded, t.ID, map[string]interface{}{
			"tenant_id":         t.ID,
			"property_id":       t.PropertyID,
			"move_out_date":     moveOut.Format("2006-01-02"),
			"leases_terminated": terminated,
		})
		tenant = t
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	s.invalidateStats(ctx, tenant.LandlordID)
	metrics.TenanciesChanged.WithLabelValues("ended").Inc()

	s.logger.WithFields(logrus.Fields{
		"tenant_id":     tenant.ID,
		"move_out_date": moveOut.Format("2006-01-02"),
	}).Info("Tenancy ended")

	return tenant, nil
}

// ListTenants returns a landlord's tenants with the late-rent flag filled in.
func (s *TenancyService) ListTenants(ctx context.Context, actor *Session, filter TenantFilter) ([]*Tenant, error) {
	landlordID, err := s.resolveLandlord(actor, filter.LandlordID)
	if err != nil {
		return nil, err
	}

	tenants, err := s.store.ListTenantsByLandlord(ctx, landlordID, filter.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	payments, err := s.store.ListPaymentsByLandlord(ctx, landlordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	late := lateTenants(payments, s.today())
	for _, t := range tenants {
		t.IsLateOnRent = late[t.ID]
	}
	return tenants, nil
}

// GetTenant returns one tenant with its leases and billing periods.
func (s *TenancyService) GetTenant(ctx context.Context, actor *Session, tenantID uuid.UUID) (*TenantDetails, error) {
	tenant, err := s.ownedTenant(ctx, s.store, actor, tenantID)
	if err != nil {
		return nil, err
	}

	leases, err := s.store.ListLeasesByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	payments, err := s.store.ListPaymentsByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	tenant.IsLateOnRent = lateTenants(payments, s.today())[tenant.ID]

	return &TenantDetails{
		Tenant:   tenant,
		Identity: tenant.Identity(),
		Leases:   leases,
		Payments: payments,
	}, nil
}

// ListPayments returns a tenant's billing periods in order.
func (s *TenancyService) ListPayments(ctx context.Context, actor *Session, tenantID uuid.UUID) ([]*RentPayment, error) {
	if _, err := s.ownedTenant(ctx, s.store, actor, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentsByTenant(ctx, tenantID)
}

// ListReceipts returns the individual amounts applied to a period.
func (s *TenancyService) ListReceipts(ctx context.Context, actor *Session, paymentID uuid.UUID) ([]*PaymentReceipt, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !actor.owns(p.LandlordID) {
		return nil, ErrForbidden
	}
	return s.store.ListReceipts(ctx, paymentID)
}

// TenantContact builds deep links for reaching a tenant.
func (s *TenancyService) TenantContact(ctx context.Context, actor *Session, tenantID uuid.UUID, message string) (ContactLinks, error) {
	tenant, err := s.ownedTenant(ctx, s.store, actor, tenantID)
	if err != nil {
		return ContactLinks{}, err
	}
	identity := tenant.Identity()
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Hello %s", identity.Name)
	}
	return BuildContactLinks(identity.Phone, identity.Email, message, s.settings.DefaultCountryCode), nil
}

// LandlordStats summarises a landlord's tenancies. Results are cached
// briefly and evicted on every tenancy change for that landlord.
func (s *TenancyService) LandlordStats(ctx context.Context, actor *Session, landlordID *uuid.UUID) (*LandlordStats, error) {
	id, err := s.resolveLandlord(actor, landlordID)
	if err != nil {
		return nil, err
	}

	key := statsCacheKey(id)
	var cached LandlordStats
	if cachedJSON(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	tenants, err := s.store.ListTenantsByLandlord(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	payments, err := s.store.ListPaymentsByLandlord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	today := s.today()
	stats := computeLandlordStats(id, tenants, payments, today)
	stats.GeneratedAt = s.now()

	cacheJSON(ctx, s.cache, s.logger, key, stats, s.settings.StatsCacheTTL)
	return stats, nil
}

func computeLandlordStats(landlordID uuid.UUID, tenants []*Tenant, payments []*RentPayment, today time.Time) *LandlordStats {
	stats := &LandlordStats{
		LandlordID:         landlordID,
		PeriodKey:          utils.PeriodKey(today),
		TotalTenants:       len(tenants),
		ExpectedThisMonth:  decimal.Zero,
		CollectedThisMonth: decimal.Zero,
		Outstanding:        decimal.Zero,
	}
	for _, t := range tenants {
		switch t.Status {
		case TenantActive:
			stats.ActiveTenants++
		case TenantEnded:
			stats.EndedTenants++
		}
	}

	for _, p := range payments {
		if p.PeriodKey == stats.PeriodKey && p.Status != PaymentWaived {
			stats.ExpectedThisMonth = stats.ExpectedThisMonth.Add(p.AmountDue)
			stats.CollectedThisMonth = stats.CollectedThisMonth.Add(p.AmountPaid)
		}
		if !p.DueDate.After(today) {
			stats.Outstanding = stats.Outstanding.Add(p.Outstanding())
		}
		if p.IsOverdue(today) {
			stats.OverduePayments++
		}
	}
	stats.LateTenants = len(lateTenants(payments, today))
	return stats
}

// SweepOverdue flags pending and partial periods whose grace period has run
// out as of asOf. It returns how many were flagged.
func (s *TenancyService) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	asOf = utils.DateOnly(asOf)
	candidates, err := s.store.ListUnsettledPaymentsDueBefore(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled payments: %w", err)
	}

	graceByTenant := make(map[uuid.UUID]int)
	landlords := make(map[uuid.UUID]struct{})
	marked := 0

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}

		grace, ok := graceByTenant[candidate.TenantID]
		if !ok {
			grace = s.settings.DefaultGracePeriodDays
			if lease, err := s.store.GetLatestLeaseForTenant(ctx, candidate.TenantID); err == nil {
				grace = lease.LateFeeGracePeriod
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return marked, err
			}
			graceByTenant[candidate.TenantID] = grace
		}

		var event *OutboxEvent
		err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
			p, err := tx.GetPayment(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !MarkLate(p, asOf, grace) {
				return nil
			}
			if err := tx.UpdatePayment(ctx, p); err != nil {
				return err
			}
			event, err = s.events.Record(ctx, tx, TopicPaymentMarkedLate, p.ID, map[string]interface{}{
				"payment_id": p.ID,
				"tenant_id":  p.TenantID,
				"period":     p.PeriodKey,
				"due_date":   p.DueDate.Format("2006-01-02"),
			})
			return err
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"payment_id": candidate.ID,
				"error":      err,
			}).Error("Failed to mark payment late")
			continue
		}
		if event != nil {
			s.events.Dispatch(ctx, event)
			landlords[candidate.LandlordID] = struct{}{}
			metrics.PaymentsMarkedLate.Inc()
			marked++
		}
	}

	for id := range landlords {
		s.invalidateStats(ctx, id)
	}

	s.logger.WithFields(logrus.Fields{
		"as_of":      asOf.Format("2006-01-02"),
		"candidates": len(candidates),
		"marked":     marked,
	}).Info("Overdue sweep finished")

	return marked, nil
}

func (s *TenancyService) ownedTenant(ctx context.Context, store Repository, actor *Session, tenantID uuid.UUID) (*Tenant, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	tenant, err := store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !actor.owns(tenant.LandlordID) {
		return nil, ErrForbidden
	}
	return tenant, nil
}

func (s *TenancyService) resolveLandlord(actor *Session, requested *uuid.UUID) (uuid.UUID, error) {
	if err := requireSession(actor); err != nil {
		return uuid.Nil, err
	}
	if requested == nil || *requested == uuid.Nil {
		return actor.UserID, nil
	}
	if !actor.owns(*requested) {
		return uuid.Nil, ErrForbidden
	}
	return *requested, nil
}

func (s *TenancyService) invalidateStats(ctx context.Context, landlordID uuid.UUID) {
	evict(ctx, s.cache, s.logger, statsCacheKey(landlordID))
}

func statsCacheKey(landlordID uuid.UUID) string {
	return "landlord_stats:" + landlordID.String()
}

// lateTenants projects is_late_on_rent from billing periods.
func lateTenants(payments []*RentPayment, today time.Time) map[uuid.UUID]bool {
	late := make(map[uuid.UUID]bool)
	for _, p := range payments {
		if p.IsOverdue(today) {
			late[p.TenantID] = true
		}
	}
	return late
}
