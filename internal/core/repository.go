package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropertyFilter narrows property listings.
type PropertyFilter struct {
	Status PropertyStatus
	HostID *uuid.UUID
	City   string
	Limit  int
	Offset int
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	GuestID    *uuid.UUID
	HostID     *uuid.UUID
	PropertyID *uuid.UUID
	Status     BookingStatus
}

// Repository defines the interface for data access operations.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, role Role) ([]*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	CountUsersByRole(ctx context.Context) (map[Role]int64, error)

	// Session operations
	CreateAccessToken(ctx context.Context, token *AccessToken) error
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)
	RevokeAccessToken(ctx context.Context, token string, at time.Time) error
	TouchAccessToken(ctx context.Context, token string, at time.Time) error
	DeleteUserAccessTokens(ctx context.Context, userID uuid.UUID) error
	CountActiveTokensByUser(ctx context.Context, now time.Time) (map[uuid.UUID]int64, error)

	// Property operations
	CreateProperty(ctx context.Context, property *Property) error
	UpdateProperty(ctx context.Context, property *Property) error
	GetProperty(ctx context.Context, id uuid.UUID) (*Property, error)
	ListProperties(ctx context.Context, filter PropertyFilter) ([]*Property, int64, error)
	CountPropertiesByStatus(ctx context.Context) (map[PropertyStatus]int64, error)

	// Tenant operations
	CreateTenant(ctx context.Context, tenant *Tenant) error
	UpdateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	ListTenantsByLandlord(ctx context.Context, landlordID uuid.UUID, status TenantStatus) ([]*Tenant, error)
	CountTenantsByStatus(ctx context.Context, status TenantStatus) (int64, error)

	// Lease operations
	CreateLease(ctx context.Context, lease *LeaseAgreement) error
	UpdateLease(ctx context.Context, lease *LeaseAgreement) error
	GetLease(ctx context.Context, id uuid.UUID) (*LeaseAgreement, error)
	GetLatestLeaseForTenant(ctx context.Context, tenantID uuid.UUID) (*LeaseAgreement, error)
	ListLeasesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*LeaseAgreement, error)
	TerminateActiveLeases(ctx context.Context, tenantID uuid.UUID, on time.Time) (int64, error)

	// Rent payment operations
	CreatePayments(ctx context.Context, payments []*RentPayment) error
	UpdatePayment(ctx context.Context, payment *RentPayment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*RentPayment, error)
	GetPaymentByPeriod(ctx context.Context, tenantID uuid.UUID, periodKey string) (*RentPayment, error)
	ListPaymentsByTenant(ctx context.Context, tenantID uuid.UUID) ([]*RentPayment, error)
	ListPaymentsByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*RentPayment, error)
	ListUnsettledPaymentsDueBefore(ctx context.Context, before time.Time) ([]*RentPayment, error)
	CreateReceipt(ctx context.Context, receipt *PaymentReceipt) error
	GetReceiptByTransactionID(ctx context.Context, transactionID string) (*PaymentReceipt, error)
	ListReceipts(ctx context.Context, paymentID uuid.UUID) ([]*PaymentReceipt, error)

	// Booking operations
	CreateBooking(ctx context.Context, booking *Booking) error
	UpdateBooking(ctx context.Context, booking *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]*Booking, error)
	CountBookingsByStatus(ctx context.Context) (map[BookingStatus]int64, error)
	CreateReview(ctx context.Context, review *Review) error
	GetReview(ctx context.Context, bookingID, userID uuid.UUID) (*Review, error)

	// Audit operations
	CreateAuditLog(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error)

	// Outbox operations
	CreateOutboxEvent(ctx context.Context, event *OutboxEvent) error
	ListUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEventFailed(ctx context.Context, id uuid.UUID, reason string) error

	// Transaction support
	WithTransaction(ctx context.Context, fn func(context.Context, Repository) error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository accepts a *gorm.DB so callers decide the driver.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTransaction(ctx context.Context, fn func(c context.Context, r Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepository(tx))
	})
}

// forUpdate locks the selected row on drivers that support it.
func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *repository) UpdateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	return &u, r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	return &u, r.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&u).Error
}

func (r *repository) ListUsers(ctx context.Context, role Role) ([]*User, error) {
	var users []*User
	q := r.db.WithContext(ctx)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	return users, q.Order("created_at DESC").Find(&users).Error
}

func (r *repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type roleCount struct {
	Role  Role
	Count int64
}

func (r *repository) CountUsersByRole(ctx context.Context) (map[Role]int64, error) {
	var rows []roleCount
	err := r.db.WithContext(ctx).Model(&User{}).Select("role, count(*) as count").Group("role").Scan(&rows).Error
	counts := make(map[Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, err
}

func (r *repository) CreateAccessToken(ctx context.Context, t *AccessToken) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (r *repository) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	var t AccessToken
	err := r.db.WithContext(ctx).Preload("User").Where("token = ?", token).First(&t).Error
	return &t, err
}

func (r *repository) RevokeAccessToken(ctx context.Context, token string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&AccessToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at).Error
}

func (r *repository) TouchAccessToken(ctx context.Context, token string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&AccessToken{}).Where("token = ?", token).Update("last_accessed_at", at).Error
}

func (r *repository) DeleteUserAccessTokens(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&AccessToken{}).Error
}

type tokenCount struct {
	UserID uuid.UUID
	Count  int64
}

func (r *repository) CountActiveTokensByUser(ctx context.Context, now time.Time) (map[uuid.UUID]int64, error) {
	var rows []tokenCount
	err := r.db.WithContext(ctx).Model(&AccessToken{}).
		Select("user_id, count(*) as count").
		Where("revoked_at IS NULL AND expires_at > ?", now).
		Group("user_id").Scan(&rows).Error
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, err
}

func (r *repository) CreateProperty(ctx context.Context, p *Property) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) UpdateProperty(ctx context.Context, p *Property) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *repository) GetProperty(ctx context.Context, id uuid.UUID) (*Property, error) {
	var p Property
	return &p, r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error
}

func (r *repository) ListProperties(ctx context.Context, f PropertyFilter) ([]*Property, int64, error) {
	var (
		props []*Property
		total int64
	)
	q := r.db.WithContext(ctx).Model(&Property{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.HostID != nil {
		q = q.Where("host_id = ?", *f.HostID)
	}
	if f.City != "" {
		q = q.Where("lower(city) = lower(?)", f.City)
	}
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	return props, total, q.Order("created_at DESC").Find(&props).Error
}

type propertyStatusCount struct {
	Status PropertyStatus
	Count  int64
}

func (r *repository) CountPropertiesByStatus(ctx context.Context) (map[PropertyStatus]int64, error) {
	var rows []propertyStatusCount
	err := r.db.WithContext(ctx).Model(&Property{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error
	counts := make(map[PropertyStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, err
}

func (r *repository) CreateTenant(ctx context.Context, t *Tenant) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error
}

func (r *repository) UpdateTenant(ctx context.Context, t *Tenant) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(t).Error
}

func (r *repository) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *repository) ListTenantsByLandlord(ctx context.Context, landlordID uuid.UUID, status TenantStatus) ([]*Tenant, error) {
	var tenants []*Tenant
	q := r.db.WithContext(ctx).Preload("User").Where("landlord_id = ?", landlordID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return tenants, q.Order("created_at DESC").Find(&tenants).Error
}

func (r *repository) CountTenantsByStatus(ctx context.Context, status TenantStatus) (int64, error) {
	var count int64
	return count, r.db.WithContext(ctx).Model(&Tenant{}).Where("status = ?", status).Count(&count).Error
}

func (r *repository) CreateLease(ctx context.Context, l *LeaseAgreement) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) UpdateLease(ctx context.Context, l *LeaseAgreement) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *repository) GetLease(ctx context.Context, id uuid.UUID) (*LeaseAgreement, error) {
	var l LeaseAgreement
	return &l, r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&l).Error
}

func (r *repository) GetLatestLeaseForTenant(ctx context.Context, tenantID uuid.UUID) (*LeaseAgreement, error) {
	var l LeaseAgreement
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("version DESC, created_at DESC").First(&l).Error
	return &l, err
}

func (r *repository) ListLeasesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*LeaseAgreement, error) {
	var leases []*LeaseAgreement
	return leases, r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("version DESC").Find(&leases).Error
}

func (r *repository) TerminateActiveLeases(ctx context.Context, tenantID uuid.UUID, on time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&LeaseAgreement{}).
		Where("tenant_id = ? AND status = ?", tenantID, LeaseActive).
		Updates(map[string]interface{}{"status": LeaseTerminated, "termination_date": on})
	return res.RowsAffected, res.Error
}

func (r *repository) CreatePayments(ctx context.Context, payments []*RentPayment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(payments, 100).Error
}

func (r *repository) UpdatePayment(ctx context.Context, p *RentPayment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *repository) GetPayment(ctx context.Context, id uuid.UUID) (*RentPayment, error) {
	var p RentPayment
	return &p, r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error
}

func (r *repository) GetPaymentByPeriod(ctx context.Context, tenantID uuid.UUID, periodKey string) (*RentPayment, error) {
	var p RentPayment
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND period_key = ?", tenantID, periodKey).First(&p).Error
	return &p, err
}

func (r *repository) ListPaymentsByTenant(ctx context.Context, tenantID uuid.UUID) ([]*RentPayment, error) {
	var payments []*RentPayment
	return payments, r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("period_key ASC").Find(&payments).Error
}

func (r *repository) ListPaymentsByLandlord(ctx context.Context, landlordID uuid.UUID) ([]*RentPayment, error) {
	var payments []*RentPayment
	return payments, r.db.WithContext(ctx).Where("landlord_id = ?", landlordID).Order("period_key ASC").Find(&payments).Error
}

func (r *repository) ListUnsettledPaymentsDueBefore(ctx context.Context, before time.Time) ([]*RentPayment, error) {
	var payments []*RentPayment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", []PaymentStatus{PaymentPending, PaymentPartial}, before).
		Order("due_date ASC").Find(&payments).Error
	return payments, err
}

func (r *repository) CreateReceipt(ctx context.Context, receipt *PaymentReceipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *repository) GetReceiptByTransactionID(ctx context.Context, transactionID string) (*PaymentReceipt, error) {
	var receipt PaymentReceipt
	return &receipt, r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&receipt).Error
}

func (r *repository) ListReceipts(ctx context.Context, paymentID uuid.UUID) ([]*PaymentReceipt, error) {
	var receipts []*PaymentReceipt
	return receipts, r.db.WithContext(ctx).Where("rent_payment_id = ?", paymentID).Order("paid_at ASC").Find(&receipts).Error
}

func (r *repository) CreateBooking(ctx context.Context, b *Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *repository) UpdateBooking(ctx context.Context, b *Booking) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *repository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var b Booking
	return &b, r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&b).Error
}

func (r *repository) ListBookings(ctx context.Context, f BookingFilter) ([]*Booking, error) {
	var bookings []*Booking
	q := r.db.WithContext(ctx)
	if f.GuestID != nil {
		q = q.Where("guest_id = ?", *f.GuestID)
	}
	if f.HostID != nil {
		q = q.Where("host_id = ?", *f.HostID)
	}
	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return bookings, q.Order("check_in DESC").Find(&bookings).Error
}

type bookingStatusCount struct {
	Status BookingStatus
	Count  int64
}

func (r *repository) CountBookingsByStatus(ctx context.Context) (map[BookingStatus]int64, error) {
	var rows []bookingStatusCount
	err := r.db.WithContext(ctx).Model(&Booking{}).Select("status, count(*) as count").Group("status").Scan(&rows).Error
	counts := make(map[BookingStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, err
}

func (r *repository) CreateReview(ctx context.Context, review *Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) GetReview(ctx context.Context, bookingID, userID uuid.UUID) (*Review, error) {
	var review Review
	err := r.db.WithContext(ctx).Where("booking_id = ? AND user_id = ?", bookingID, userID).First(&review).Error
	return &review, err
}

func (r *repository) CreateAuditLog(ctx context.Context, entry *AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error) {
	var logs []*AuditLog
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return logs, q.Find(&logs).Error
}

func (r *repository) CreateOutboxEvent(ctx context.Context, e *OutboxEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *repository) ListUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	q := r.db.WithContext(ctx).Where("published = ?", false).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return events, q.Find(&events).Error
}

func (r *repository) MarkEventPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"published": true, "published_at": at, "last_error": ""}).Error
}

func (r *repository) MarkEventFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}
