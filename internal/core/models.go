// services/rental/internal/core/models.go
package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the platform role carried by a user's session.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// User is a platform account.
type User struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email            string     `json:"email" gorm:"uniqueIndex;not null"`
	FullName         string     `json:"full_name"`
	Phone            string     `json:"phone"`
	Role             Role       `json:"role" gorm:"index;not null;default:guest"`
	PasswordHash     string     `json:"-" gorm:"not null"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	LastSignInAt     *time.Time `json:"last_sign_in_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AccessToken is the persisted form of a session.
type AccessToken struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Token          string     `json:"-" gorm:"uniqueIndex;not null"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;index;not null"`
	ExpiresAt      time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt      *time.Time `json:"revoked_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	User           User       `json:"-" gorm:"foreignKey:UserID"`
}

// PropertyStatus is the moderation state of a listing.
type PropertyStatus string

const (
	PropertyPending  PropertyStatus = "pending"
	PropertyApproved PropertyStatus = "approved"
	PropertyRejected PropertyStatus = "rejected"
)

// Property is a host-submitted listing.
type Property struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	HostID          uuid.UUID       `json:"host_id" gorm:"type:uuid;index;not null"`
	Title           string          `json:"title" gorm:"not null"`
	Description     string          `json:"description"`
	City            string          `json:"city" gorm:"index"`
	Address         string          `json:"address"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent" gorm:"type:numeric(14,2);not null"`
	Status          PropertyStatus  `json:"status" gorm:"index;not null;default:pending"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID      `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TenantStatus is the occupancy state of a tenant record.
type TenantStatus string

const (
	TenantActive TenantStatus = "active"
	TenantEnded  TenantStatus = "ended"
)

// Tenant is an occupant assigned to a property under a landlord. Occupants
// either have a platform account (UserID set) or are recorded inline.
type Tenant struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID      uuid.UUID       `json:"property_id" gorm:"type:uuid;index;not null"`
	LandlordID      uuid.UUID       `json:"landlord_id" gorm:"type:uuid;index;not null"`
	UserID          *uuid.UUID      `json:"user_id,omitempty" gorm:"type:uuid;index"`
	TenantName      string          `json:"tenant_name,omitempty"`
	TenantPhone     string          `json:"tenant_phone,omitempty"`
	TenantEmail     string          `json:"tenant_email,omitempty"`
	LeaseStartDate  time.Time       `json:"lease_start_date" gorm:"type:date;not null"`
	LeaseEndDate    time.Time       `json:"lease_end_date" gorm:"type:date;not null"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent" gorm:"type:numeric(14,2);not null"`
	SecurityDeposit decimal.Decimal `json:"security_deposit" gorm:"type:numeric(14,2);not null;default:0"`
	Status          TenantStatus    `json:"status" gorm:"index;not null;default:active"`
	MoveInDate      *time.Time      `json:"move_in_date,omitempty" gorm:"type:date"`
	MoveOutDate     *time.Time      `json:"move_out_date,omitempty" gorm:"type:date"`
	MoveOutNotes    string          `json:"move_out_notes,omitempty"`
	MoveOutPhotos   datatypes.JSON  `json:"move_out_photos,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	User            *User           `json:"-" gorm:"foreignKey:UserID"`
	Property        *Property       `json:"-" gorm:"foreignKey:PropertyID"`

	// IsLateOnRent is projected from the tenant's payments at read time.
	IsLateOnRent bool `json:"is_late_on_rent" gorm:"-"`
}

// TenantKind discriminates the two tenant identity forms.
type TenantKind string

const (
	TenantLinked      TenantKind = "linked"
	TenantIndependent TenantKind = "independent"
)

// TenantIdentity is the display identity of a tenant.
type TenantIdentity struct {
	Kind   TenantKind `json:"kind"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string     `json:"name"`
	Phone  string     `json:"phone,omitempty"`
	Email  string     `json:"email,omitempty"`
}

// Identity resolves the tenant's identity variant. Linked tenants take their
// contact fields from the account when it has been loaded.
func (t *Tenant) Identity() TenantIdentity {
	if t.UserID != nil {
		id := TenantIdentity{Kind: TenantLinked, UserID: t.UserID}
		if t.User != nil {
			id.Name = t.User.FullName
			id.Phone = t.User.Phone
			id.Email = t.User.Email
		}
		return id
	}
	return TenantIdentity{
		Kind:  TenantIndependent,
		Name:  t.TenantName,
		Phone: t.TenantPhone,
		Email: t.TenantEmail,
	}
}

// LeaseStatus is the signature lifecycle of a lease.
type LeaseStatus string

const (
	LeaseDraft            LeaseStatus = "draft"
	LeasePendingSignature LeaseStatus = "pending_signature"
	LeaseActive           LeaseStatus = "active"
	LeaseTerminated       LeaseStatus = "terminated"
	LeaseExpired          LeaseStatus = "expired"
)

// LeaseAgreement is a versioned contract between landlord and tenant.
type LeaseAgreement struct {
	ID                    uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID              uuid.UUID       `json:"tenant_id" gorm:"type:uuid;index;not null"`
	PropertyID            uuid.UUID       `json:"property_id" gorm:"type:uuid;index;not null"`
	LandlordID            uuid.UUID       `json:"landlord_id" gorm:"type:uuid;index;not null"`
	Version               int             `json:"version" gorm:"not null;default:1"`
	AgreementType         string          `json:"agreement_type" gorm:"not null;default:fixed_term"`
	StartDate             time.Time       `json:"start_date" gorm:"type:date;not null"`
	EndDate               time.Time       `json:"end_date" gorm:"type:date;not null"`
	MonthlyRent           decimal.Decimal `json:"monthly_rent" gorm:"type:numeric(14,2);not null"`
	SecurityDeposit       decimal.Decimal `json:"security_deposit" gorm:"type:numeric(14,2);not null;default:0"`
	RentDueDay            int             `json:"rent_due_day" gorm:"not null;default:1"`
	LateFeeAmount         decimal.Decimal `json:"late_fee_amount" gorm:"type:numeric(14,2);not null;default:0"`
	LateFeeGracePeriod    int             `json:"late_fee_grace_period" gorm:"not null"`
	LandlordSigned        bool            `json:"landlord_signed" gorm:"not null;default:false"`
	TenantSigned          bool            `json:"tenant_signed" gorm:"not null;default:false"`
	LandlordSignatureDate *time.Time      `json:"landlord_signature_date,omitempty"`
	TenantSignatureDate   *time.Time      `json:"tenant_signature_date,omitempty"`
	Status                LeaseStatus     `json:"status" gorm:"index;not null;default:draft"`
	TerminationDate       *time.Time      `json:"termination_date,omitempty" gorm:"type:date"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// PaymentStatus is the collection state of a rent period.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentLate    PaymentStatus = "late"
	PaymentWaived  PaymentStatus = "waived"
)

// RentPayment is one billing period for a tenant.
type RentPayment struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_rent_payment_period"`
	PropertyID    uuid.UUID       `json:"property_id" gorm:"type:uuid;index;not null"`
	LandlordID    uuid.UUID       `json:"landlord_id" gorm:"type:uuid;index;not null"`
	PeriodKey     string          `json:"period_key" gorm:"size:7;not null;uniqueIndex:idx_rent_payment_period"`
	PaymentMonth  time.Time       `json:"payment_month" gorm:"type:date;not null"`
	DueDate       time.Time       `json:"due_date" gorm:"type:date;index;not null"`
	AmountDue     decimal.Decimal `json:"amount_due" gorm:"type:numeric(14,2);not null"`
	AmountPaid    decimal.Decimal `json:"amount_paid" gorm:"type:numeric(14,2);not null;default:0"`
	LateFee       decimal.Decimal `json:"late_fee" gorm:"type:numeric(14,2);not null;default:0"`
	IsLate        bool            `json:"is_late" gorm:"not null;default:false"`
	Status        PaymentStatus   `json:"status" gorm:"index;not null;default:pending"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentReceipt records a single amount applied to a rent period.
type PaymentReceipt struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	RentPaymentID uuid.UUID       `json:"rent_payment_id" gorm:"type:uuid;index;not null"`
	TenantID      uuid.UUID       `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID *string         `json:"transaction_id,omitempty" gorm:"uniqueIndex"`
	RecordedBy    *uuid.UUID      `json:"recorded_by,omitempty" gorm:"type:uuid"`
	PaidAt        time.Time       `json:"paid_at" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BookingStatus is the reservation lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a guest's reservation request against a property.
type Booking struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID         uuid.UUID       `json:"property_id" gorm:"type:uuid;index;not null"`
	GuestID            uuid.UUID       `json:"guest_id" gorm:"type:uuid;index;not null"`
	HostID             uuid.UUID       `json:"host_id" gorm:"type:uuid;index;not null"`
	CheckIn            time.Time       `json:"check_in" gorm:"type:date;not null"`
	CheckOut           time.Time       `json:"check_out" gorm:"type:date;not null"`
	Months             int             `json:"months" gorm:"not null"`
	MonthlyRent        decimal.Decimal `json:"monthly_rent" gorm:"type:numeric(14,2);not null"`
	Subtotal           decimal.Decimal `json:"subtotal" gorm:"type:numeric(14,2);not null"`
	CommissionRate     decimal.Decimal `json:"commission_rate" gorm:"type:numeric(6,4);not null"`
	ServiceFee         decimal.Decimal `json:"service_fee" gorm:"type:numeric(14,2);not null"`
	TotalAmount        decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null"`
	Status             BookingStatus   `json:"status" gorm:"index;not null;default:pending"`
	SpecialRequests    string          `json:"special_requests,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CancellationDate   *time.Time      `json:"cancellation_date,omitempty"`
	CancelledBy        *uuid.UUID      `json:"cancelled_by,omitempty" gorm:"type:uuid"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Review is a guest's rating of a completed stay.
type Review struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID  uuid.UUID `json:"booking_id" gorm:"type:uuid;not null;uniqueIndex:idx_review_booking_user"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_review_booking_user"`
	PropertyID uuid.UUID `json:"property_id" gorm:"type:uuid;index;not null"`
	Rating     int       `json:"rating" gorm:"not null"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditLog records an administrative action.
type AuditLog struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AdminID      uuid.UUID      `json:"admin_id" gorm:"type:uuid;index;not null"`
	Action       string         `json:"action" gorm:"size:64;index;not null"`
	ResourceType string         `json:"resource_type" gorm:"size:64;index"`
	ResourceID   string         `json:"resource_id" gorm:"size:64;index"`
	Before       datatypes.JSON `json:"before,omitempty"`
	After        datatypes.JSON `json:"after,omitempty"`
	IPAddress    string         `json:"ip_address" gorm:"size:64"`
	CreatedAt    time.Time      `json:"created_at"`
}

// OutboxEvent is a domain event waiting to be published.
type OutboxEvent struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Topic       string         `json:"topic" gorm:"index;not null"`
	AggregateID uuid.UUID      `json:"aggregate_id" gorm:"type:uuid;index;not null"`
	Payload     datatypes.JSON `json:"payload"`
	Published   bool           `json:"published" gorm:"default:false;index"`
	PublishedAt *time.Time     `json:"published_at"`
	Attempts    int            `json:"attempts" gorm:"default:0"`
	LastError   string         `json:"last_error"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// TableName overrides for GORM
func (User) TableName() string           { return "users" }
func (AccessToken) TableName() string    { return "access_tokens" }
func (Property) TableName() string       { return "properties" }
func (Tenant) TableName() string         { return "tenants" }
func (LeaseAgreement) TableName() string { return "lease_agreements" }
func (RentPayment) TableName() string    { return "rent_payments" }
func (PaymentReceipt) TableName() string { return "payment_receipts" }
func (Booking) TableName() string        { return "bookings" }
func (Review) TableName() string         { return "reviews" }
func (AuditLog) TableName() string       { return "audit_logs" }
func (OutboxEvent) TableName() string    { return "outbox_events" }

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&AccessToken{},
		&Property{},
		&Tenant{},
		&LeaseAgreement{},
		&RentPayment{},
		&PaymentReceipt{},
		&Booking{},
		&Review{},
		&AuditLog{},
		&OutboxEvent{},
	}
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error           { assignID(&u.ID); return nil }
func (t *AccessToken) BeforeCreate(*gorm.DB) error    { assignID(&t.ID); return nil }
func (p *Property) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (t *Tenant) BeforeCreate(*gorm.DB) error         { assignID(&t.ID); return nil }
func (l *LeaseAgreement) BeforeCreate(*gorm.DB) error { assignID(&l.ID); return nil }
func (p *RentPayment) BeforeCreate(*gorm.DB) error    { assignID(&p.ID); return nil }
func (r *PaymentReceipt) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (b *Booking) BeforeCreate(*gorm.DB) error        { assignID(&b.ID); return nil }
func (r *Review) BeforeCreate(*gorm.DB) error         { assignID(&r.ID); return nil }
func (a *AuditLog) BeforeCreate(*gorm.DB) error       { assignID(&a.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error    { assignID(&e.ID); return nil }
