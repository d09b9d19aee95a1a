package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/rental/internal/core"
)

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIHandlers holds all HTTP handlers
type APIHandlers struct {
	services *core.ServiceRegistry
	logger   *logrus.Logger
	checks   map[string]Pinger
}

// NewAPIHandlers creates a new handler instance
func NewAPIHandlers(services *core.ServiceRegistry, logger *logrus.Logger, checks map[string]Pinger) *APIHandlers {
	return &APIHandlers{services: services, logger: logger, checks: checks}
}

// HealthCheck returns service health status
func (h *APIHandlers) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"timestamp":    time.Now(),
		"service":      "rental-api",
		"dependencies": deps,
	})
}

// respondError maps domain errors to HTTP responses.
func (h *APIHandlers) respondError(c *gin.Context, err error) {
	var businessErr core.BusinessError
	switch {
	case errors.As(err, &businessErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": businessErr.Message, "code": businessErr.Code})
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrPropertyNotFound),
		errors.Is(err, core.ErrTenantNotFound),
		errors.Is(err, core.ErrLeaseNotFound),
		errors.Is(err, core.ErrPaymentNotFound),
		errors.Is(err, core.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrEmailTaken),
		errors.Is(err, core.ErrPropertyNotPending),
		errors.Is(err, core.ErrPropertyNotApproved),
		errors.Is(err, core.ErrTenantEnded),
		errors.Is(err, core.ErrLeaseTerminal),
		errors.Is(err, core.ErrPaymentWaived),
		errors.Is(err, core.ErrDuplicateTransaction),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrCancellationClosed),
		errors.Is(err, core.ErrPricingMismatch),
		errors.Is(err, core.ErrReviewNotAllowed),
		errors.Is(err, core.ErrReviewAlreadyExists),
		errors.Is(err, core.ErrBookingNotCheckedOut):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Auth Endpoints ---

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Session   *core.Session `json:"session"`
}

func newSessionResponse(s *core.Session) sessionResponse {
	return sessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, Session: s}
}

func (h *APIHandlers) SignUp(c *gin.Context) {
	var req core.SignUpInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}

	user, session, err := h.services.Authentication.SignUp(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"token":   session.Token,
		"session": session,
	})
}

func (h *APIHandlers) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}

	session, err := h.services.Authentication.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(session))
}

func (h *APIHandlers) SignOut(c *gin.Context) {
	if err := h.services.Authentication.SignOut(c.Request.Context(), currentSession(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

func (h *APIHandlers) Me(c *gin.Context) {
	user, err := h.services.Authentication.Profile(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Property Endpoints ---

type submitPropertyRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	City        string          `json:"city"`
	Address     string          `json:"address"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
}

func (h *APIHandlers) SubmitProperty(c *gin.Context) {
	var req submitPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}

	property, err := h.services.Moderation.SubmitProperty(c.Request.Context(), currentSession(c), core.SubmitPropertyInput{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Address:     req.Address,
		MonthlyRent: req.MonthlyRent,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, property)
}

func (h *APIHandlers) listProperties(c *gin.Context, filter core.PropertyFilter) {
	filter.City = c.Query("city")
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	properties, total, err := h.services.Moderation.ListProperties(c.Request.Context(), currentSession(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": properties,
		"count":      len(properties),
		"total":      total,
	})
}

// ListProperties lists approved listings.
func (h *APIHandlers) ListProperties(c *gin.Context) {
	h.listProperties(c, core.PropertyFilter{})
}

// ListMyProperties lists the host's own listings in every status.
func (h *APIHandlers) ListMyProperties(c *gin.Context) {
	id := currentSession(c).UserID
	h.listProperties(c, core.PropertyFilter{HostID: &id, Status: core.PropertyStatus(c.Query("status"))})
}

// AdminListProperties lists listings in any status.
func (h *APIHandlers) AdminListProperties(c *gin.Context) {
	h.listProperties(c, core.PropertyFilter{Status: core.PropertyStatus(c.Query("status"))})
}

func (h *APIHandlers) GetProperty(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	property, err := h.services.Moderation.GetProperty(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// --- Moderation Endpoints ---

type rejectRequest struct {
	Category string `json:"category" binding:"required"`
	Notes    string `json:"notes"`
}

type bulkRequest struct {
	PropertyIDs []uuid.UUID `json:"property_ids" binding:"required,min=1"`
	Category    string      `json:"category"`
	Notes       string      `json:"notes"`
}

func (h *APIHandlers) ApproveProperty(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	property, err := h.services.Moderation.ApproveProperty(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *APIHandlers) RejectProperty(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "a rejection category is required", err)
		return
	}

	property, err := h.services.Moderation.RejectProperty(c.Request.Context(), currentSession(c), id, core.RejectionCategory(req.Category), req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *APIHandlers) BulkApproveProperties(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	report, err := h.services.Moderation.BulkApprove(c.Request.Context(), currentSession(c), req.PropertyIDs)
	h.respondBulk(c, report, err)
}

func (h *APIHandlers) BulkRejectProperties(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	report, err := h.services.Moderation.BulkReject(c.Request.Context(), currentSession(c), req.PropertyIDs, core.RejectionCategory(req.Category), req.Notes)
	h.respondBulk(c, report, err)
}

// respondBulk answers 207 when only some items went through.
func (h *APIHandlers) respondBulk(c *gin.Context, report *core.BulkReport, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if !report.AllSucceeded() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

func (h *APIHandlers) RejectionCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": core.RejectionCategories})
}

// --- Tenancy Endpoints ---

type createTenantRequest struct {
	PropertyID         uuid.UUID        `json:"property_id" binding:"required"`
	UserID             *uuid.UUID       `json:"user_id"`
	TenantName         string           `json:"tenant_name"`
	TenantPhone        string           `json:"tenant_phone"`
	TenantEmail        string           `json:"tenant_email"`
	LeaseStartDate     string           `json:"lease_start_date" binding:"required"`
	LeaseEndDate       string           `json:"lease_end_date" binding:"required"`
	MonthlyRent        decimal.Decimal  `json:"monthly_rent"`
	SecurityDeposit    *decimal.Decimal `json:"security_deposit"`
	RentDueDay         *int             `json:"rent_due_day"`
	LateFeeAmount      *decimal.Decimal `json:"late_fee_amount"`
	LateFeeGracePeriod *int             `json:"late_fee_grace_period"`
	AgreementType      string           `json:"agreement_type"`
	MoveInDate         string           `json:"move_in_date"`
}

func (h *APIHandlers) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	start, err := parseDate(req.LeaseStartDate)
	if err != nil {
		badRequest(c, "invalid lease_start_date", err)
		return
	}
	end, err := parseDate(req.LeaseEndDate)
	if err != nil {
		badRequest(c, "invalid lease_end_date", err)
		return
	}
	moveIn, err := parseOptionalDate(req.MoveInDate)
	if err != nil {
		badRequest(c, "invalid move_in_date", err)
		return
	}

	result, err := h.services.Tenancy.CreateTenant(c.Request.Context(), currentSession(c), core.CreateTenantInput{
		PropertyID:         req.PropertyID,
		UserID:             req.UserID,
		TenantName:         req.TenantName,
		TenantPhone:        req.TenantPhone,
		TenantEmail:        req.TenantEmail,
		LeaseStartDate:     start,
		LeaseEndDate:       end,
		MonthlyRent:        req.MonthlyRent,
		SecurityDeposit:    req.SecurityDeposit,
		RentDueDay:         req.RentDueDay,
		LateFeeAmount:      req.LateFeeAmount,
		LateFeeGracePeriod: req.LateFeeGracePeriod,
		AgreementType:      req.AgreementType,
		MoveInDate:         moveIn,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *APIHandlers) ListTenants(c *gin.Context) {
	filter := core.TenantFilter{Status: core.TenantStatus(c.Query("status"))}
	if raw := c.Query("landlord_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid landlord_id", nil)
			return
		}
		filter.LandlordID = &id
	}

	tenants, err := h.services.Tenancy.ListTenants(c.Request.Context(), currentSession(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

func (h *APIHandlers) GetTenant(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	details, err := h.services.Tenancy.GetTenant(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

type endTenancyRequest struct {
	MoveOutDate string   `json:"move_out_date"`
	Notes       string   `json:"notes"`
	Photos      []string `json:"photos"`
}

func (h *APIHandlers) EndTenancy(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req endTenancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	moveOut, err := parseOptionalDate(req.MoveOutDate)
	if err != nil {
		badRequest(c, "invalid move_out_date", err)
		return
	}

	tenant, err := h.services.Tenancy.EndTenancy(c.Request.Context(), currentSession(c), id, core.EndTenancyInput{
		MoveOutDate: moveOut,
		Notes:       req.Notes,
		Photos:      req.Photos,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *APIHandlers) GenerateSchedule(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.services.Tenancy.GeneratePaymentSchedule(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"created":  len(payments),
	})
}

func (h *APIHandlers) ListPayments(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.services.Tenancy.ListPayments(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"count":    len(payments),
	})
}

type recordPaymentRequest struct {
	PaymentMonth  string           `json:"payment_month" binding:"required"`
	AmountPaid    decimal.Decimal  `json:"amount_paid"`
	LateFee       *decimal.Decimal `json:"late_fee"`
	PaymentMethod string           `json:"payment_method"`
	TransactionID string           `json:"transaction_id"`
	PaymentDate   string           `json:"payment_date"`
	Notes         string           `json:"notes"`
}

func (h *APIHandlers) RecordPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	paidAt, err := parseOptionalDate(req.PaymentDate)
	if err != nil {
		badRequest(c, "invalid payment_date", err)
		return
	}

	payment, err := h.services.Tenancy.RecordPayment(c.Request.Context(), currentSession(c), core.RecordPaymentInput{
		TenantID:      id,
		PaymentMonth:  req.PaymentMonth,
		AmountPaid:    req.AmountPaid,
		LateFee:       req.LateFee,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		PaymentDate:   paidAt,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type waiveRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandlers) WaivePayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req waiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	payment, err := h.services.Tenancy.WaivePayment(c.Request.Context(), currentSession(c), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type lateFeeRequest struct {
	LateFee decimal.Decimal `json:"late_fee"`
}

func (h *APIHandlers) AddLateFee(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req lateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	payment, err := h.services.Tenancy.AddLateFee(c.Request.Context(), currentSession(c), id, req.LateFee)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *APIHandlers) ListReceipts(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	receipts, err := h.services.Tenancy.ListReceipts(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}

func (h *APIHandlers) TenantContact(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	links, err := h.services.Tenancy.TenantContact(c.Request.Context(), currentSession(c), id, c.Query("message"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *APIHandlers) LandlordStats(c *gin.Context) {
	var landlordID *uuid.UUID
	if raw := c.Query("landlord_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid landlord_id", nil)
			return
		}
		landlordID = &id
	}
	stats, err := h.services.Tenancy.LandlordStats(c.Request.Context(), currentSession(c), landlordID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type signLeaseRequest struct {
	Party string `json:"party" binding:"required"`
}

func (h *APIHandlers) SignLease(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req signLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "party is required", err)
		return
	}
	party, err := core.ParseSigningParty(req.Party)
	if err != nil {
		h.respondError(c, err)
		return
	}

	lease, err := h.services.Tenancy.SignLease(c.Request.Context(), currentSession(c), id, party)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lease)
}

// --- Booking Endpoints ---

type stayRequest struct {
	PropertyID uuid.UUID `json:"property_id" binding:"required"`
	CheckIn    string    `json:"check_in" binding:"required"`
	CheckOut   string    `json:"check_out" binding:"required"`
}

func (r stayRequest) dates() (time.Time, time.Time, error) {
	in, err := parseDate(r.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := parseDate(r.CheckOut)
	return in, out, err
}

type createBookingRequest struct {
	stayRequest
	SpecialRequests string           `json:"special_requests"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
}

func (h *APIHandlers) QuoteBooking(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		badRequest(c, "invalid stay dates", err)
		return
	}

	quote, err := h.services.Bookings.Quote(c.Request.Context(), req.PropertyID, checkIn, checkOut)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *APIHandlers) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	checkIn, checkOut, err := req.dates()
	if err != nil {
		badRequest(c, "invalid stay dates", err)
		return
	}

	booking, err := h.services.Bookings.CreateBooking(c.Request.Context(), currentSession(c), core.CreateBookingInput{
		PropertyID:      req.PropertyID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		SpecialRequests: req.SpecialRequests,
		ExpectedTotal:   req.TotalAmount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *APIHandlers) ListBookings(c *gin.Context) {
	bookings, err := h.services.Bookings.ListBookings(c.Request.Context(), currentSession(c),
		core.BookingView(c.DefaultQuery("as", string(core.ViewGuest))),
		core.BookingStatus(c.Query("status")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

func (h *APIHandlers) GetBooking(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	booking, err := h.services.Bookings.GetBooking(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking":    booking,
		"can_cancel": h.services.Bookings.Cancellable(booking),
	})
}

func (h *APIHandlers) ConfirmBooking(c *gin.Context) {
	h.bookingTransition(c, h.services.Bookings.ConfirmBooking)
}

func (h *APIHandlers) CompleteBooking(c *gin.Context) {
	h.bookingTransition(c, h.services.Bookings.CompleteBooking)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandlers) CancelBooking(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	h.bookingTransition(c, func(ctx context.Context, actor *core.Session, id uuid.UUID) (*core.Booking, error) {
		return h.services.Bookings.CancelBooking(ctx, actor, id, req.Reason)
	})
}

func (h *APIHandlers) bookingTransition(c *gin.Context, fn func(context.Context, *core.Session, uuid.UUID) (*core.Booking, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	booking, err := fn(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func (h *APIHandlers) CreateReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}
	review, err := h.services.Bookings.CreateReview(c.Request.Context(), currentSession(c), id, core.CreateReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// --- Admin Endpoints ---

func (h *APIHandlers) DashboardStats(c *gin.Context) {
	stats, err := h.services.Admin.DashboardStats(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIHandlers) ListUsers(c *gin.Context) {
	users, err := h.services.Admin.ListUsersWithAuthData(c.Request.Context(), currentSession(c), core.Role(c.Query("role")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *APIHandlers) GetUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.services.Admin.GetUserWithAuthData(c.Request.Context(), currentSession(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *APIHandlers) DeleteUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.services.Admin.DeleteUser(c.Request.Context(), currentSession(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

type auditRequest struct {
	Action       string          `json:"action" binding:"required"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Before       json.RawMessage `json:"before"`
	After        json.RawMessage `json:"after"`
}

func (h *APIHandlers) LogAdminAction(c *gin.Context) {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format", err)
		return
	}

	var before, after interface{}
	if len(req.Before) > 0 {
		before = req.Before
	}
	if len(req.After) > 0 {
		after = req.After
	}

	entry, err := h.services.Admin.LogAdminAction(c.Request.Context(), currentSession(c), req.Action, req.ResourceType, req.ResourceID, before, after)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *APIHandlers) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.services.Admin.ListAuditLogs(c.Request.Context(), currentSession(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs, "count": len(logs)})
}
