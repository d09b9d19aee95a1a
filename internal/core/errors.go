// services/rental/internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Business errors.
var (
	// Auth errors.
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("not permitted for this account")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrUserNotFound       = errors.New("user not found")

	// Property errors.
	ErrPropertyNotFound    = errors.New("property not found")
	ErrPropertyNotPending  = errors.New("property is not awaiting review")
	ErrPropertyNotApproved = errors.New("property is not approved")

	// Tenancy errors.
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantEnded          = errors.New("tenancy already ended")
	ErrLeaseNotFound        = errors.New("lease agreement not found")
	ErrLeaseTerminal        = errors.New("lease agreement is terminated or expired")
	ErrPaymentNotFound      = errors.New("rent payment not found")
	ErrPaymentWaived        = errors.New("rent payment has been waived")
	ErrDuplicateTransaction = errors.New("transaction already recorded")

	// Booking errors.
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrCancellationClosed   = errors.New("booking can no longer be cancelled")
	ErrPricingMismatch      = errors.New("submitted total does not match computed price")
	ErrReviewNotAllowed     = errors.New("booking is not eligible for review")
	ErrReviewAlreadyExists  = errors.New("review already submitted for this booking")
	ErrBookingNotCheckedOut = errors.New("booking has not reached check-out")
)

// BusinessError represents a business logic error with a code.
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationError(code, format string, args ...interface{}) error {
	return BusinessError{Code: code, Message: fmt.Sprintf(format, args...)}
}
