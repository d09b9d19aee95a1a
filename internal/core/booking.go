// services/rental/internal/core/booking.go
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"example.com/backstage/services/rental/internal/metrics"
	"example.com/backstage/services/rental/internal/utils"
)

// CreateBookingInput is a guest's reservation request. ExpectedTotal is the
// total the client displayed; when present it must match the server price.
type CreateBookingInput struct {
	PropertyID      uuid.UUID
	CheckIn         time.Time
	CheckOut        time.Time
	SpecialRequests string
	ExpectedTotal   *decimal.Decimal
}

// CreateReviewInput rates a completed stay.
type CreateReviewInput struct {
	Rating  int
	Comment string
}

// BookingView selects which side of bookings to list.
type BookingView string

const (
	ViewGuest BookingView = "guest"
	ViewHost  BookingView = "host"
)

// --- Booking Service Implementation ---

type BookingService struct {
	store              Repository
	events             *EventDispatcher
	logger             *logrus.Logger
	commissionRate     decimal.Decimal
	cancellationWindow int
	now                func() time.Time
}

func NewBookingService(store Repository, events *EventDispatcher, logger *logrus.Logger, commissionRate float64, cancellationWindowDays int, now func() time.Time) *BookingService {
	return &BookingService{
		store:              store,
		events:             events,
		logger:             logger,
		commissionRate:     decimal.NewFromFloat(commissionRate),
		cancellationWindow: cancellationWindowDays,
		now:                now,
	}
}

func (s *BookingService) today() time.Time {
	return utils.DateOnly(s.now())
}

// CommissionRate is the platform fee applied to new bookings.
func (s *BookingService) CommissionRate() decimal.Decimal {
	return s.commissionRate
}

// Cancellable reports whether the booking can still be cancelled today.
func (s *BookingService) Cancellable(b *Booking) bool {
	return CanCancel(b, s.today(), s.cancellationWindow)
}

func validateStay(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return validationError("BOOKING_001", "check-in and check-out dates are required")
	}
	if !utils.DateOnly(checkOut).After(utils.DateOnly(checkIn)) {
		return validationError("BOOKING_001", "check-out must be after check-in")
	}
	return nil
}

// Quote prices a stay at a property with the current commission rate.
func (s *BookingService) Quote(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut time.Time) (BookingQuote, error) {
	if err := validateStay(checkIn, checkOut); err != nil {
		return BookingQuote{}, err
	}
	property, err := s.getProperty(ctx, s.store, propertyID)
	if err != nil {
		return BookingQuote{}, err
	}
	if property.Status != PropertyApproved {
		return BookingQuote{}, ErrPropertyNotApproved
	}
	return ComputeBooking(property.MonthlyRent, utils.DateOnly(checkIn), utils.DateOnly(checkOut), s.commissionRate), nil
}

// CreateBooking prices the stay server-side and opens a pending booking.
func (s *BookingService) CreateBooking(ctx context.Context, actor *Session, in CreateBookingInput) (*Booking, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if err := validateStay(in.CheckIn, in.CheckOut); err != nil {
		return nil, err
	}
	checkIn, checkOut := utils.DateOnly(in.CheckIn), utils.DateOnly(in.CheckOut)
	if checkIn.Before(s.today()) {
		return nil, validationError("BOOKING_002", "check-in date is in the past")
	}

	property, err := s.getProperty(ctx, s.store, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if property.Status != PropertyApproved {
		return nil, ErrPropertyNotApproved
	}
	if property.HostID == actor.UserID {
		return nil, ErrForbidden
	}

	quote := ComputeBooking(property.MonthlyRent, checkIn, checkOut, s.commissionRate)
	if in.ExpectedTotal != nil && !in.ExpectedTotal.Equal(quote.TotalAmount) {
		s.logger.WithFields(logrus.Fields{
			"property_id": property.ID,
			"expected":    in.ExpectedTotal.String(),
			"computed":    quote.TotalAmount.String(),
		}).Warn("Booking total mismatch")
		return nil, ErrPricingMismatch
	}

	booking := &Booking{
		PropertyID:      property.ID,
		GuestID:         actor.UserID,
		HostID:          property.HostID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Status:          BookingPending,
		SpecialRequests: strings.TrimSpace(in.SpecialRequests),
	}
	quote.Apply(booking)

	var event *OutboxEvent
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		event, err = s.events.Record(ctx, tx, TopicBookingCreated, booking.ID, bookingPayload(booking))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	metrics.BookingTransitions.WithLabelValues(string(BookingPending)).Inc()

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"property_id": booking.PropertyID,
		"guest_id":    booking.GuestID,
		"months":      booking.Months,
		"total":       booking.TotalAmount.String(),
	}).Info("Booking created")

	return booking, nil
}

// ConfirmBooking is the host accepting a pending booking.
func (s *BookingService) ConfirmBooking(ctx context.Context, actor *Session, bookingID uuid.UUID) (*Booking, error) {
	return s.transition(ctx, actor, bookingID, TopicBookingConfirmed, func(b *Booking) error {
		if actor.UserID != b.HostID {
			return ErrForbidden
		}
		if b.Status != BookingPending {
			return ErrInvalidTransition
		}
		now := s.now()
		b.Status = BookingConfirmed
		b.ConfirmedAt = &now
		return nil
	})
}

// CompleteBooking closes a confirmed booking once check-out has passed.
func (s *BookingService) CompleteBooking(ctx context.Context, actor *Session, bookingID uuid.UUID) (*Booking, error) {
	return s.transition(ctx, actor, bookingID, TopicBookingCompleted, func(b *Booking) error {
		if !actor.owns(b.HostID) {
			return ErrForbidden
		}
		if b.Status != BookingConfirmed {
			return ErrInvalidTransition
		}
		if s.today().Before(b.CheckOut) {
			return ErrBookingNotCheckedOut
		}
		now := s.now()
		b.Status = BookingCompleted
		b.CompletedAt = &now
		return nil
	})
}

// CancelBooking cancels on behalf of the guest or the host while the
// cancellation window is still open.
func (s *BookingService) CancelBooking(ctx context.Context, actor *Session, bookingID uuid.UUID, reason string) (*Booking, error) {
	return s.transition(ctx, actor, bookingID, TopicBookingCancelled, func(b *Booking) error {
		if actor.UserID != b.GuestID && actor.UserID != b.HostID {
			return ErrForbidden
		}
		if b.Status != BookingPending && b.Status != BookingConfirmed {
			return ErrInvalidTransition
		}
		if !CanCancel(b, s.today(), s.cancellationWindow) {
			return ErrCancellationClosed
		}
		now := s.now()
		by := actor.UserID
		b.Status = BookingCancelled
		b.CancellationReason = strings.TrimSpace(reason)
		b.CancellationDate = &now
		b.CancelledBy = &by
		return nil
	})
}

func (s *BookingService) transition(ctx context.Context, actor *Session, bookingID uuid.UUID, topic string, apply func(*Booking) error) (*Booking, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}

	var (
		booking *Booking
		event   *OutboxEvent
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		from := b.Status
		if err := apply(b); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}

		payload := bookingPayload(b)
		payload["from"] = from
		payload["actor_id"] = actor.UserID
		event, err = s.events.Record(ctx, tx, topic, b.ID, payload)
		booking = b
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event)
	metrics.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"status":     booking.Status,
		"actor_id":   actor.UserID,
	}).Info("Booking status changed")

	return booking, nil
}

// GetBooking is visible to the guest, the host and admins.
func (s *BookingService) GetBooking(ctx context.Context, actor *Session, bookingID uuid.UUID) (*Booking, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if actor.UserID != b.GuestID && !actor.owns(b.HostID) {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListBookings lists the actor's bookings as guest or as host.
func (s *BookingService) ListBookings(ctx context.Context, actor *Session, view BookingView, status BookingStatus) ([]*Booking, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	filter := BookingFilter{Status: status}
	id := actor.UserID
	switch view {
	case ViewHost:
		filter.HostID = &id
	case ViewGuest, "":
		filter.GuestID = &id
	default:
		return nil, validationError("BOOKING_004", "unknown booking view %q", view)
	}
	return s.store.ListBookings(ctx, filter)
}

// CreateReview rates a completed stay, once per guest.
func (s *BookingService) CreateReview(ctx context.Context, actor *Session, bookingID uuid.UUID, in CreateReviewInput) (*Review, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, validationError("REVIEW_001", "rating must be between 1 and 5")
	}

	var review *Review
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Repository) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if b.GuestID != actor.UserID {
			return ErrForbidden
		}

		_, err = tx.GetReview(ctx, b.ID, actor.UserID)
		reviewed := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if reviewed {
			return ErrReviewAlreadyExists
		}
		if !CanReview(b, reviewed) {
			return ErrReviewNotAllowed
		}

		review = &Review{
			BookingID:  b.ID,
			UserID:     actor.UserID,
			PropertyID: b.PropertyID,
			Rating:     in.Rating,
			Comment:    strings.TrimSpace(in.Comment),
		}
		return tx.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"rating":     review.Rating,
	}).Info("Review created")

	return review, nil
}

func (s *BookingService) getProperty(ctx context.Context, store Repository, id uuid.UUID) (*Property, error) {
	property, err := store.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return property, nil
}

func bookingPayload(b *Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":   b.ID,
		"property_id":  b.PropertyID,
		"guest_id":     b.GuestID,
		"host_id":      b.HostID,
		"check_in":     b.CheckIn.Format("2006-01-02"),
		"check_out":    b.CheckOut.Format("2006-01-02"),
		"months":       b.Months,
		"total_amount": b.TotalAmount,
		"status":       b.Status,
	}
}
