package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	host     *Session
	guest    *Session
	property *Property
}

func newBookingFixture(t *testing.T, env *testEnv) bookingFixture {
	t.Helper()
	host, hostSession := env.createUser(t, RoleHost, "Host")
	_, guestSession := env.createUser(t, RoleGuest, "Guest")
	property := env.createProperty(t, host.ID, "500000", PropertyApproved)
	return bookingFixture{host: hostSession, guest: guestSession, property: property}
}

func (f bookingFixture) book(t *testing.T, env *testEnv, checkIn, checkOut time.Time) *Booking {
	t.Helper()
	b, err := env.services.Bookings.CreateBooking(env.ctx, f.guest, CreateBookingInput{
		PropertyID: f.property.ID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	require.NoError(t, err)
	return b
}

func TestQuoteBooking(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)

	q, err := env.services.Bookings.Quote(env.ctx, f.property.ID, day(2024, 2, 1), day(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, q.Months)
	assertDecimal(t, "1000000", q.Subtotal)
	assertDecimal(t, "100000", q.ServiceFee)
	assertDecimal(t, "1100000", q.TotalAmount)

	_, err = env.services.Bookings.Quote(env.ctx, f.property.ID, day(2024, 4, 1), day(2024, 2, 1))
	requireCode(t, err, "BOOKING_001")

	pending := env.createProperty(t, f.host.UserID, "300000", PropertyPending)
	_, err = env.services.Bookings.Quote(env.ctx, pending.ID, day(2024, 2, 1), day(2024, 4, 1))
	assert.ErrorIs(t, err, ErrPropertyNotApproved)

	_, err = env.services.Bookings.Quote(env.ctx, uuid.New(), day(2024, 2, 1), day(2024, 4, 1))
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestCreateBookingPricesServerSide(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)

	wrong := dec("1000000")
	_, err := env.services.Bookings.CreateBooking(env.ctx, f.guest, CreateBookingInput{
		PropertyID:    f.property.ID,
		CheckIn:       day(2024, 2, 1),
		CheckOut:      day(2024, 4, 1),
		ExpectedTotal: &wrong,
	})
	assert.ErrorIs(t, err, ErrPricingMismatch)

	right := dec("1100000.00")
	b, err := env.services.Bookings.CreateBooking(env.ctx, f.guest, CreateBookingInput{
		PropertyID:      f.property.ID,
		CheckIn:         day(2024, 2, 1),
		CheckOut:        day(2024, 4, 1),
		SpecialRequests: "  late arrival ",
		ExpectedTotal:   &right,
	})
	require.NoError(t, err)
	assert.Equal(t, BookingPending, b.Status)
	assert.Equal(t, f.property.HostID, b.HostID)
	assert.Equal(t, "late arrival", b.SpecialRequests)
	assertDecimal(t, "1100000", b.TotalAmount)
	assertDecimal(t, "0.1", b.CommissionRate)

	stored, err := env.services.Bookings.GetBooking(env.ctx, f.host, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "1100000", stored.TotalAmount)
	assert.Equal(t, "2024-02-01", stored.CheckIn.Format("2006-01-02"))

	assert.Contains(t, env.publisher.topics(), TopicBookingCreated)
}

func TestCreateBookingRejections(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)

	_, err := env.services.Bookings.CreateBooking(env.ctx, f.guest, CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(2024, 1, 9), CheckOut: day(2024, 3, 9),
	})
	requireCode(t, err, "BOOKING_002")

	_, err = env.services.Bookings.CreateBooking(env.ctx, f.guest, CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(2024, 3, 1), CheckOut: day(2024, 3, 1),
	})
	requireCode(t, err, "BOOKING_001")

	_, err = env.services.Bookings.CreateBooking(env.ctx, f.host, CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(2024, 2, 1), CheckOut: day(2024, 4, 1),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.services.Bookings.CreateBooking(env.ctx, nil, CreateBookingInput{
		PropertyID: f.property.ID, CheckIn: day(2024, 2, 1), CheckOut: day(2024, 4, 1),
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)
	b := f.book(t, env, day(2024, 2, 1), day(2024, 4, 1))

	_, err := env.services.Bookings.ConfirmBooking(env.ctx, f.guest, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := env.services.Bookings.ConfirmBooking(env.ctx, f.host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	_, err = env.services.Bookings.ConfirmBooking(env.ctx, f.host, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.services.Bookings.CompleteBooking(env.ctx, f.host, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotCheckedOut)

	_, err = env.services.Bookings.CreateReview(env.ctx, f.guest, b.ID, CreateReviewInput{Rating: 5})
	assert.ErrorIs(t, err, ErrReviewNotAllowed)

	env.clock = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	completed, err := env.services.Bookings.CompleteBooking(env.ctx, f.host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, BookingCompleted, completed.Status)

	_, err = env.services.Bookings.CreateReview(env.ctx, f.guest, b.ID, CreateReviewInput{Rating: 6})
	requireCode(t, err, "REVIEW_001")

	_, err = env.services.Bookings.CreateReview(env.ctx, f.host, b.ID, CreateReviewInput{Rating: 4})
	assert.ErrorIs(t, err, ErrForbidden)

	review, err := env.services.Bookings.CreateReview(env.ctx, f.guest, b.ID, CreateReviewInput{Rating: 4, Comment: " quiet street "})
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "quiet street", review.Comment)
	assert.Equal(t, f.property.ID, review.PropertyID)

	_, err = env.services.Bookings.CreateReview(env.ctx, f.guest, b.ID, CreateReviewInput{Rating: 3})
	assert.ErrorIs(t, err, ErrReviewAlreadyExists)

	_, err = env.services.Bookings.CancelBooking(env.ctx, f.guest, b.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []string{
		TopicBookingCreated,
		TopicBookingConfirmed,
		TopicBookingCompleted,
	}, env.publisher.topics())
}

func TestCancelBookingWindow(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)

	// Today is 2024-01-10 and the window is seven days.
	closed := f.book(t, env, day(2024, 1, 17), day(2024, 2, 17))
	assert.False(t, env.services.Bookings.Cancellable(closed))
	_, err := env.services.Bookings.CancelBooking(env.ctx, f.guest, closed.ID, "")
	assert.ErrorIs(t, err, ErrCancellationClosed)

	open := f.book(t, env, day(2024, 1, 18), day(2024, 2, 18))
	assert.True(t, env.services.Bookings.Cancellable(open))

	_, stranger := env.createUser(t, RoleGuest, "Stranger")
	_, err = env.services.Bookings.CancelBooking(env.ctx, stranger, open.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := env.services.Bookings.CancelBooking(env.ctx, f.guest, open.ID, " change of plans ")
	require.NoError(t, err)
	assert.Equal(t, BookingCancelled, cancelled.Status)
	assert.Equal(t, "change of plans", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, f.guest.UserID, *cancelled.CancelledBy)

	_, err = env.services.Bookings.CancelBooking(env.ctx, f.host, uuid.New(), "")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListBookingsByView(t *testing.T) {
	env := newTestEnv(t)
	f := newBookingFixture(t, env)
	f.book(t, env, day(2024, 2, 1), day(2024, 4, 1))
	second := f.book(t, env, day(2024, 6, 1), day(2024, 7, 1))
	_, err := env.services.Bookings.ConfirmBooking(env.ctx, f.host, second.ID)
	require.NoError(t, err)

	asGuest, err := env.services.Bookings.ListBookings(env.ctx, f.guest, ViewGuest, "")
	require.NoError(t, err)
	assert.Len(t, asGuest, 2)

	asHost, err := env.services.Bookings.ListBookings(env.ctx, f.host, ViewHost, BookingConfirmed)
	require.NoError(t, err)
	require.Len(t, asHost, 1)
	assert.Equal(t, second.ID, asHost[0].ID)

	hostAsGuest, err := env.services.Bookings.ListBookings(env.ctx, f.host, ViewGuest, "")
	require.NoError(t, err)
	assert.Empty(t, hostAsGuest)

	_, err = env.services.Bookings.ListBookings(env.ctx, f.guest, BookingView("everyone"), "")
	requireCode(t, err, "BOOKING_004")

	_, stranger := env.createUser(t, RoleGuest, "Stranger")
	_, err = env.services.Bookings.GetBooking(env.ctx, stranger, second.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
