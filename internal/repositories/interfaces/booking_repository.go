package interfaces

import (
	"context"
	"time"

	"ridelink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)

	// TransitionStatus moves a booking from -> to only if it is still in
	// from, and reports whether the write applied.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookingStatus, at time.Time) (bool, error)

	// ListByRide returns the ride's bookings, optionally restricted to the
	// given statuses, oldest first.
	ListByRide(ctx context.Context, rideID primitive.ObjectID, statuses ...models.BookingStatus) ([]*models.Booking, error)
	// HasActiveBooking reports whether passengerID holds a pending or
	// confirmed booking on the ride.
	HasActiveBooking(ctx context.Context, rideID, passengerID primitive.ObjectID) (bool, error)
}
