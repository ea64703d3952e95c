package interfaces

import (
	"context"
	"time"

	"ridelink/internal/models"
	"ridelink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideTransition describes a conditional status change. The write only
// applies while the stored status still equals From.
type RideTransition struct {
	From models.RideStatus
	To   models.RideStatus
	At   time.Time
	// TotalEarnings is written alongside the status when non-nil.
	TotalEarnings *float64
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// Seat accounting. ReserveSeats decrements availableSeats by seats in a
	// single conditional write guarded by status=scheduled and
	// availableSeats>=seats; it reports false when the guard did not match.
	ReserveSeats(ctx context.Context, id primitive.ObjectID, seats int) (bool, error)
	ReleaseSeats(ctx context.Context, id primitive.ObjectID, seats int) error

	// TransitionStatus reports false when the ride exists but is no longer in t.From.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, t RideTransition) (bool, error)
	AddBooking(ctx context.Context, rideID, bookingID primitive.ObjectID) error

	// Relay
	UpdateCurrentLocation(ctx context.Context, id primitive.ObjectID, location models.Location) error
	AppendMessage(ctx context.Context, id primitive.ObjectID, message models.ChatMessage) error
	GetMessages(ctx context.Context, id primitive.ObjectID, params *utils.PaginationParams) ([]models.ChatMessage, int64, error)
}
